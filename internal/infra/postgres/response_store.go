package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"formbuilder-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResponseStore keeps responses as JSONB documents keyed by form.
type ResponseStore struct {
	pool *pgxpool.Pool
}

func NewResponseStore(pool *pgxpool.Pool) *ResponseStore {
	return &ResponseStore{pool: pool}
}

func decodeResponse(raw []byte) (domain.Response, error) {
	var resp domain.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.Response{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp, nil
}

func (s *ResponseStore) CreateResponse(ctx context.Context, resp domain.Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO responses (id, form_id, data, submitted_at) VALUES ($1, $2, $3, $4)`,
		resp.ID, resp.FormID, string(raw), resp.SubmittedAt)
	return storeErr("create response", err, nil)
}

func (s *ResponseStore) GetResponse(ctx context.Context, responseID string) (domain.Response, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM responses WHERE id = $1`, responseID).Scan(&raw)
	if err != nil {
		return domain.Response{}, storeErr("get response", err, domain.ErrResponseNotFound)
	}
	return decodeResponse(raw)
}

// ListResponses returns the responses of a form, newest first.
func (s *ResponseStore) ListResponses(ctx context.Context, formID string) ([]domain.Response, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM responses WHERE form_id = $1 ORDER BY submitted_at DESC, id`, formID)
	if err != nil {
		return nil, storeErr("list responses", err, nil)
	}
	defer rows.Close()

	out := make([]domain.Response, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, storeErr("list responses", err, nil)
		}
		resp, err := decodeResponse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, storeErr("list responses", rows.Err(), nil)
}

func (s *ResponseStore) UpdateGrade(ctx context.Context, responseID string, grade domain.ManualGrade, gradedAt time.Time) (domain.Response, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
UPDATE responses
SET data = data || jsonb_build_object('manualScore', $2::float8, 'gradedBy', $3::text, 'gradedAt', $4::text)
WHERE id = $1
RETURNING data`,
		responseID, grade.Score, grade.GradedBy, gradedAt.UTC().Format(time.RFC3339Nano)).Scan(&raw)
	if err != nil {
		return domain.Response{}, storeErr("grade response", err, domain.ErrResponseNotFound)
	}
	return decodeResponse(raw)
}

func (s *ResponseStore) DeleteResponse(ctx context.Context, responseID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM responses WHERE id = $1`, responseID)
	if err != nil {
		return storeErr("delete response", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrResponseNotFound
	}
	return nil
}

func (s *ResponseStore) DeleteResponses(ctx context.Context, formID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM responses WHERE form_id = $1`, formID)
	return storeErr("delete responses", err, nil)
}
