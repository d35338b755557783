package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"formbuilder-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// FormStore keeps forms as JSONB documents. The analytics counters live in
// their own columns and are only changed by single UPDATE statements, so
// concurrent submissions never overwrite each other.
type FormStore struct {
	pool *pgxpool.Pool
}

func NewFormStore(pool *pgxpool.Pool) *FormStore {
	return &FormStore{pool: pool}
}

const selectForm = `SELECT data, total_views, total_submissions, average_completion_time, average_score FROM forms`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanForm(row rowScanner) (domain.Form, error) {
	var (
		raw  []byte
		form domain.Form
		a    domain.FormAnalytics
	)
	if err := row.Scan(&raw, &a.TotalViews, &a.TotalSubmissions, &a.AverageCompletionTime, &a.AverageScore); err != nil {
		return domain.Form{}, err
	}
	if err := json.Unmarshal(raw, &form); err != nil {
		return domain.Form{}, fmt.Errorf("unmarshal form: %w", err)
	}
	form.Analytics = a
	return form, nil
}

func (s *FormStore) CreateForm(ctx context.Context, form domain.Form) error {
	raw, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("marshal form: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO forms (id, data, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		form.ID, string(raw), string(form.Status), form.CreatedAt, form.UpdatedAt)
	return storeErr("create form", err, nil)
}

func (s *FormStore) GetForm(ctx context.Context, formID string) (domain.Form, error) {
	form, err := scanForm(s.pool.QueryRow(ctx, selectForm+` WHERE id = $1`, formID))
	if err != nil {
		return domain.Form{}, storeErr("get form", err, domain.ErrFormNotFound)
	}
	return form, nil
}

func (s *FormStore) ListForms(ctx context.Context) ([]domain.Form, error) {
	rows, err := s.pool.Query(ctx, selectForm+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, storeErr("list forms", err, nil)
	}
	defer rows.Close()

	forms := make([]domain.Form, 0)
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, storeErr("list forms", err, nil)
		}
		forms = append(forms, form)
	}
	return forms, storeErr("list forms", rows.Err(), nil)
}

// SaveForm replaces the form document; analytics columns are untouched.
func (s *FormStore) SaveForm(ctx context.Context, form domain.Form) error {
	form.Analytics = domain.FormAnalytics{}
	raw, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("marshal form: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE forms SET data = $2, status = $3, updated_at = $4 WHERE id = $1`,
		form.ID, string(raw), string(form.Status), form.UpdatedAt)
	if err != nil {
		return storeErr("save form", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFormNotFound
	}
	return nil
}

func (s *FormStore) DeleteForm(ctx context.Context, formID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM forms WHERE id = $1`, formID)
	if err != nil {
		return storeErr("delete form", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFormNotFound
	}
	return nil
}

func (s *FormStore) IncrementViews(ctx context.Context, formID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE forms SET total_views = total_views + 1 WHERE id = $1`, formID)
	if err != nil {
		return storeErr("increment views", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFormNotFound
	}
	return nil
}

// incrementSubmissionsSQL relies on every SET expression reading the old row.
const incrementSubmissionsSQL = `
UPDATE forms SET
    average_completion_time = CASE WHEN $2::int > 0
        THEN (average_completion_time * total_submissions + $2::int) / (total_submissions + 1)
        ELSE average_completion_time END,
    average_score = (average_score * total_submissions + $3::float8) / (total_submissions + 1),
    total_submissions = total_submissions + 1
WHERE id = $1`

func (s *FormStore) IncrementSubmissions(ctx context.Context, formID string, completionTime int, score float64) error {
	tag, err := s.pool.Exec(ctx, incrementSubmissionsSQL, formID, completionTime, score)
	if err != nil {
		return storeErr("increment submissions", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFormNotFound
	}
	return nil
}
