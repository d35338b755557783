package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"formbuilder-service/internal/domain"
)

// ResponseStore keeps responses in process memory.
type ResponseStore struct {
	mu        sync.RWMutex
	responses map[string]domain.Response
}

func NewResponseStore() *ResponseStore {
	return &ResponseStore{responses: make(map[string]domain.Response)}
}

func (s *ResponseStore) CreateResponse(_ context.Context, resp domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[resp.ID] = resp
	return nil
}

func (s *ResponseStore) GetResponse(_ context.Context, responseID string) (domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.responses[responseID]
	if !ok {
		return domain.Response{}, domain.ErrResponseNotFound
	}
	return resp, nil
}

// ListResponses returns the responses of a form, newest first.
func (s *ResponseStore) ListResponses(_ context.Context, formID string) ([]domain.Response, error) {
	s.mu.RLock()
	out := make([]domain.Response, 0)
	for _, r := range s.responses {
		if r.FormID == formID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *ResponseStore) UpdateGrade(_ context.Context, responseID string, grade domain.ManualGrade, gradedAt time.Time) (domain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.responses[responseID]
	if !ok {
		return domain.Response{}, domain.ErrResponseNotFound
	}
	score := grade.Score
	resp.ManualScore = &score
	resp.GradedBy = grade.GradedBy
	resp.GradedAt = &gradedAt
	s.responses[responseID] = resp
	return resp, nil
}

func (s *ResponseStore) DeleteResponse(_ context.Context, responseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responses[responseID]; !ok {
		return domain.ErrResponseNotFound
	}
	delete(s.responses, responseID)
	return nil
}

func (s *ResponseStore) DeleteResponses(_ context.Context, formID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.responses {
		if r.FormID == formID {
			delete(s.responses, id)
		}
	}
	return nil
}
