package memory

import (
	"context"
	"sync"

	"formbuilder-service/internal/analytics"
	"formbuilder-service/internal/domain"
)

// FormStore keeps forms in process memory. Analytics counters are updated
// under the store lock so concurrent submissions are never lost.
type FormStore struct {
	mu    sync.RWMutex
	forms map[string]domain.Form
}

func NewFormStore() *FormStore {
	return &FormStore{forms: make(map[string]domain.Form)}
}

// NewFormStoreWith seeds the store, mostly for demos and tests.
func NewFormStoreWith(forms ...domain.Form) *FormStore {
	s := NewFormStore()
	for _, f := range forms {
		s.forms[f.ID] = cloneForm(f)
	}
	return s
}

func (s *FormStore) CreateForm(_ context.Context, form domain.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[form.ID] = cloneForm(form)
	return nil
}

func (s *FormStore) GetForm(_ context.Context, formID string) (domain.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	form, ok := s.forms[formID]
	if !ok {
		return domain.Form{}, domain.ErrFormNotFound
	}
	return cloneForm(form), nil
}

func (s *FormStore) ListForms(_ context.Context) ([]domain.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Form, 0, len(s.forms))
	for _, f := range s.forms {
		out = append(out, cloneForm(f))
	}
	return out, nil
}

// SaveForm replaces a form but keeps its stored analytics.
func (s *FormStore) SaveForm(_ context.Context, form domain.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.forms[form.ID]
	if !ok {
		return domain.ErrFormNotFound
	}
	form.Analytics = existing.Analytics
	s.forms[form.ID] = cloneForm(form)
	return nil
}

func (s *FormStore) DeleteForm(_ context.Context, formID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[formID]; !ok {
		return domain.ErrFormNotFound
	}
	delete(s.forms, formID)
	return nil
}

func (s *FormStore) IncrementViews(_ context.Context, formID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	form, ok := s.forms[formID]
	if !ok {
		return domain.ErrFormNotFound
	}
	form.Analytics = analytics.ApplyView(form.Analytics)
	s.forms[formID] = form
	return nil
}

func (s *FormStore) IncrementSubmissions(_ context.Context, formID string, completionTime int, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	form, ok := s.forms[formID]
	if !ok {
		return domain.ErrFormNotFound
	}
	form.Analytics = analytics.ApplySubmission(form.Analytics, completionTime, score)
	s.forms[formID] = form
	return nil
}

// cloneForm copies the question slice so callers cannot mutate stored state.
func cloneForm(f domain.Form) domain.Form {
	if f.Questions != nil {
		f.Questions = append([]domain.Question(nil), f.Questions...)
	}
	return f
}
