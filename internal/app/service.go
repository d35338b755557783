package app

import (
	"context"
	"time"

	"formbuilder-service/internal/domain"
	"formbuilder-service/internal/metrics"
)

// FormStore persists forms. SaveForm never writes the analytics counters;
// those only move through the Increment methods, which must be atomic.
type FormStore interface {
	CreateForm(ctx context.Context, form domain.Form) error
	GetForm(ctx context.Context, formID string) (domain.Form, error)
	ListForms(ctx context.Context) ([]domain.Form, error)
	SaveForm(ctx context.Context, form domain.Form) error
	DeleteForm(ctx context.Context, formID string) error
	IncrementViews(ctx context.Context, formID string) error
	IncrementSubmissions(ctx context.Context, formID string, completionTime int, score float64) error
}

// ResponseStore persists scored responses.
type ResponseStore interface {
	CreateResponse(ctx context.Context, resp domain.Response) error
	GetResponse(ctx context.Context, responseID string) (domain.Response, error)
	ListResponses(ctx context.Context, formID string) ([]domain.Response, error)
	UpdateGrade(ctx context.Context, responseID string, grade domain.ManualGrade, gradedAt time.Time) (domain.Response, error)
	DeleteResponse(ctx context.Context, responseID string) error
	DeleteResponses(ctx context.Context, formID string) error
}

// FillSessionStore remembers when a respondent opened a form. Lookup reads a
// session without consuming it; Finish removes it.
type FillSessionStore interface {
	Start(ctx context.Context, formID string) (domain.FillSession, error)
	Lookup(ctx context.Context, sessionID string) (domain.FillSession, bool, error)
	Finish(ctx context.Context, sessionID string) (domain.FillSession, bool, error)
}

// FormCache serves form definitions on the scoring path.
type FormCache interface {
	GetForm(ctx context.Context, formID string) (domain.Form, error)
	Invalidate(ctx context.Context, formID string)
}

// FormService contains the form, submission and analytics use cases.
type FormService struct {
	forms     FormStore
	responses ResponseStore
	fills     FillSessionStore
	cache     FormCache
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option customizes a FormService.
type Option func(*FormService)

// WithCache routes form reads on the submission path through cache.
func WithCache(cache FormCache) Option {
	return func(s *FormService) { s.cache = cache }
}

// WithMetrics records submission metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *FormService) { s.metrics = m }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *FormService) { s.now = now }
}

func NewFormService(forms FormStore, responses ResponseStore, fills FillSessionStore, opts ...Option) *FormService {
	s := &FormService{
		forms:     forms,
		responses: responses,
		fills:     fills,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FormService) cachedForm(ctx context.Context, formID string) (domain.Form, error) {
	if s.cache != nil {
		return s.cache.GetForm(ctx, formID)
	}
	return s.forms.GetForm(ctx, formID)
}

func (s *FormService) invalidate(ctx context.Context, formID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, formID)
	}
}
