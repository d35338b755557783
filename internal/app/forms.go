package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"formbuilder-service/internal/config"
	"formbuilder-service/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FormInput carries the author-editable fields of a form.
type FormInput struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description,omitempty"`
	HeaderImage string            `json:"headerImage,omitempty"`
	Questions   []domain.Question `json:"questions,omitempty"`
	Settings    *domain.Settings  `json:"settings,omitempty"`
}

// CreateForm stores a new draft form. Missing question ids are generated and
// question order follows slice order.
func (s *FormService) CreateForm(ctx context.Context, in FormInput) (domain.Form, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Form{}, fmt.Errorf("%w: title is required", domain.ErrInvalidForm)
	}
	now := s.now().UTC()
	form := domain.Form{
		ID:          uuid.NewString(),
		Title:       title,
		Description: in.Description,
		HeaderImage: in.HeaderImage,
		Questions:   prepareQuestions(in.Questions),
		Settings:    domain.DefaultSettings(),
		Status:      domain.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Settings != nil {
		form.Settings = *in.Settings
	}

	if err := s.forms.CreateForm(ctx, form); err != nil {
		return domain.Form{}, fmt.Errorf("create form: %w", err)
	}
	config.WithContext(ctx).WithField("form_id", form.ID).Info("form created")
	return form, nil
}

// prepareQuestions copies questions, fills missing question, sub-question,
// item and blank ids, and sets Order from slice position.
func prepareQuestions(questions []domain.Question) []domain.Question {
	if questions == nil {
		return []domain.Question{}
	}
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	for i := range out {
		q := &out[i]
		if strings.TrimSpace(q.ID) == "" {
			q.ID = uuid.NewString()
		}
		q.Order = i

		q.SubQuestions = append([]domain.SubQuestion(nil), q.SubQuestions...)
		for j := range q.SubQuestions {
			if strings.TrimSpace(q.SubQuestions[j].ID) == "" {
				q.SubQuestions[j].ID = uuid.NewString()
			}
		}
		q.Items = append([]domain.Item(nil), q.Items...)
		for j := range q.Items {
			if strings.TrimSpace(q.Items[j].ID) == "" {
				q.Items[j].ID = uuid.NewString()
			}
		}
		q.Blanks = append([]domain.Blank(nil), q.Blanks...)
		for j := range q.Blanks {
			if strings.TrimSpace(q.Blanks[j].ID) == "" {
				q.Blanks[j].ID = fmt.Sprintf("blank-%d", j)
			}
		}
	}
	return out
}

// sameQuestions compares questions by their wire form, so nil and empty
// slices are equal.
func sameQuestions(a, b []domain.Question) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ra, rb)
}

func (s *FormService) GetForm(ctx context.Context, formID string) (domain.Form, error) {
	form, err := s.forms.GetForm(ctx, formID)
	if err != nil {
		return domain.Form{}, fmt.Errorf("get form: %w", err)
	}
	return form, nil
}

// ListForms returns every form, most recently created first.
func (s *FormService) ListForms(ctx context.Context) ([]domain.Form, error) {
	forms, err := s.forms.ListForms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	sort.SliceStable(forms, func(i, j int) bool {
		return forms[i].CreatedAt.After(forms[j].CreatedAt)
	})
	return forms, nil
}

// UpdateForm replaces the editable fields of a form. Omitted questions and
// settings are kept. Questions can only change while the form is a draft.
func (s *FormService) UpdateForm(ctx context.Context, formID string, in FormInput) (domain.Form, error) {
	form, err := s.forms.GetForm(ctx, formID)
	if err != nil {
		return domain.Form{}, fmt.Errorf("update form: %w", err)
	}
	if in.Questions != nil {
		questions := prepareQuestions(in.Questions)
		if form.Status != domain.StatusDraft && !sameQuestions(questions, form.Questions) {
			return domain.Form{}, domain.ErrFormFrozen
		}
		form.Questions = questions
	}
	if title := strings.TrimSpace(in.Title); title != "" {
		form.Title = title
	}
	form.Description = in.Description
	form.HeaderImage = in.HeaderImage
	if in.Settings != nil {
		form.Settings = *in.Settings
	}
	form.UpdatedAt = s.now().UTC()

	if err := s.save(ctx, form); err != nil {
		return domain.Form{}, fmt.Errorf("update form: %w", err)
	}
	return form, nil
}

// DeleteForm removes a form together with its responses.
func (s *FormService) DeleteForm(ctx context.Context, formID string) error {
	if err := s.forms.DeleteForm(ctx, formID); err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	s.invalidate(ctx, formID)
	if err := s.responses.DeleteResponses(ctx, formID); err != nil {
		return fmt.Errorf("delete form responses: %w", err)
	}
	config.WithContext(ctx).WithField("form_id", formID).Info("form deleted")
	return nil
}

// PublishForm validates a form and opens it for submissions.
func (s *FormService) PublishForm(ctx context.Context, formID string) (domain.Form, error) {
	form, err := s.forms.GetForm(ctx, formID)
	if err != nil {
		return domain.Form{}, fmt.Errorf("publish form: %w", err)
	}
	if err := domain.ValidateForm(form); err != nil {
		return domain.Form{}, err
	}
	now := s.now().UTC()
	form.Status = domain.StatusPublished
	form.PublishedAt = &now
	form.ClosedAt = nil
	form.UpdatedAt = now
	if err := s.save(ctx, form); err != nil {
		return domain.Form{}, fmt.Errorf("publish form: %w", err)
	}
	s.logTransition(ctx, form)
	return form, nil
}

// UnpublishForm moves a form back to draft.
func (s *FormService) UnpublishForm(ctx context.Context, formID string) (domain.Form, error) {
	form, err := s.forms.GetForm(ctx, formID)
	if err != nil {
		return domain.Form{}, fmt.Errorf("unpublish form: %w", err)
	}
	form.Status = domain.StatusDraft
	form.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, form); err != nil {
		return domain.Form{}, fmt.Errorf("unpublish form: %w", err)
	}
	s.logTransition(ctx, form)
	return form, nil
}

// CloseForm stops a form from accepting submissions.
func (s *FormService) CloseForm(ctx context.Context, formID string) (domain.Form, error) {
	form, err := s.forms.GetForm(ctx, formID)
	if err != nil {
		return domain.Form{}, fmt.Errorf("close form: %w", err)
	}
	now := s.now().UTC()
	form.Status = domain.StatusClosed
	form.ClosedAt = &now
	form.UpdatedAt = now
	if err := s.save(ctx, form); err != nil {
		return domain.Form{}, fmt.Errorf("close form: %w", err)
	}
	s.logTransition(ctx, form)
	return form, nil
}

// DuplicateForm copies a form into a new draft with fresh analytics.
func (s *FormService) DuplicateForm(ctx context.Context, formID string) (domain.Form, error) {
	src, err := s.forms.GetForm(ctx, formID)
	if err != nil {
		return domain.Form{}, fmt.Errorf("duplicate form: %w", err)
	}
	now := s.now().UTC()
	dup := src
	dup.ID = uuid.NewString()
	dup.Title = src.Title + " (Copy)"
	dup.Status = domain.StatusDraft
	dup.Analytics = domain.FormAnalytics{}
	dup.CreatedAt, dup.UpdatedAt = now, now
	dup.PublishedAt, dup.ClosedAt = nil, nil
	dup.Questions = prepareQuestions(src.Questions)

	if err := s.forms.CreateForm(ctx, dup); err != nil {
		return domain.Form{}, fmt.Errorf("duplicate form: %w", err)
	}
	config.WithContext(ctx).WithFields(logrus.Fields{"form_id": dup.ID, "source_id": src.ID}).Info("form duplicated")
	return dup, nil
}

func (s *FormService) save(ctx context.Context, form domain.Form) error {
	if err := s.forms.SaveForm(ctx, form); err != nil {
		return err
	}
	s.invalidate(ctx, form.ID)
	return nil
}

func (s *FormService) logTransition(ctx context.Context, form domain.Form) {
	config.WithContext(ctx).WithFields(logrus.Fields{
		"form_id": form.ID,
		"status":  form.Status,
	}).Info("form status changed")
}
