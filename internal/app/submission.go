package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"formbuilder-service/internal/analytics"
	"formbuilder-service/internal/config"
	"formbuilder-service/internal/domain"
	"formbuilder-service/internal/scoring"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SubmitRequest is a respondent's raw submission.
type SubmitRequest struct {
	FormID          string              `json:"formId" validate:"required"`
	SessionID       string              `json:"sessionId,omitempty"`
	RespondentEmail string              `json:"respondentEmail,omitempty" validate:"omitempty,email"`
	RespondentName  string              `json:"respondentName,omitempty"`
	Answers         []scoring.RawAnswer `json:"answers"`
	CompletionTime  int                 `json:"completionTime,omitempty" validate:"gte=0"`
	StartedAt       *time.Time          `json:"startedAt,omitempty"`
	IPAddress       string              `json:"-"`
	UserAgent       string              `json:"-"`
}

// SubmitResponse scores a submission against its published form, stores it
// and folds it into the form's running analytics.
func (s *FormService) SubmitResponse(ctx context.Context, req SubmitRequest) (domain.Response, error) {
	log := config.WithContext(ctx).WithField("form_id", req.FormID)

	form, err := s.cachedForm(ctx, req.FormID)
	if err != nil {
		s.metrics.ObserveSubmission("rejected", 0, 0)
		return domain.Response{}, fmt.Errorf("submit response: %w", err)
	}
	if !form.IsPublished() {
		s.metrics.ObserveSubmission("rejected", 0, 0)
		return domain.Response{}, domain.ErrFormNotPublished
	}
	email := strings.TrimSpace(req.RespondentEmail)
	if form.Settings.RequireEmail && email == "" {
		s.metrics.ObserveSubmission("rejected", 0, 0)
		return domain.Response{}, domain.ErrEmailRequired
	}

	result := scoring.ScoreSubmission(form, req.Answers)
	for _, issue := range result.Issues {
		s.metrics.ObserveDropped(string(issue.Reason))
		log.WithFields(logrus.Fields{
			"question_id": issue.QuestionID,
			"reason":      issue.Reason,
		}).Warn("answer ignored while scoring")
	}

	now := s.now().UTC()
	startedAt, completionTime, fromSession := s.timing(ctx, log, form.ID, req, now)

	resp := domain.Response{
		ID:              uuid.NewString(),
		FormID:          form.ID,
		RespondentEmail: email,
		RespondentName:  strings.TrimSpace(req.RespondentName),
		Answers:         result.Answers,
		TotalScore:      result.TotalScore,
		MaxScore:        result.MaxScore,
		CompletionTime:  completionTime,
		StartedAt:       startedAt,
		SubmittedAt:     now,
		IsCompleted:     true,
		IPAddress:       req.IPAddress,
		UserAgent:       req.UserAgent,
	}
	if err := s.responses.CreateResponse(ctx, resp); err != nil {
		s.metrics.ObserveSubmission("failed", 0, 0)
		log.WithError(err).Error("persist response")
		return domain.Response{}, fmt.Errorf("submit response: %w", err)
	}
	if fromSession {
		// The session stays open until the response is stored so a retry keeps server timing.
		if _, _, err := s.fills.Finish(ctx, req.SessionID); err != nil {
			log.WithError(err).Warn("finish fill session")
		}
	}

	if err := s.forms.IncrementSubmissions(ctx, form.ID, completionTime, resp.TotalScore); err != nil {
		// The response is already stored; analytics catch up through the batch summary.
		s.metrics.ObserveSubmission("analytics_failed", resp.TotalScore, resp.MaxScore)
		log.WithError(err).WithField("response_id", resp.ID).Error("increment form analytics")
		return resp, nil
	}

	s.metrics.ObserveSubmission("ok", resp.TotalScore, resp.MaxScore)
	log.WithFields(logrus.Fields{
		"response_id": resp.ID,
		"score":       resp.TotalScore,
		"max_score":   resp.MaxScore,
	}).Info("response submitted")
	return resp, nil
}

// timing derives when the respondent started and how long they took. A fill
// session opened by StartFill wins over client-reported values; fromSession
// reports whether one was used.
func (s *FormService) timing(ctx context.Context, log *logrus.Entry, formID string, req SubmitRequest, now time.Time) (time.Time, int, bool) {
	if req.SessionID != "" && s.fills != nil {
		session, ok, err := s.fills.Lookup(ctx, req.SessionID)
		switch {
		case err != nil:
			log.WithError(err).Warn("look up fill session")
		case ok && session.FormID == formID:
			elapsed := int(now.Sub(session.StartedAt) / time.Second)
			if elapsed < 0 {
				elapsed = 0
			}
			return session.StartedAt.UTC(), elapsed, true
		}
	}

	completion := req.CompletionTime
	if completion < 0 {
		completion = 0
	}
	if req.StartedAt != nil && !req.StartedAt.IsZero() {
		started := req.StartedAt.UTC()
		if completion == 0 && now.After(started) {
			completion = int(now.Sub(started) / time.Second)
		}
		return started, completion, false
	}
	return now.Add(-time.Duration(completion) * time.Second), completion, false
}

// StartFill opens a published form for filling: it counts a view and starts a
// fill session whose id the respondent sends back on submit.
func (s *FormService) StartFill(ctx context.Context, formID string) (domain.Form, domain.FillSession, error) {
	form, err := s.cachedForm(ctx, formID)
	if err != nil {
		return domain.Form{}, domain.FillSession{}, fmt.Errorf("start fill: %w", err)
	}
	if !form.IsPublished() {
		return domain.Form{}, domain.FillSession{}, domain.ErrFormNotPublished
	}
	if err := s.forms.IncrementViews(ctx, formID); err != nil {
		return domain.Form{}, domain.FillSession{}, fmt.Errorf("start fill: %w", err)
	}
	var session domain.FillSession
	if s.fills != nil {
		session, err = s.fills.Start(ctx, formID)
		if err != nil {
			config.WithContext(ctx).WithError(err).WithField("form_id", formID).Warn("open fill session")
			session = domain.FillSession{}
		}
	}
	return form, session, nil
}

// RecordView counts one view of a form.
func (s *FormService) RecordView(ctx context.Context, formID string) error {
	if err := s.forms.IncrementViews(ctx, formID); err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return nil
}

// FormAnalytics computes the batch summary over every stored response.
func (s *FormService) FormAnalytics(ctx context.Context, formID string) (analytics.Summary, error) {
	var (
		form      domain.Form
		responses []domain.Response
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		form, err = s.forms.GetForm(gctx, formID)
		return err
	})
	g.Go(func() error {
		var err error
		responses, err = s.responses.ListResponses(gctx, formID)
		return err
	})
	if err := g.Wait(); err != nil {
		return analytics.Summary{}, fmt.Errorf("form analytics: %w", err)
	}
	return analytics.Compute(form, responses), nil
}

// GradeResponse overrides the automatic score of a response.
func (s *FormService) GradeResponse(ctx context.Context, responseID string, grade domain.ManualGrade) (domain.Response, error) {
	resp, err := s.responses.UpdateGrade(ctx, responseID, grade, s.now().UTC())
	if err != nil {
		return domain.Response{}, fmt.Errorf("grade response: %w", err)
	}
	config.WithContext(ctx).WithFields(logrus.Fields{
		"response_id": responseID,
		"graded_by":   grade.GradedBy,
	}).Info("response graded")
	return resp, nil
}

func (s *FormService) GetResponse(ctx context.Context, responseID string) (domain.Response, error) {
	resp, err := s.responses.GetResponse(ctx, responseID)
	if err != nil {
		return domain.Response{}, fmt.Errorf("get response: %w", err)
	}
	return resp, nil
}

// ListResponses returns the responses of an existing form, newest first.
func (s *FormService) ListResponses(ctx context.Context, formID string) ([]domain.Response, error) {
	if _, err := s.forms.GetForm(ctx, formID); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	responses, err := s.responses.ListResponses(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return responses, nil
}

func (s *FormService) DeleteResponse(ctx context.Context, responseID string) error {
	if err := s.responses.DeleteResponse(ctx, responseID); err != nil {
		return fmt.Errorf("delete response: %w", err)
	}
	return nil
}
