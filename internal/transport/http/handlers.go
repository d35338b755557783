package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"formbuilder-service/internal/analytics"
	"formbuilder-service/internal/app"
	"formbuilder-service/internal/config"
	"formbuilder-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errBadRequest = errors.New("bad request")

const maxBodyBytes = 1 << 20

// Handler exposes the form service over JSON.
type Handler struct {
	service  *app.FormService
	validate *validator.Validate
}

func NewHandler(service *app.FormService) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return h.validate.Struct(dst)
}

func formID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "formID"))
}

func responseID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "responseID"))
}

// GET /api/forms
func (h *Handler) ListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := h.service.ListForms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forms)
}

// POST /api/forms
func (h *Handler) CreateForm(w http.ResponseWriter, r *http.Request) {
	var in app.FormInput
	if err := h.decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	form, err := h.service.CreateForm(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, form)
}

// GET /api/forms/{formID}
func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.service.GetForm(r.Context(), formID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// PUT /api/forms/{formID}
func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	var in app.FormInput
	if err := h.decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	form, err := h.service.UpdateForm(r.Context(), formID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// DELETE /api/forms/{formID}
func (h *Handler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteForm(r.Context(), formID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type publishRequest struct {
	IsPublished *bool `json:"isPublished" validate:"required"`
}

// POST /api/forms/{formID}/publish
func (h *Handler) PublishForm(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var (
		form domain.Form
		err  error
	)
	if *req.IsPublished {
		form, err = h.service.PublishForm(r.Context(), formID(r))
	} else {
		form, err = h.service.UnpublishForm(r.Context(), formID(r))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// POST /api/forms/{formID}/close
func (h *Handler) CloseForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.service.CloseForm(r.Context(), formID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// POST /api/forms/{formID}/duplicate
func (h *Handler) DuplicateForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.service.DuplicateForm(r.Context(), formID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, form)
}

type previewResponse struct {
	Form      domain.Form `json:"form"`
	SessionID string      `json:"sessionId,omitempty"`
}

// GET /api/forms/{formID}/preview
func (h *Handler) PreviewForm(w http.ResponseWriter, r *http.Request) {
	form, session, err := h.service.StartFill(r.Context(), formID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Form: form, SessionID: session.ID})
}

// POST /api/responses
func (h *Handler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	var req app.SubmitRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.IPAddress = r.RemoteAddr
	req.UserAgent = r.UserAgent()

	resp, err := h.service.SubmitResponse(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GET /api/responses/{responseID}
func (h *Handler) GetResponse(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetResponse(r.Context(), responseID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DELETE /api/responses/{responseID}
func (h *Handler) DeleteResponse(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteResponse(r.Context(), responseID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/responses/{responseID}/grade
func (h *Handler) GradeResponse(w http.ResponseWriter, r *http.Request) {
	var grade domain.ManualGrade
	if err := h.decode(w, r, &grade); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.service.GradeResponse(r.Context(), responseID(r), grade)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/forms/{formID}/responses
func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := h.service.ListResponses(r.Context(), formID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}

// GET /api/forms/{formID}/analytics
func (h *Handler) FormAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.FormAnalytics(r.Context(), formID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GET /api/forms/{formID}/export.csv
func (h *Handler) ExportResponses(w http.ResponseWriter, r *http.Request) {
	id := formID(r)
	responses, err := h.service.ListResponses(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "form-"+id+"-responses.csv"))
	if err := analytics.ExportCSV(w, responses); err != nil {
		// Headers are already sent; the client sees a truncated file.
		config.WithContext(r.Context()).WithError(err).WithField("form_id", id).Warn("export responses")
	}
}
