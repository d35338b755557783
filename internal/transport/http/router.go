package http

import (
	"net/http"

	"formbuilder-service/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the REST API, health check and metrics endpoint.
func NewRouter(h *Handler, m *metrics.Metrics, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument(m))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/forms", func(r chi.Router) {
			r.Get("/", h.ListForms)
			r.Post("/", h.CreateForm)
			r.Route("/{formID}", func(r chi.Router) {
				r.Get("/", h.GetForm)
				r.Put("/", h.UpdateForm)
				r.Delete("/", h.DeleteForm)
				r.Post("/publish", h.PublishForm)
				r.Post("/close", h.CloseForm)
				r.Post("/duplicate", h.DuplicateForm)
				r.Get("/preview", h.PreviewForm)
				r.Get("/responses", h.ListResponses)
				r.Get("/analytics", h.FormAnalytics)
				r.Get("/export.csv", h.ExportResponses)
			})
		})
		r.Route("/responses", func(r chi.Router) {
			r.Post("/", h.SubmitResponse)
			r.Get("/{responseID}", h.GetResponse)
			r.Delete("/{responseID}", h.DeleteResponse)
			r.Put("/{responseID}/grade", h.GradeResponse)
		})
	})
	return r
}
