package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/pkg/httputil"
	"github.com/ignite/cadence-mailer/internal/service/recurring"
)

func (h *Handlers) recurringRoutes(r chi.Router) {
	r.Get("/", h.ListRecurring)
	r.Post("/", h.CreateRecurring)
	r.Post("/preview", h.PreviewSchedule)
	r.Get("/frequency-options", h.FrequencyOptions)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetRecurring)
		r.Put("/", h.UpdateRecurring)
		r.Delete("/", h.DeleteRecurring)
		r.Post("/activate", h.lifecycle(h.recurring.Activate))
		r.Post("/pause", h.lifecycle(h.recurring.Pause))
		r.Post("/resume", h.lifecycle(h.recurring.Resume))
		r.Post("/cancel", h.lifecycle(h.recurring.Cancel))
		r.Get("/occurrences", h.ListOccurrences)
		r.Get("/analytics", h.RecurringAnalytics)
	})
}

// ListRecurring handles GET /recurring-campaigns
func (h *Handlers) ListRecurring(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 20, 100)
	q := r.URL.Query()
	items, total, err := h.recurring.List(r.Context(), userID(r), recurring.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.RecurringCampaign{}
	}
	httputil.OK(w, NewPaginatedResponse(items, p, int64(total)))
}

// CreateRecurring handles POST /recurring-campaigns
func (h *Handlers) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var in recurring.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.recurring.Create(r.Context(), userID(r), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.Created(w, c)
}

// GetRecurring handles GET /recurring-campaigns/{id}
func (h *Handlers) GetRecurring(w http.ResponseWriter, r *http.Request) {
	c, err := h.recurring.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, c)
}

// UpdateRecurring handles PUT /recurring-campaigns/{id}
func (h *Handlers) UpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var in recurring.UpdateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.recurring.Update(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, c)
}

// DeleteRecurring handles DELETE /recurring-campaigns/{id}
func (h *Handlers) DeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := h.recurring.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.NoContent(w)
}

type lifecycleOp func(ctx context.Context, userID, id string) (*domain.RecurringCampaign, error)

// lifecycle adapts Activate, Pause, Resume and Cancel to a handler.
func (h *Handlers) lifecycle(op lifecycleOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := op(r.Context(), userID(r), chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		httputil.OK(w, c)
	}
}

// ListOccurrences handles GET /recurring-campaigns/{id}/occurrences
func (h *Handlers) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 50, 200)
	items, total, err := h.recurring.ListOccurrences(r.Context(), userID(r), chi.URLParam(r, "id"), p.Limit, p.Offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Occurrence{}
	}
	httputil.OK(w, NewPaginatedResponse(items, p, int64(total)))
}

// RecurringAnalytics handles GET /recurring-campaigns/{id}/analytics
func (h *Handlers) RecurringAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.recurring.Analytics(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, a)
}

// PreviewSchedule handles POST /recurring-campaigns/preview
func (h *Handlers) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var in recurring.PreviewInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	res, err := h.recurring.Preview(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, res)
}

// FrequencyOptions handles GET /recurring-campaigns/frequency-options
func (h *Handlers) FrequencyOptions(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.recurring.FrequencyOptions())
}
