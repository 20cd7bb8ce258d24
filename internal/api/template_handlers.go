package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/pkg/httputil"
	"github.com/ignite/cadence-mailer/internal/service/template"
)

func (h *Handlers) templateRoutes(r chi.Router) {
	r.Get("/", h.ListTemplates)
	r.Post("/", h.CreateTemplate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetTemplate)
		r.Put("/", h.UpdateTemplate)
		r.Delete("/", h.DeleteTemplate)
		r.Post("/duplicate", h.DuplicateTemplate)
		r.Post("/render", h.RenderTemplate)
	})
}

// ListTemplates handles GET /templates
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 20, 100)
	q := r.URL.Query()
	items, total, err := h.templates.List(r.Context(), userID(r), template.ListFilter{
		Type:   q.Get("type"),
		Status: q.Get("status"),
		Folder: q.Get("folder"),
		Search: q.Get("search"),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Template{}
	}
	httputil.OK(w, NewPaginatedResponse(items, p, int64(total)))
}

// CreateTemplate handles POST /templates
func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in template.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	t, err := h.templates.Create(r.Context(), userID(r), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.Created(w, t)
}

// GetTemplate handles GET /templates/{id}
func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, t)
}

// UpdateTemplate handles PUT /templates/{id}
func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var in template.UpdateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	t, err := h.templates.Update(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, t)
}

// DeleteTemplate handles DELETE /templates/{id}
func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.NoContent(w)
}

// DuplicateTemplate handles POST /templates/{id}/duplicate
func (h *Handlers) DuplicateTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.Duplicate(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.Created(w, t)
}

// RenderTemplate handles POST /templates/{id}/render. An empty body
// renders with sample data.
func (h *Handlers) RenderTemplate(w http.ResponseWriter, r *http.Request) {
	var in template.RenderInput
	if r.ContentLength != 0 && !httputil.Decode(w, r, &in) {
		return
	}
	res, err := h.templates.Render(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, res)
}
