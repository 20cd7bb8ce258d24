package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/pkg/httputil"
	"github.com/ignite/cadence-mailer/internal/service/apikey"
)

func (h *Handlers) apiKeyRoutes(r chi.Router) {
	r.Get("/", h.ListAPIKeys)
	r.Post("/", h.CreateAPIKey)
	r.Get("/scopes", h.APIKeyScopes)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetAPIKey)
		r.Put("/", h.UpdateAPIKey)
		r.Delete("/", h.RevokeAPIKey)
		r.Post("/rotate", h.RotateAPIKey)
	})
}

// ListAPIKeys handles GET /api-keys. Revoked keys are hidden unless
// include_revoked=true.
func (h *Handlers) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 50, 100)
	keys, total, err := h.apiKeys.List(r.Context(), userID(r), apikey.ListFilter{
		IncludeRevoked: r.URL.Query().Get("include_revoked") == "true",
		Limit:          p.Limit,
		Offset:         p.Offset,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if keys == nil {
		keys = []domain.APIKey{}
	}
	httputil.OK(w, NewPaginatedResponse(keys, p, int64(total)))
}

// CreateAPIKey handles POST /api-keys. The response is the only time the
// secret is returned.
func (h *Handlers) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var in apikey.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	k, err := h.apiKeys.Create(r.Context(), userID(r), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.Created(w, k)
}

// APIKeyScopes handles GET /api-keys/scopes
func (h *Handlers) APIKeyScopes(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.apiKeys.Catalog())
}

// GetAPIKey handles GET /api-keys/{id}
func (h *Handlers) GetAPIKey(w http.ResponseWriter, r *http.Request) {
	k, err := h.apiKeys.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, k)
}

// UpdateAPIKey handles PUT /api-keys/{id}
func (h *Handlers) UpdateAPIKey(w http.ResponseWriter, r *http.Request) {
	var in apikey.UpdateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	k, err := h.apiKeys.Update(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, k)
}

// RevokeAPIKey handles DELETE /api-keys/{id}?reason=...
func (h *Handlers) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	err := h.apiKeys.Revoke(r.Context(), userID(r), chi.URLParam(r, "id"), r.URL.Query().Get("reason"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.NoContent(w)
}

// RotateAPIKey handles POST /api-keys/{id}/rotate
func (h *Handlers) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	k, err := h.apiKeys.Rotate(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, k)
}
