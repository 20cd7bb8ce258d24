package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/cadence-mailer/internal/pkg/httputil"
	"github.com/ignite/cadence-mailer/internal/settings"
)

func (h *Handlers) settingsRoutes(r chi.Router) {
	r.Use(h.requireSettings)
	r.Get("/", h.ListSettingCategories)
	r.Get("/{category}", h.GetSettings)
	r.Put("/{category}", h.PutSettings)
	r.Delete("/{category}", h.ResetSettings)
}

func (h *Handlers) requireSettings(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.settings == nil {
			httputil.Error(w, http.StatusServiceUnavailable, "settings store not configured")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListSettingCategories handles GET /settings
func (h *Handlers) ListSettingCategories(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{"categories": settings.Categories()})
}

// GetSettings handles GET /settings/{category}
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	c, err := settings.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	v, err := h.settings.Get(r.Context(), userID(r), c)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, v)
}

// PutSettings handles PUT /settings/{category}. Keys absent from the body
// keep their current value.
func (h *Handlers) PutSettings(w http.ResponseWriter, r *http.Request) {
	c, err := settings.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	var update settings.Values
	if !httputil.Decode(w, r, &update) {
		return
	}
	v, err := h.settings.Put(r.Context(), userID(r), c, update)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, v)
}

// ResetSettings handles DELETE /settings/{category}
func (h *Handlers) ResetSettings(w http.ResponseWriter, r *http.Request) {
	c, err := settings.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if err := h.settings.Reset(r.Context(), userID(r), c); err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.NoContent(w)
}
