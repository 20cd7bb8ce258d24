package api

import (
	"github.com/ignite/cadence-mailer/internal/service/apikey"
	"github.com/ignite/cadence-mailer/internal/service/recurring"
	"github.com/ignite/cadence-mailer/internal/service/template"
	"github.com/ignite/cadence-mailer/internal/settings"
)

// Handlers groups the services the HTTP layer exposes.
type Handlers struct {
	recurring *recurring.Service
	templates *template.Service
	settings  *settings.Store
	apiKeys   *apikey.Service
}

// NewHandlers creates the handler set. store may be nil when Redis is not
// configured; the settings routes then answer 503.
func NewHandlers(rs *recurring.Service, ts *template.Service, store *settings.Store, keys *apikey.Service) *Handlers {
	return &Handlers{recurring: rs, templates: ts, settings: store, apiKeys: keys}
}
