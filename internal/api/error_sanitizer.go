package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/ignite/cadence-mailer/internal/pkg/httputil"
	"github.com/ignite/cadence-mailer/internal/schedule"
	"github.com/ignite/cadence-mailer/internal/service/apikey"
	"github.com/ignite/cadence-mailer/internal/service/recurring"
	"github.com/ignite/cadence-mailer/internal/service/template"
	"github.com/ignite/cadence-mailer/internal/settings"
)

// respondServiceError maps a service error to a response. Expected
// failures carry their message; anything else is logged and answered
// with a generic 500 so internals never reach the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *schedule.ValidationError
	var terr *recurring.StateTransitionError

	switch {
	case errors.As(err, &verr):
		httputil.ValidationFailed(w, "validation failed", verr.Errors)
	case errors.As(err, &terr):
		httputil.JSON(w, http.StatusConflict, httputil.ErrorResponse{
			Error: terr.Error(),
			Code:  transitionCode(terr),
		})
	case errors.Is(err, recurring.ErrInvalidTransition), errors.Is(err, recurring.ErrRestrictedField):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, apikey.ErrRevoked):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, recurring.ErrNotFound), errors.Is(err, template.ErrNotFound), errors.Is(err, apikey.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, settings.ErrUnknownCategory):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, settings.ErrUnknownKey):
		httputil.ValidationFailed(w, err.Error(), nil)
	default:
		log.Printf("ERROR [%d] %s %s: %v", http.StatusInternalServerError, r.Method, r.URL.Path, err)
		httputil.Error(w, http.StatusInternalServerError, "An internal error occurred")
	}
}

func transitionCode(e *recurring.StateTransitionError) string {
	if e.Field != "" {
		return "restricted_field"
	}
	return "invalid_transition"
}
