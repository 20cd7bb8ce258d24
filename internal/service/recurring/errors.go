package recurring

import (
	"errors"
	"fmt"

	"github.com/ignite/cadence-mailer/internal/domain"
)

// Sentinel errors for the recurring campaign service layer.
var (
	ErrNotFound          = errors.New("recurring campaign not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRestrictedField   = errors.New("field cannot change while campaign is active")
)

// StateTransitionError reports a lifecycle operation attempted from an
// illegal state, or a restricted-field edit on an active campaign.
type StateTransitionError struct {
	Op    string
	From  domain.RecurringStatus
	Field string // set for restricted-field violations
}

func (e *StateTransitionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("cannot change %s while campaign is %s: pause it first", e.Field, e.From)
	}
	return fmt.Sprintf("cannot %s a %s campaign", e.Op, e.From)
}

func (e *StateTransitionError) Unwrap() error {
	if e.Field != "" {
		return ErrRestrictedField
	}
	return ErrInvalidTransition
}
