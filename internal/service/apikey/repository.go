package apikey

import (
	"context"
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
)

// Repository defines the data access contract for API keys.
type Repository interface {
	Get(ctx context.Context, userID, id string) (*domain.APIKey, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]domain.APIKey, int, error)
	Create(ctx context.Context, k *domain.APIKey) error
	// Update applies non-nil fields to a key that is not revoked. It
	// returns ErrRevoked when the key was revoked.
	Update(ctx context.Context, userID, id string, u UpdateFields) error
	// Revoke deactivates a key once. It returns ErrRevoked when the key
	// was already revoked.
	Revoke(ctx context.Context, userID, id, reason string, at time.Time) error
}

// ListFilter controls pagination for key lists.
type ListFilter struct {
	IncludeRevoked bool
	Limit          int
	Offset         int
}

// UpdateFields holds the mutable fields for a key update.
type UpdateFields struct {
	Name              *string
	Scopes            []string
	IsActive          *bool
	RequestsPerMinute *int
	RequestsPerDay    *int
	ExpiresAt         *time.Time
	ClearExpiresAt    bool
	// Prefix and HashedKey replace the secret on rotation.
	Prefix    *string
	HashedKey *string
}
