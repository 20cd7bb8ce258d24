package template

import (
	"context"

	"github.com/ignite/cadence-mailer/internal/domain"
)

// Repository defines the data access contract for templates.
type Repository interface {
	Get(ctx context.Context, userID, id string) (*domain.Template, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]domain.Template, int, error)
	Create(ctx context.Context, t *domain.Template) (string, error)
	// Update applies non-nil fields. BumpVersion increments version in the
	// same statement.
	Update(ctx context.Context, userID, id string, u UpdateFields) error
	Delete(ctx context.Context, userID, id string) error
	IncrementUsage(ctx context.Context, id string) error
}

// ListFilter controls pagination and filtering for template lists.
type ListFilter struct {
	Type   string
	Status string
	Folder string
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a template update.
type UpdateFields struct {
	Name        *string
	Type        *domain.TemplateType
	Status      *domain.TemplateStatus
	Subject     *string
	HTMLContent *string
	TextContent *string
	Description *string
	Tags        []string
	Folder      *string
	BumpVersion bool
}
