package recurring

import (
	"context"
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
)

// Repository defines the data access contract for recurring campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign owned by userID. Returns ErrNotFound if
	// it doesn't exist.
	Get(ctx context.Context, userID, id string) (*domain.RecurringCampaign, error)

	// List returns campaigns matching the filter, ordered by created_at DESC.
	List(ctx context.Context, userID string, filter ListFilter) ([]domain.RecurringCampaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.RecurringCampaign) (string, error)

	// Update modifies a campaign. Only non-nil fields are applied.
	Update(ctx context.Context, userID, id string, u UpdateFields) error

	// Delete removes a draft, completed or cancelled campaign and its
	// occurrences.
	Delete(ctx context.Context, userID, id string) error

	// ChangeStatus applies a guarded transition. Returns ErrInvalidTransition
	// if the campaign's current status is not in ch.From.
	ChangeStatus(ctx context.Context, userID, id string, ch StatusChange) error

	// ListOccurrences returns a campaign's occurrences, newest sequence first.
	ListOccurrences(ctx context.Context, campaignID string, limit, offset int) ([]domain.Occurrence, int, error)

	// OccurrenceTotals aggregates every occurrence of a campaign.
	OccurrenceTotals(ctx context.Context, campaignID string) (OccurrenceTotals, error)

	// RecentOccurrences returns the last n occurrences by scheduled_at,
	// oldest first.
	RecentOccurrences(ctx context.Context, campaignID string, n int) ([]domain.Occurrence, error)

	// RecordDelivery stores dispatcher-reported counters and final status.
	RecordDelivery(ctx context.Context, occurrenceID string, d DeliveryReport) error

	// CountActiveContacts is the recipient fallback when no list, segment
	// or dynamic source is configured.
	CountActiveContacts(ctx context.Context, userID string) (int, error)

	// TemplateExists reports whether userID owns templateID.
	TemplateExists(ctx context.Context, userID, templateID string) (bool, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name                  *string
	Description           *string
	Subject               *string
	TemplateID            *string
	Schedule              *domain.ScheduleRule
	StartDate             *time.Time
	EndDate               *time.Time
	ClearEndDate          bool
	MaxOccurrences        *int
	ClearMaxOccurrences   bool
	RecipientListID       *string
	SegmentID             *string
	DynamicRecipients     *bool
	HTMLTemplate          *string
	TextTemplate          *string
	AutoGenerateText      *bool
	SendRateLimit         *int
	PersonalizationFields map[string]string
	NextSendAt            *time.Time
	ClearNextSendAt       bool
}

// StatusChange is a lifecycle transition applied atomically by the
// repository.
type StatusChange struct {
	From          []domain.RecurringStatus
	To            domain.RecurringStatus
	NextSendAt    *time.Time
	ClearNextSend bool
	PausedAt      *time.Time
	ClearPausedAt bool
	CancelledAt   *time.Time
	// SkipPending marks pending occurrences scheduled after CancelledAt as
	// skipped in the same transaction.
	SkipPending bool
}

// OccurrenceTotals is the aggregate over a campaign's occurrences.
type OccurrenceTotals struct {
	Total    int
	Sent     int
	Failed   int
	Skipped  int
	Pending  int
	Counters domain.DeliveryCounters
}

// DeliveryReport is what a dispatcher sends back for one occurrence.
type DeliveryReport struct {
	Status       domain.OccurrenceStatus
	SentAt       *time.Time
	ErrorMessage string
	Counters     domain.DeliveryCounters
	RetryCount   int
	NextRetryAt  *time.Time
}
