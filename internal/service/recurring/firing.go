package recurring

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
)

// ErrNotDue is returned by FireOccurrence when, under the row lock, the
// campaign is no longer firing or its next send is still in the future.
var ErrNotDue = errors.New("recurring campaign is not due")

// FirePlan is what the scheduler decided for one due campaign.
type FirePlan struct {
	// Occurrence is nil when nothing should be recorded, e.g. the due
	// instant fell past end_date.
	Occurrence *domain.Occurrence
	NextSendAt *time.Time
	Complete   bool
}

// PlanFunc decides the outcome of firing c. sequence is the number the new
// occurrence would get.
type PlanFunc func(c *domain.RecurringCampaign, sequence int) (FirePlan, error)

// OccurrenceStore is the scheduler-facing side of campaign storage.
type OccurrenceStore interface {
	// DueCampaigns returns ids of firing campaigns with next_send_at <= now,
	// earliest first.
	DueCampaigns(ctx context.Context, now time.Time, limit int) ([]string, error)

	// FireOccurrence locks the campaign row, re-checks that it is due, asks
	// plan what to do and applies the result in one transaction.
	FireOccurrence(ctx context.Context, campaignID string, now time.Time, plan PlanFunc) (*domain.Occurrence, error)

	// Recipients returns who an occurrence goes to: its snapshot, or the
	// live audience for dynamic campaigns.
	Recipients(ctx context.Context, c *domain.RecurringCampaign, occurrenceID string) ([]domain.Recipient, error)

	// GetCampaign loads a campaign without an owner check.
	GetCampaign(ctx context.Context, id string) (*domain.RecurringCampaign, error)

	RecordDelivery(ctx context.Context, occurrenceID string, d DeliveryReport) error
}
