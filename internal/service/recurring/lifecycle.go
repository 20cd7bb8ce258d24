package recurring

import (
	"context"
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/pkg/logger"
	"github.com/ignite/cadence-mailer/internal/schedule"
)

// activationGrace is how far in the past a draft's start date may be.
const activationGrace = time.Hour

// CanActivate checks if a campaign in the given status can be activated.
func CanActivate(status domain.RecurringStatus) (bool, string) {
	switch status {
	case domain.RecurringDraft, domain.RecurringPaused:
		return true, ""
	case domain.RecurringActive, domain.RecurringScheduled:
		return false, "campaign is already active"
	default:
		return false, "campaign has finished"
	}
}

// CanPause checks if a campaign in the given status can be paused.
func CanPause(status domain.RecurringStatus) (bool, string) {
	if status == domain.RecurringActive || status == domain.RecurringScheduled {
		return true, ""
	}
	return false, "only active campaigns can be paused"
}

// CanResume checks if a campaign in the given status can be resumed.
func CanResume(status domain.RecurringStatus) (bool, string) {
	if status == domain.RecurringPaused {
		return true, ""
	}
	return false, "only paused campaigns can be resumed"
}

// CanCancel checks if a campaign in the given status can be cancelled.
func CanCancel(status domain.RecurringStatus) (bool, string) {
	switch status {
	case domain.RecurringCompleted:
		return false, "campaign already completed"
	case domain.RecurringCancelled:
		return false, "campaign already cancelled"
	default:
		return true, ""
	}
}

// CanDelete checks if a campaign in the given status can be deleted.
func CanDelete(status domain.RecurringStatus) (bool, string) {
	switch status {
	case domain.RecurringDraft, domain.RecurringCompleted, domain.RecurringCancelled:
		return true, ""
	default:
		return false, "cancel the campaign before deleting it"
	}
}

// Activate moves a draft or paused campaign to active after checking that
// it can actually send. Every problem found is reported at once.
func (s *Service) Activate(ctx context.Context, userID, id string) (*domain.RecurringCampaign, error) {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if ok, _ := CanActivate(c.Status); !ok {
		return nil, &StateTransitionError{Op: "activate", From: c.Status}
	}

	now := s.now()
	next, err := s.readyToSend(ctx, c, now)
	if err != nil {
		return nil, err
	}

	err = s.repo.ChangeStatus(ctx, userID, id, StatusChange{
		From:          []domain.RecurringStatus{domain.RecurringDraft, domain.RecurringPaused},
		To:            domain.RecurringActive,
		NextSendAt:    &next,
		ClearPausedAt: true,
	})
	if err != nil {
		return nil, err
	}
	c.Status = domain.RecurringActive
	c.NextSendAt = &next
	c.PausedAt = nil

	logger.Info("recurring campaign activated", "campaign_id", id, "next_send_at", next.Format(time.RFC3339))
	return c, nil
}

// Pause stops firing. next_send_at is kept so resume continues the series.
func (s *Service) Pause(ctx context.Context, userID, id string) (*domain.RecurringCampaign, error) {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if ok, _ := CanPause(c.Status); !ok {
		return nil, &StateTransitionError{Op: "pause", From: c.Status}
	}

	now := s.now().UTC()
	err = s.repo.ChangeStatus(ctx, userID, id, StatusChange{
		From:     []domain.RecurringStatus{domain.RecurringActive, domain.RecurringScheduled},
		To:       domain.RecurringPaused,
		PausedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	c.Status = domain.RecurringPaused
	c.PausedAt = &now

	logger.Info("recurring campaign paused", "campaign_id", id)
	return c, nil
}

// Resume reactivates a paused campaign, recomputing next_send_at only when
// an edit cleared it.
func (s *Service) Resume(ctx context.Context, userID, id string) (*domain.RecurringCampaign, error) {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if ok, _ := CanResume(c.Status); !ok {
		return nil, &StateTransitionError{Op: "resume", From: c.Status}
	}

	next := c.NextSendAt
	if next == nil {
		t, ok := s.nextFor(c, s.now())
		if !ok {
			verr := &schedule.ValidationError{Cause: schedule.ErrSchedulingOverflow}
			verr.Add("schedule", schedule.CodeInvalid, "no future send dates found with this configuration")
			return nil, verr
		}
		next = &t
	}

	err = s.repo.ChangeStatus(ctx, userID, id, StatusChange{
		From:          []domain.RecurringStatus{domain.RecurringPaused},
		To:            domain.RecurringActive,
		NextSendAt:    next,
		ClearPausedAt: true,
	})
	if err != nil {
		return nil, err
	}
	c.Status = domain.RecurringActive
	c.NextSendAt = next
	c.PausedAt = nil

	logger.Info("recurring campaign resumed", "campaign_id", id, "next_send_at", next.Format(time.RFC3339))
	return c, nil
}

// Cancel ends the series. Pending occurrences that have not fired yet are
// marked skipped.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*domain.RecurringCampaign, error) {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if ok, _ := CanCancel(c.Status); !ok {
		return nil, &StateTransitionError{Op: "cancel", From: c.Status}
	}

	now := s.now().UTC()
	err = s.repo.ChangeStatus(ctx, userID, id, StatusChange{
		From: []domain.RecurringStatus{
			domain.RecurringDraft, domain.RecurringScheduled,
			domain.RecurringActive, domain.RecurringPaused,
		},
		To:            domain.RecurringCancelled,
		ClearNextSend: true,
		CancelledAt:   &now,
		SkipPending:   true,
	})
	if err != nil {
		return nil, err
	}
	c.Status = domain.RecurringCancelled
	c.NextSendAt = nil
	c.CancelledAt = &now

	logger.Info("recurring campaign cancelled", "campaign_id", id)
	return c, nil
}

// readyToSend runs the activation checks and returns the first send instant.
func (s *Service) readyToSend(ctx context.Context, c *domain.RecurringCampaign, now time.Time) (time.Time, error) {
	verr := &schedule.ValidationError{}

	rule, ruleErr := schedule.Normalize(c.Schedule)
	verr.Merge(ruleErr)

	switch {
	case c.StartDate.IsZero():
		verr.Add("start_date", schedule.CodeRequired, "start_date is required")
	case c.Status == domain.RecurringDraft && c.StartDate.Before(now.Add(-activationGrace)):
		verr.Add("start_date", schedule.CodeOutOfRange, "start_date is too far in the past")
	}

	hasTemplate := c.TemplateID != nil && *c.TemplateID != ""
	switch {
	case c.HTMLTemplate == "" && !hasTemplate:
		verr.Add("content", schedule.CodeRequired, "no email content configured")
	case c.HTMLTemplate == "" && hasTemplate:
		ok, err := s.repo.TemplateExists(ctx, c.UserID, *c.TemplateID)
		if err != nil {
			return time.Time{}, err
		}
		if !ok {
			verr.Add("template_id", schedule.CodeInvalid, "template not found")
		}
	}

	if !c.HasRecipients() {
		n, err := s.repo.CountActiveContacts(ctx, c.UserID)
		if err != nil {
			return time.Time{}, err
		}
		if n == 0 {
			verr.Add("recipients", schedule.CodeRequired, "no recipients configured and no active contacts found")
		}
	}

	var next time.Time
	if ruleErr == nil && !c.StartDate.IsZero() {
		if c.EndDate != nil && c.MaxOccurrences != nil {
			if last, ok := s.calc.NthOccurrence(rule, c.StartDate, *c.MaxOccurrences, now); ok && last.After(*c.EndDate) {
				verr.Add("max_occurrences", schedule.CodeConflict, "max_occurrences cannot be reached before end_date")
			}
		}

		c.Schedule = rule
		t, ok := s.nextFor(c, now)
		switch {
		case !ok:
			verr.Cause = schedule.ErrSchedulingOverflow
			verr.Add("schedule", schedule.CodeInvalid, "no valid send dates found with this configuration")
		case c.EndDate != nil && t.After(*c.EndDate):
			verr.Add("end_date", schedule.CodeInvalid, "end_date is before the first send date")
		default:
			next = t
		}
	}

	if err := verr.OrNil(); err != nil {
		return time.Time{}, err
	}
	return next, nil
}

// nextFor picks the next send instant: the stored pointer, else the one
// after the last send, else the first on or after start_date.
func (s *Service) nextFor(c *domain.RecurringCampaign, now time.Time) (time.Time, bool) {
	if c.NextSendAt != nil {
		return *c.NextSendAt, true
	}
	if c.LastSentAt != nil {
		return s.calc.NextQualifying(c.Schedule, *c.LastSentAt, now)
	}
	return s.calc.FirstQualifying(c.Schedule, c.StartDate, now)
}
