package recurring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/pkg/logger"
	"github.com/ignite/cadence-mailer/internal/schedule"
)

// Service implements business logic for recurring campaigns.
type Service struct {
	repo Repository
	calc *schedule.Calculator
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new recurring campaign service. A nil calculator
// falls back to one without holidays.
func NewService(repo Repository, calc *schedule.Calculator, opts ...Option) *Service {
	if calc == nil {
		calc = schedule.NewCalculator(nil)
	}
	s := &Service{repo: repo, calc: calc, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create validates input and stores a new draft campaign.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*domain.RecurringCampaign, error) {
	verr := &schedule.ValidationError{}
	checkStruct(verr, in)
	rule, err := schedule.Normalize(in.Schedule)
	verr.Merge(err)
	checkWindow(verr, in.StartDate, in.EndDate)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	rate := in.SendRateLimit
	if rate == 0 {
		rate = domain.DefaultSendRateLimit
	}
	now := s.now().UTC()
	c := &domain.RecurringCampaign{
		ID:                    uuid.New().String(),
		UserID:                userID,
		TemplateID:            in.TemplateID,
		Name:                  in.Name,
		Description:           in.Description,
		Subject:               in.Subject,
		Schedule:              rule,
		StartDate:             in.StartDate,
		EndDate:               in.EndDate,
		MaxOccurrences:        in.MaxOccurrences,
		Status:                domain.RecurringDraft,
		RecipientListID:       in.RecipientListID,
		SegmentID:             in.SegmentID,
		DynamicRecipients:     in.DynamicRecipients,
		HTMLTemplate:          in.HTMLTemplate,
		TextTemplate:          in.TextTemplate,
		AutoGenerateText:      in.AutoGenerateText,
		SendRateLimit:         rate,
		PersonalizationFields: in.PersonalizationFields,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create recurring campaign: %w", err)
	}
	c.ID = id

	logger.Info("recurring campaign created", "campaign_id", id, "user_id", userID, "frequency", string(rule.Frequency))
	return c, nil
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.RecurringCampaign, error) {
	return s.repo.Get(ctx, userID, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, userID string, f ListFilter) ([]domain.RecurringCampaign, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Status != "" {
		verr := &schedule.ValidationError{}
		if !validStatus(domain.RecurringStatus(f.Status)) {
			verr.Add("status", schedule.CodeInvalid, "unknown status")
			return nil, 0, verr
		}
	}
	return s.repo.List(ctx, userID, f)
}

// Update applies a partial update. While a campaign is firing, changing
// its cadence or start date is refused until it is paused.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*domain.RecurringCampaign, error) {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if c.IsTerminal() {
		return nil, &StateTransitionError{Op: "update", From: c.Status}
	}

	verr := &schedule.ValidationError{}
	checkStruct(verr, in)

	var rule *domain.ScheduleRule
	if in.Schedule != nil {
		r, err := schedule.Normalize(*in.Schedule)
		if err != nil {
			verr.Merge(err)
		} else {
			rule = &r
		}
	}

	if c.IsFiring() {
		if field := restrictedChange(c, in.Schedule, rule, in.StartDate); field != "" {
			return nil, &StateTransitionError{Op: "update", From: c.Status, Field: field}
		}
	}

	start := c.StartDate
	if in.StartDate != nil {
		start = *in.StartDate
	}
	end := c.EndDate
	if in.ClearEndDate {
		end = nil
	} else if in.EndDate != nil {
		end = in.EndDate
	}
	checkWindow(verr, start, end)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	u := UpdateFields{
		Name:                  in.Name,
		Description:           in.Description,
		Subject:               in.Subject,
		TemplateID:            in.TemplateID,
		Schedule:              rule,
		StartDate:             in.StartDate,
		EndDate:               in.EndDate,
		ClearEndDate:          in.ClearEndDate,
		MaxOccurrences:        in.MaxOccurrences,
		ClearMaxOccurrences:   in.ClearMaxOccurrences,
		RecipientListID:       in.RecipientListID,
		SegmentID:             in.SegmentID,
		DynamicRecipients:     in.DynamicRecipients,
		HTMLTemplate:          in.HTMLTemplate,
		TextTemplate:          in.TextTemplate,
		AutoGenerateText:      in.AutoGenerateText,
		SendRateLimit:         in.SendRateLimit,
		PersonalizationFields: in.PersonalizationFields,
	}
	switch {
	// A paused campaign recomputes its next send on resume.
	case c.Status == domain.RecurringPaused && (rule != nil || in.StartDate != nil):
		u.ClearNextSendAt = true
	case c.IsFiring() && rule != nil && !sameTiming(c.Schedule, *rule):
		next, err := s.rescheduled(c, *rule)
		if err != nil {
			return nil, err
		}
		u.NextSendAt = &next
	}

	if err := s.repo.Update(ctx, userID, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID, id)
}

// Delete removes a campaign that is not live.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	c, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if ok, _ := CanDelete(c.Status); !ok {
		return &StateTransitionError{Op: "delete", From: c.Status}
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	logger.Info("recurring campaign deleted", "campaign_id", id, "user_id", userID)
	return nil
}

// ListOccurrences returns a page of a campaign's send history.
func (s *Service) ListOccurrences(ctx context.Context, userID, id string, limit, offset int) ([]domain.Occurrence, int, error) {
	if _, err := s.repo.Get(ctx, userID, id); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListOccurrences(ctx, id, limit, offset)
}

// RecordDelivery stores the outcome a dispatcher reports for one occurrence.
func (s *Service) RecordDelivery(ctx context.Context, occurrenceID string, d DeliveryReport) error {
	switch d.Status {
	case domain.OccurrencePending, domain.OccurrenceSent, domain.OccurrenceFailed, domain.OccurrenceSkipped:
	default:
		verr := &schedule.ValidationError{}
		verr.Add("status", schedule.CodeInvalid, "unknown occurrence status")
		return verr
	}
	return s.repo.RecordDelivery(ctx, occurrenceID, d)
}

// restrictedChange returns the first cadence field that the update would
// change, or "".
func restrictedChange(c *domain.RecurringCampaign, raw, normalized *domain.ScheduleRule, start *time.Time) string {
	if raw != nil {
		next := raw
		if normalized != nil {
			next = normalized
		}
		old := c.Schedule
		switch {
		case next.Frequency != old.Frequency:
			return "frequency"
		case !intPtrEqual(next.CustomIntervalDays, old.CustomIntervalDays):
			return "custom_interval_days"
		case !weekdaysEqual(next.Weekdays, old.Weekdays):
			return "weekdays"
		case next.SendTime != old.SendTime:
			return "send_time"
		}
	}
	if start != nil && !start.Equal(c.StartDate) {
		return "start_date"
	}
	return ""
}

// rescheduled returns the first instant at or after now under rule, for a
// live campaign whose timing settings changed.
func (s *Service) rescheduled(c *domain.RecurringCampaign, rule domain.ScheduleRule) (time.Time, error) {
	now := s.now().UTC()
	from := c.StartDate
	if now.After(from) {
		from = now
	}
	next, ok := s.calc.FirstQualifying(rule, from, now)
	if !ok {
		verr := &schedule.ValidationError{Cause: schedule.ErrSchedulingOverflow}
		verr.Add("schedule", schedule.CodeInvalid, "no future send dates found with this configuration")
		return time.Time{}, verr
	}
	return next, nil
}

// sameTiming reports whether two rules place sends identically apart from
// the restricted cadence fields.
func sameTiming(a, b domain.ScheduleRule) bool {
	return a.Timezone == b.Timezone &&
		a.SkipWeekends == b.SkipWeekends &&
		a.SkipHolidays == b.SkipHolidays &&
		intPtrEqual(a.MonthlyDay, b.MonthlyDay) &&
		intPtrEqual(a.MonthlyWeek, b.MonthlyWeek) &&
		weekdayPtrEqual(a.MonthlyWeekday, b.MonthlyWeekday)
}

func weekdayPtrEqual(a, b *domain.Weekday) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func weekdaysEqual(a, b []domain.Weekday) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func validStatus(st domain.RecurringStatus) bool {
	switch st {
	case domain.RecurringDraft, domain.RecurringScheduled, domain.RecurringActive,
		domain.RecurringPaused, domain.RecurringCompleted, domain.RecurringCancelled:
		return true
	}
	return false
}
