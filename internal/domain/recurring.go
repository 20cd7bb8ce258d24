package domain

import (
	"strings"
	"time"
)

// Frequency enumerates how often a recurring campaign fires.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
	FrequencyCustom    Frequency = "custom"
)

// Frequencies lists every supported frequency in display order.
var Frequencies = []Frequency{
	FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly,
	FrequencyQuarterly, FrequencyYearly, FrequencyCustom,
}

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	for _, k := range Frequencies {
		if k == f {
			return true
		}
	}
	return false
}

// Weekday is a lowercase English day name ("monday" ... "sunday").
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists the week starting on Monday.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayToStd = map[Weekday]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

// Std converts the day name into a time.Weekday. ok is false for unknown names.
func (w Weekday) Std() (time.Weekday, bool) {
	d, ok := weekdayToStd[Weekday(strings.ToLower(string(w)))]
	return d, ok
}

// WeekdayOf returns the Weekday name for a time.Weekday.
func WeekdayOf(d time.Weekday) Weekday {
	return Weekday(strings.ToLower(d.String()))
}

// LastWeekOfMonth is the MonthlyWeek value meaning "the last <weekday> of the month".
const LastWeekOfMonth = 5

// ScheduleRule describes a recurrence pattern. It is embedded in
// RecurringCampaign and never persisted on its own.
type ScheduleRule struct {
	Frequency          Frequency `json:"frequency"`
	CustomIntervalDays *int      `json:"custom_interval_days,omitempty"`
	Weekdays           []Weekday `json:"weekdays,omitempty"`
	MonthlyDay         *int      `json:"monthly_day,omitempty"`
	MonthlyWeek        *int      `json:"monthly_week,omitempty"`
	MonthlyWeekday     *Weekday  `json:"monthly_weekday,omitempty"`
	SendTime           string    `json:"send_time"` // HH:MM, 24h
	Timezone           string    `json:"timezone"`
	SkipWeekends       bool      `json:"skip_weekends"`
	SkipHolidays       bool      `json:"skip_holidays"`
}

// Location resolves the rule's timezone, falling back to UTC.
func (r ScheduleRule) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RecurringStatus enumerates the lifecycle states of a recurring campaign.
type RecurringStatus string

const (
	RecurringDraft     RecurringStatus = "draft"
	RecurringScheduled RecurringStatus = "scheduled"
	RecurringActive    RecurringStatus = "active"
	RecurringPaused    RecurringStatus = "paused"
	RecurringCompleted RecurringStatus = "completed"
	RecurringCancelled RecurringStatus = "cancelled"
)

// Send-rate bounds in emails per hour.
const (
	DefaultSendRateLimit = 1000
	MinSendRateLimit     = 100
	MaxSendRateLimit     = 10000
	MaxOccurrencesLimit  = 1000
)

// RecurringCampaign is the aggregate root for a repeating email send.
type RecurringCampaign struct {
	ID          string  `json:"id" db:"id"`
	UserID      string  `json:"user_id" db:"user_id"`
	TemplateID  *string `json:"template_id" db:"template_id"`
	Name        string  `json:"name" db:"name"`
	Description string  `json:"description" db:"description"`
	Subject     string  `json:"subject" db:"subject"`

	Schedule ScheduleRule `json:"schedule"`

	StartDate      time.Time       `json:"start_date" db:"start_date"`
	EndDate        *time.Time      `json:"end_date" db:"end_date"`
	MaxOccurrences *int            `json:"max_occurrences" db:"max_occurrences"`
	Status         RecurringStatus `json:"status" db:"status"`

	RecipientListID   *string `json:"recipient_list_id" db:"recipient_list_id"`
	SegmentID         *string `json:"segment_id" db:"segment_id"`
	DynamicRecipients bool    `json:"dynamic_recipients" db:"dynamic_recipients"`

	HTMLTemplate          string            `json:"html_template" db:"html_template"`
	TextTemplate          string            `json:"text_template" db:"text_template"`
	AutoGenerateText      bool              `json:"auto_generate_text" db:"auto_generate_text"`
	SendRateLimit         int               `json:"send_rate_limit" db:"send_rate_limit"`
	PersonalizationFields map[string]string `json:"personalization_fields" db:"personalization_fields"`

	TotalScheduled int `json:"total_scheduled" db:"total_scheduled"`
	TotalSent      int `json:"total_sent" db:"total_sent"`
	TotalFailed    int `json:"total_failed" db:"total_failed"`

	LastSentAt  *time.Time `json:"last_sent_at" db:"last_sent_at"`
	NextSendAt  *time.Time `json:"next_send_at" db:"next_send_at"`
	PausedAt    *time.Time `json:"paused_at" db:"paused_at"`
	CancelledAt *time.Time `json:"cancelled_at" db:"cancelled_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true once the campaign can no longer change state.
func (c *RecurringCampaign) IsTerminal() bool {
	return c.Status == RecurringCompleted || c.Status == RecurringCancelled
}

// IsFiring returns true if the scheduler should consider the campaign.
func (c *RecurringCampaign) IsFiring() bool {
	return c.Status == RecurringActive || c.Status == RecurringScheduled
}

// HasRecipients reports whether a recipient source is configured.
func (c *RecurringCampaign) HasRecipients() bool {
	return (c.RecipientListID != nil && *c.RecipientListID != "") ||
		(c.SegmentID != nil && *c.SegmentID != "") ||
		c.DynamicRecipients
}

// OccurrenceStatus enumerates the states of a single send instance.
type OccurrenceStatus string

const (
	OccurrencePending OccurrenceStatus = "pending"
	OccurrenceSent    OccurrenceStatus = "sent"
	OccurrenceFailed  OccurrenceStatus = "failed"
	OccurrenceSkipped OccurrenceStatus = "skipped"
)

// Occurrence is one concrete send of a recurring campaign.
type Occurrence struct {
	ID                  string           `json:"id" db:"id"`
	RecurringCampaignID string           `json:"recurring_campaign_id" db:"recurring_campaign_id"`
	SequenceNumber      int              `json:"sequence_number" db:"sequence_number"`
	Subject             string           `json:"subject" db:"subject"`
	ScheduledAt         time.Time        `json:"scheduled_at" db:"scheduled_at"`
	SentAt              *time.Time       `json:"sent_at" db:"sent_at"`
	Status              OccurrenceStatus `json:"status" db:"status"`
	ErrorMessage        string           `json:"error_message,omitempty" db:"error_message"`

	DeliveryCounters

	RetryCount  int        `json:"retry_count" db:"retry_count"`
	NextRetryAt *time.Time `json:"next_retry_at" db:"next_retry_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// DeliveryCounters are reported asynchronously by the dispatcher.
type DeliveryCounters struct {
	RecipientsCount    int `json:"recipients_count" db:"recipients_count"`
	EmailsSent         int `json:"emails_sent" db:"emails_sent"`
	EmailsDelivered    int `json:"emails_delivered" db:"emails_delivered"`
	EmailsBounced      int `json:"emails_bounced" db:"emails_bounced"`
	EmailsOpened       int `json:"emails_opened" db:"emails_opened"`
	EmailsClicked      int `json:"emails_clicked" db:"emails_clicked"`
	EmailsUnsubscribed int `json:"emails_unsubscribed" db:"emails_unsubscribed"`
}

// Recipient is one addressee of an occurrence.
type Recipient struct {
	ContactID string            `json:"contact_id"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Fields    map[string]string `json:"fields,omitempty"`
}
