package recurring

import (
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/pkg/validate"
	"github.com/ignite/cadence-mailer/internal/schedule"
)

// CreateInput holds the fields for creating a new recurring campaign.
type CreateInput struct {
	Name                  string              `json:"name" validate:"required,max=255"`
	Description           string              `json:"description" validate:"max=2000"`
	Subject               string              `json:"subject" validate:"required,max=500"`
	TemplateID            *string             `json:"template_id"`
	Schedule              domain.ScheduleRule `json:"schedule"`
	StartDate             time.Time           `json:"start_date"`
	EndDate               *time.Time          `json:"end_date"`
	MaxOccurrences        *int                `json:"max_occurrences" validate:"omitempty,min=1,max=1000"`
	RecipientListID       *string             `json:"recipient_list_id"`
	SegmentID             *string             `json:"segment_id"`
	DynamicRecipients     bool                `json:"dynamic_recipients"`
	HTMLTemplate          string              `json:"html_template"`
	TextTemplate          string              `json:"text_template"`
	AutoGenerateText      bool                `json:"auto_generate_text"`
	SendRateLimit         int                 `json:"send_rate_limit" validate:"omitempty,min=100,max=10000"`
	PersonalizationFields map[string]string   `json:"personalization_fields"`
}

// UpdateInput holds optional changes. Schedule replaces the whole rule.
type UpdateInput struct {
	Name                  *string              `json:"name" validate:"omitempty,min=1,max=255"`
	Description           *string              `json:"description" validate:"omitempty,max=2000"`
	Subject               *string              `json:"subject" validate:"omitempty,min=1,max=500"`
	TemplateID            *string              `json:"template_id"`
	Schedule              *domain.ScheduleRule `json:"schedule"`
	StartDate             *time.Time           `json:"start_date"`
	EndDate               *time.Time           `json:"end_date"`
	ClearEndDate          bool                 `json:"clear_end_date"`
	MaxOccurrences        *int                 `json:"max_occurrences" validate:"omitempty,min=1,max=1000"`
	ClearMaxOccurrences   bool                 `json:"clear_max_occurrences"`
	RecipientListID       *string              `json:"recipient_list_id"`
	SegmentID             *string              `json:"segment_id"`
	DynamicRecipients     *bool                `json:"dynamic_recipients"`
	HTMLTemplate          *string              `json:"html_template"`
	TextTemplate          *string              `json:"text_template"`
	AutoGenerateText      *bool                `json:"auto_generate_text"`
	SendRateLimit         *int                 `json:"send_rate_limit" validate:"omitempty,min=100,max=10000"`
	PersonalizationFields map[string]string    `json:"personalization_fields"`
}

// PreviewInput is a schedule evaluated without persisting anything.
type PreviewInput struct {
	Schedule       domain.ScheduleRule `json:"schedule"`
	StartDate      time.Time           `json:"start_date"`
	EndDate        *time.Time          `json:"end_date"`
	MaxOccurrences *int                `json:"max_occurrences" validate:"omitempty,min=1,max=1000"`
}

// checkStruct runs tag validation and records failures on verr.
func checkStruct(verr *schedule.ValidationError, in any) {
	for _, fe := range validate.Struct(in) {
		code := schedule.CodeInvalid
		switch fe.Tag {
		case "required":
			code = schedule.CodeRequired
		case "min", "max":
			code = schedule.CodeOutOfRange
		}
		verr.Add(fe.Field, code, fe.Message)
	}
}

func checkWindow(verr *schedule.ValidationError, start time.Time, end *time.Time) {
	if start.IsZero() {
		verr.Add("start_date", schedule.CodeRequired, "start_date is required")
		return
	}
	if end != nil && !end.After(start) {
		verr.Add("end_date", schedule.CodeInvalid, "end_date must be after start_date")
	}
}
