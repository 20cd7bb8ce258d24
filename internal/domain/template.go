package domain

import "time"

// TemplateType classifies what a template is used for.
type TemplateType string

const (
	TemplateNewsletter    TemplateType = "newsletter"
	TemplatePromotional   TemplateType = "promotional"
	TemplateTransactional TemplateType = "transactional"
	TemplateWelcome       TemplateType = "welcome"
)

// TemplateStatus enumerates the publishing states of a template.
type TemplateStatus string

const (
	TemplateDraft     TemplateStatus = "draft"
	TemplatePublished TemplateStatus = "published"
	TemplateArchived  TemplateStatus = "archived"
)

// Template is reusable email content referenced by recurring campaigns.
type Template struct {
	ID               string         `json:"id" db:"id"`
	UserID           string         `json:"user_id" db:"user_id"`
	Name             string         `json:"name" db:"name"`
	Type             TemplateType   `json:"type" db:"type"`
	Status           TemplateStatus `json:"status" db:"status"`
	Subject          string         `json:"subject" db:"subject"`
	HTMLContent      string         `json:"html_content" db:"html_content"`
	TextContent      string         `json:"text_content" db:"text_content"`
	Description      string         `json:"description" db:"description"`
	Tags             []string       `json:"tags" db:"tags"`
	Folder           string         `json:"folder" db:"folder"`
	Version          int            `json:"version" db:"version"`
	UsageCount       int            `json:"usage_count" db:"usage_count"`
	ParentTemplateID *string        `json:"parent_template_id" db:"parent_template_id"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}
