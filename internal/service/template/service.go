package template

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/pkg/logger"
	"github.com/ignite/cadence-mailer/internal/pkg/validate"
	"github.com/ignite/cadence-mailer/internal/render"
	"github.com/ignite/cadence-mailer/internal/schedule"
)

// Service implements template business logic.
type Service struct {
	repo   Repository
	engine *render.Engine
}

// NewService creates a template service. engine renders previews and
// checks Liquid syntax on save.
func NewService(repo Repository, engine *render.Engine) *Service {
	if engine == nil {
		engine = render.NewEngine()
	}
	return &Service{repo: repo, engine: engine}
}

// CreateInput holds the fields for a new template.
type CreateInput struct {
	Name        string              `json:"name" validate:"required,max=255"`
	Type        domain.TemplateType `json:"type" validate:"omitempty,oneof=newsletter promotional transactional welcome"`
	Subject     string              `json:"subject" validate:"max=500"`
	HTMLContent string              `json:"html_content"`
	TextContent string              `json:"text_content"`
	Description string              `json:"description" validate:"max=2000"`
	Tags        []string            `json:"tags" validate:"max=20,dive,max=50"`
	Folder      string              `json:"folder" validate:"max=255"`
}

// UpdateInput holds optional template changes.
type UpdateInput struct {
	Name        *string                `json:"name" validate:"omitempty,min=1,max=255"`
	Type        *domain.TemplateType   `json:"type" validate:"omitempty,oneof=newsletter promotional transactional welcome"`
	Status      *domain.TemplateStatus `json:"status" validate:"omitempty,oneof=draft published archived"`
	Subject     *string                `json:"subject" validate:"omitempty,max=500"`
	HTMLContent *string                `json:"html_content"`
	TextContent *string                `json:"text_content"`
	Description *string                `json:"description" validate:"omitempty,max=2000"`
	Tags        []string               `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Folder      *string                `json:"folder" validate:"omitempty,max=255"`
}

// RenderInput supplies variables for a preview. Unset built-ins fall back
// to a sample recipient.
type RenderInput struct {
	Variables map[string]interface{} `json:"variables"`
}

// RenderResult is a rendered preview.
type RenderResult struct {
	Subject string                   `json:"subject"`
	HTML    string                   `json:"html"`
	Text    string                   `json:"text"`
	Missing []render.MissingVariable `json:"missing_variables,omitempty"`
}

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

func (s *Service) checkSyntax(verr *schedule.ValidationError, field, body string) {
	if body == "" {
		return
	}
	if err := s.engine.Parse(body); err != nil {
		verr.Add(field, schedule.CodeInvalid, err.Error())
	}
}

// Get returns a single template.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Template, error) {
	return s.repo.Get(ctx, userID, id)
}

// List returns templates matching the filter.
func (s *Service) List(ctx context.Context, userID string, f ListFilter) ([]domain.Template, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.repo.List(ctx, userID, f)
}

// Create validates and stores a new draft template at version 1.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*domain.Template, error) {
	verr := &schedule.ValidationError{}
	checkStruct(verr, in)
	s.checkSyntax(verr, "subject", in.Subject)
	s.checkSyntax(verr, "html_content", in.HTMLContent)
	s.checkSyntax(verr, "text_content", in.TextContent)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	typ := in.Type
	if typ == "" {
		typ = domain.TemplateNewsletter
	}
	now := time.Now().UTC()
	t := &domain.Template{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        in.Name,
		Type:        typ,
		Status:      domain.TemplateDraft,
		Subject:     in.Subject,
		HTMLContent: in.HTMLContent,
		TextContent: in.TextContent,
		Description: in.Description,
		Tags:        in.Tags,
		Folder:      in.Folder,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := s.repo.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	t.ID = id
	logger.Info("template created", "template_id", id, "user_id", userID)
	return t, nil
}

// Update applies a partial update. Content changes bump the version.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*domain.Template, error) {
	current, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	verr := &schedule.ValidationError{}
	checkStruct(verr, in)
	if in.Subject != nil {
		s.checkSyntax(verr, "subject", *in.Subject)
	}
	if in.HTMLContent != nil {
		s.checkSyntax(verr, "html_content", *in.HTMLContent)
	}
	if in.TextContent != nil {
		s.checkSyntax(verr, "text_content", *in.TextContent)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	u := UpdateFields{
		Name:        in.Name,
		Type:        in.Type,
		Status:      in.Status,
		Subject:     in.Subject,
		HTMLContent: in.HTMLContent,
		TextContent: in.TextContent,
		Description: in.Description,
		Tags:        in.Tags,
		Folder:      in.Folder,
	}
	u.BumpVersion = changed(in.Subject, current.Subject) ||
		changed(in.HTMLContent, current.HTMLContent) ||
		changed(in.TextContent, current.TextContent)

	if err := s.repo.Update(ctx, userID, id, u); err != nil {
		return nil, err
	}
	if u.BumpVersion {
		s.engine.Forget(cacheKey(id, current.Version))
	}
	return s.repo.Get(ctx, userID, id)
}

// Delete removes a template.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	logger.Info("template deleted", "template_id", id, "user_id", userID)
	return nil
}

// Duplicate copies a template into a new draft that records its parent.
func (s *Service) Duplicate(ctx context.Context, userID, id string) (*domain.Template, error) {
	src, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	parent := src.ID
	dup := &domain.Template{
		ID:               uuid.New().String(),
		UserID:           userID,
		Name:             src.Name + " (Copy)",
		Type:             src.Type,
		Status:           domain.TemplateDraft,
		Subject:          src.Subject,
		HTMLContent:      src.HTMLContent,
		TextContent:      src.TextContent,
		Description:      src.Description,
		Tags:             append([]string(nil), src.Tags...),
		Folder:           src.Folder,
		Version:          1,
		ParentTemplateID: &parent,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	newID, err := s.repo.Create(ctx, dup)
	if err != nil {
		return nil, fmt.Errorf("duplicate template: %w", err)
	}
	dup.ID = newID
	return dup, nil
}

// Render previews a template against the sample recipient merged with the
// supplied variables.
func (s *Service) Render(ctx context.Context, userID, id string, in RenderInput) (*RenderResult, error) {
	t, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	vars := map[string]interface{}{
		"email":      render.SampleRecipient.Email,
		"first_name": render.SampleRecipient.FirstName,
		"last_name":  render.SampleRecipient.LastName,
		"full_name":  render.SampleRecipient.FirstName + " " + render.SampleRecipient.LastName,
	}
	for k, v := range in.Variables {
		vars[k] = v
	}

	res := &RenderResult{}
	if res.Subject, err = s.engine.Render("", t.Subject, vars); err != nil {
		return nil, err
	}
	if res.HTML, err = s.engine.Render(cacheKey(t.ID, t.Version), t.HTMLContent, vars); err != nil {
		return nil, err
	}
	if t.TextContent != "" {
		if res.Text, err = s.engine.Render("", t.TextContent, vars); err != nil {
			return nil, err
		}
	} else {
		res.Text = render.PlainText(res.HTML)
	}
	res.Missing = s.engine.Missing(t.Subject+"\n"+t.HTMLContent+"\n"+t.TextContent, vars)
	return res, nil
}

// Resolve returns the body of a template for sending and records the use.
func (s *Service) Resolve(ctx context.Context, userID, id string) (*domain.Template, error) {
	t, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.IncrementUsage(ctx, id); err != nil {
		logger.Warn("template usage not recorded", "template_id", id, "error", err.Error())
	}
	return t, nil
}

func changed(next *string, current string) bool {
	return next != nil && *next != current
}

func cacheKey(id string, version int) string {
	return fmt.Sprintf("template:%s:v%d", id, version)
}
