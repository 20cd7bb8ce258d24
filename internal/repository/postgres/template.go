package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/service/template"
)

const templateColumns = `
	id, user_id, name, type, status, subject, html_content, text_content,
	description, tags, folder, version, usage_count, parent_template_id,
	created_at, updated_at`

// TemplateRepo implements template.Repository against PostgreSQL.
type TemplateRepo struct{ db *sql.DB }

func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

func scanTemplate(row rowScanner) (*domain.Template, error) {
	var (
		t      domain.Template
		tags   pq.StringArray
		parent sql.NullString
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &t.Name, &t.Type, &t.Status, &t.Subject, &t.HTMLContent, &t.TextContent,
		&t.Description, &tags, &t.Folder, &t.Version, &t.UsageCount, &parent,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Tags = []string(tags)
	t.ParentTemplateID = strPtr(parent)
	return &t, nil
}

func (r *TemplateRepo) Get(ctx context.Context, userID, id string) (*domain.Template, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, template.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) List(ctx context.Context, userID string, f template.ListFilter) ([]domain.Template, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	where := ` WHERE user_id = $1`
	args := []any{userID}
	if f.Type != "" {
		args = append(args, f.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Folder != "" {
		args = append(args, f.Folder)
		where += fmt.Sprintf(" AND folder = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR subject ILIKE $%d)", len(args), len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_templates`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count templates: %w", err)
	}

	q := `SELECT ` + templateColumns + ` FROM email_templates` + where +
		fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

func (r *TemplateRepo) Create(ctx context.Context, t *domain.Template) (string, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_templates
			(id, user_id, name, type, status, subject, html_content, text_content,
			 description, tags, folder, version, parent_template_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`, t.ID, t.UserID, t.Name, string(t.Type), string(t.Status), t.Subject, t.HTMLContent, t.TextContent,
		t.Description, pq.Array(tags), t.Folder, t.Version, t.ParentTemplateID)
	if err != nil {
		return "", fmt.Errorf("insert template: %w", err)
	}
	return t.ID, nil
}

func (r *TemplateRepo) Update(ctx context.Context, userID, id string, u template.UpdateFields) error {
	b := &setBuilder{}
	if u.Name != nil {
		b.add("name", *u.Name)
	}
	if u.Type != nil {
		b.add("type", string(*u.Type))
	}
	if u.Status != nil {
		b.add("status", string(*u.Status))
	}
	if u.Subject != nil {
		b.add("subject", *u.Subject)
	}
	if u.HTMLContent != nil {
		b.add("html_content", *u.HTMLContent)
	}
	if u.TextContent != nil {
		b.add("text_content", *u.TextContent)
	}
	if u.Description != nil {
		b.add("description", *u.Description)
	}
	if u.Tags != nil {
		b.add("tags", pq.Array(u.Tags))
	}
	if u.Folder != nil {
		b.add("folder", *u.Folder)
	}
	if u.BumpVersion {
		b.raw("version = version + 1")
	}
	if b.empty() {
		return nil
	}
	b.raw("updated_at = NOW()")

	q := fmt.Sprintf(`UPDATE email_templates SET %s WHERE id = %s AND user_id = %s`,
		joinComma(b.sets), b.next(id), b.next(userID))
	res, err := r.db.ExecContext(ctx, q, b.args...)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (r *TemplateRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM email_templates WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (r *TemplateRepo) IncrementUsage(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE email_templates SET usage_count = usage_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment template usage: %w", err)
	}
	return nil
}
