package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/service/recurring"
)

const campaignColumns = `
	id, user_id, template_id, name, description, subject,
	frequency, custom_interval_days, send_on_weekdays, monthly_day, monthly_week,
	monthly_weekday, send_time, timezone, skip_weekends, skip_holidays,
	start_date, end_date, max_occurrences, status,
	recipient_list_id, segment_id, dynamic_recipients,
	html_template, text_template, auto_generate_text, send_rate_limit, personalization_fields,
	total_scheduled, total_sent, total_failed,
	last_sent_at, next_send_at, paused_at, cancelled_at, created_at, updated_at`

const occurrenceColumns = `
	id, recurring_campaign_id, sequence_number, subject, scheduled_at, sent_at,
	status, error_message, recipients_count, emails_sent, emails_delivered,
	emails_bounced, emails_opened, emails_clicked, emails_unsubscribed,
	retry_count, next_retry_at, created_at`

// RecurringRepo implements recurring.Repository and recurring.OccurrenceStore
// against PostgreSQL.
type RecurringRepo struct{ db *sql.DB }

// NewRecurringRepo creates a Postgres-backed recurring campaign repository.
func NewRecurringRepo(db *sql.DB) *RecurringRepo { return &RecurringRepo{db: db} }

func scanCampaign(row rowScanner) (*domain.RecurringCampaign, error) {
	var (
		c                                              domain.RecurringCampaign
		templateID, monthlyWeekday, listID, segmentID  sql.NullString
		interval, monthlyDay, monthlyWeek, maxOcc      sql.NullInt64
		weekdays                                       pq.StringArray
		endDate, lastSent, nextSend, paused, cancelled sql.NullTime
		fields                                         []byte
	)
	err := row.Scan(
		&c.ID, &c.UserID, &templateID, &c.Name, &c.Description, &c.Subject,
		&c.Schedule.Frequency, &interval, &weekdays, &monthlyDay, &monthlyWeek,
		&monthlyWeekday, &c.Schedule.SendTime, &c.Schedule.Timezone, &c.Schedule.SkipWeekends, &c.Schedule.SkipHolidays,
		&c.StartDate, &endDate, &maxOcc, &c.Status,
		&listID, &segmentID, &c.DynamicRecipients,
		&c.HTMLTemplate, &c.TextTemplate, &c.AutoGenerateText, &c.SendRateLimit, &fields,
		&c.TotalScheduled, &c.TotalSent, &c.TotalFailed,
		&lastSent, &nextSend, &paused, &cancelled, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.TemplateID = strPtr(templateID)
	c.Schedule.CustomIntervalDays = intPtr(interval)
	c.Schedule.MonthlyDay = intPtr(monthlyDay)
	c.Schedule.MonthlyWeek = intPtr(monthlyWeek)
	if monthlyWeekday.Valid {
		wd := domain.Weekday(monthlyWeekday.String)
		c.Schedule.MonthlyWeekday = &wd
	}
	for _, w := range weekdays {
		c.Schedule.Weekdays = append(c.Schedule.Weekdays, domain.Weekday(w))
	}
	c.EndDate = timePtr(endDate)
	c.MaxOccurrences = intPtr(maxOcc)
	c.RecipientListID = strPtr(listID)
	c.SegmentID = strPtr(segmentID)
	c.LastSentAt = timePtr(lastSent)
	c.NextSendAt = timePtr(nextSend)
	c.PausedAt = timePtr(paused)
	c.CancelledAt = timePtr(cancelled)
	if c.PersonalizationFields, err = unmarshalFields(fields); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanOccurrence(row rowScanner) (*domain.Occurrence, error) {
	var (
		o                 domain.Occurrence
		sentAt, nextRetry sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.RecurringCampaignID, &o.SequenceNumber, &o.Subject, &o.ScheduledAt, &sentAt,
		&o.Status, &o.ErrorMessage, &o.RecipientsCount, &o.EmailsSent, &o.EmailsDelivered,
		&o.EmailsBounced, &o.EmailsOpened, &o.EmailsClicked, &o.EmailsUnsubscribed,
		&o.RetryCount, &nextRetry, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.SentAt = timePtr(sentAt)
	o.NextRetryAt = timePtr(nextRetry)
	return &o, nil
}

func weekdayStrings(in []domain.Weekday) []string {
	out := make([]string, len(in))
	for i, w := range in {
		out[i] = string(w)
	}
	return out
}

func statusStrings(in []domain.RecurringStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func (r *RecurringRepo) Get(ctx context.Context, userID, id string) (*domain.RecurringCampaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM recurring_campaigns WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, recurring.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring campaign: %w", err)
	}
	return c, nil
}

// GetCampaign loads a campaign by id alone, for background workers.
func (r *RecurringRepo) GetCampaign(ctx context.Context, id string) (*domain.RecurringCampaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM recurring_campaigns WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, recurring.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring campaign: %w", err)
	}
	return c, nil
}

func (r *RecurringRepo) List(ctx context.Context, userID string, f recurring.ListFilter) ([]domain.RecurringCampaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ` WHERE user_id = $1`
	args := []any{userID}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR subject ILIKE $%d)", len(args), len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recurring_campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count recurring campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM recurring_campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list recurring campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.RecurringCampaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan recurring campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *RecurringRepo) Create(ctx context.Context, c *domain.RecurringCampaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	fields, err := marshalFields(c.PersonalizationFields)
	if err != nil {
		return "", err
	}
	rule := c.Schedule
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO recurring_campaigns
			(id, user_id, template_id, name, description, subject,
			 frequency, custom_interval_days, send_on_weekdays, monthly_day, monthly_week,
			 monthly_weekday, send_time, timezone, skip_weekends, skip_holidays,
			 start_date, end_date, max_occurrences, status,
			 recipient_list_id, segment_id, dynamic_recipients,
			 html_template, text_template, auto_generate_text, send_rate_limit, personalization_fields,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, NOW(), NOW())
	`, c.ID, c.UserID, c.TemplateID, c.Name, c.Description, c.Subject,
		string(rule.Frequency), rule.CustomIntervalDays, pq.Array(weekdayStrings(rule.Weekdays)), rule.MonthlyDay, rule.MonthlyWeek,
		rule.MonthlyWeekday, rule.SendTime, rule.Timezone, rule.SkipWeekends, rule.SkipHolidays,
		c.StartDate, c.EndDate, c.MaxOccurrences, string(c.Status),
		c.RecipientListID, c.SegmentID, c.DynamicRecipients,
		c.HTMLTemplate, c.TextTemplate, c.AutoGenerateText, c.SendRateLimit, fields)
	if err != nil {
		return "", fmt.Errorf("create recurring campaign: %w", err)
	}
	return c.ID, nil
}

func (r *RecurringRepo) Update(ctx context.Context, userID, id string, u recurring.UpdateFields) error {
	b := &setBuilder{}
	if u.Name != nil {
		b.add("name", *u.Name)
	}
	if u.Description != nil {
		b.add("description", *u.Description)
	}
	if u.Subject != nil {
		b.add("subject", *u.Subject)
	}
	if u.TemplateID != nil {
		b.add("template_id", *u.TemplateID)
	}
	if s := u.Schedule; s != nil {
		b.add("frequency", string(s.Frequency))
		b.add("custom_interval_days", s.CustomIntervalDays)
		b.add("send_on_weekdays", pq.Array(weekdayStrings(s.Weekdays)))
		b.add("monthly_day", s.MonthlyDay)
		b.add("monthly_week", s.MonthlyWeek)
		b.add("monthly_weekday", s.MonthlyWeekday)
		b.add("send_time", s.SendTime)
		b.add("timezone", s.Timezone)
		b.add("skip_weekends", s.SkipWeekends)
		b.add("skip_holidays", s.SkipHolidays)
	}
	if u.StartDate != nil {
		b.add("start_date", *u.StartDate)
	}
	if u.ClearEndDate {
		b.raw("end_date = NULL")
	} else if u.EndDate != nil {
		b.add("end_date", *u.EndDate)
	}
	if u.ClearMaxOccurrences {
		b.raw("max_occurrences = NULL")
	} else if u.MaxOccurrences != nil {
		b.add("max_occurrences", *u.MaxOccurrences)
	}
	if u.RecipientListID != nil {
		b.add("recipient_list_id", *u.RecipientListID)
	}
	if u.SegmentID != nil {
		b.add("segment_id", *u.SegmentID)
	}
	if u.DynamicRecipients != nil {
		b.add("dynamic_recipients", *u.DynamicRecipients)
	}
	if u.HTMLTemplate != nil {
		b.add("html_template", *u.HTMLTemplate)
	}
	if u.TextTemplate != nil {
		b.add("text_template", *u.TextTemplate)
	}
	if u.AutoGenerateText != nil {
		b.add("auto_generate_text", *u.AutoGenerateText)
	}
	if u.SendRateLimit != nil {
		b.add("send_rate_limit", *u.SendRateLimit)
	}
	if u.PersonalizationFields != nil {
		fields, err := marshalFields(u.PersonalizationFields)
		if err != nil {
			return err
		}
		b.add("personalization_fields", fields)
	}
	if u.NextSendAt != nil {
		b.add("next_send_at", *u.NextSendAt)
	} else if u.ClearNextSendAt {
		b.raw("next_send_at = NULL")
	}

	if b.empty() {
		return nil
	}

	b.raw("updated_at = NOW()")
	q := fmt.Sprintf("UPDATE recurring_campaigns SET %s WHERE id = %s AND user_id = %s",
		joinComma(b.sets), b.next(id), b.next(userID))

	res, err := r.db.ExecContext(ctx, q, b.args...)
	if err != nil {
		return fmt.Errorf("update recurring campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return recurring.ErrNotFound
	}
	return nil
}

func (r *RecurringRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM recurring_campaigns
		WHERE id = $1 AND user_id = $2 AND status IN ('draft','completed','cancelled')
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return recurring.ErrNotFound
	}
	return nil
}

func (r *RecurringRepo) ChangeStatus(ctx context.Context, userID, id string, ch recurring.StatusChange) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status change: %w", err)
	}
	defer tx.Rollback()

	b := &setBuilder{}
	b.add("status", string(ch.To))
	switch {
	case ch.NextSendAt != nil:
		b.add("next_send_at", *ch.NextSendAt)
	case ch.ClearNextSend:
		b.raw("next_send_at = NULL")
	}
	switch {
	case ch.PausedAt != nil:
		b.add("paused_at", *ch.PausedAt)
	case ch.ClearPausedAt:
		b.raw("paused_at = NULL")
	}
	if ch.CancelledAt != nil {
		b.add("cancelled_at", *ch.CancelledAt)
	}
	b.raw("updated_at = NOW()")

	q := fmt.Sprintf("UPDATE recurring_campaigns SET %s WHERE id = %s AND user_id = %s AND status = ANY(%s)",
		joinComma(b.sets), b.next(id), b.next(userID), b.next(pq.Array(statusStrings(ch.From))))
	res, err := tx.ExecContext(ctx, q, b.args...)
	if err != nil {
		return fmt.Errorf("change status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM recurring_campaigns WHERE id = $1 AND user_id = $2`, id, userID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return recurring.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("change status: %w", err)
		}
		return fmt.Errorf("campaign is %s: %w", current, recurring.ErrInvalidTransition)
	}

	if ch.SkipPending {
		cutoff := time.Now()
		if ch.CancelledAt != nil {
			cutoff = *ch.CancelledAt
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE recurring_occurrences SET status = 'skipped'
			WHERE recurring_campaign_id = $1 AND status = 'pending' AND scheduled_at > $2
		`, id, cutoff); err != nil {
			return fmt.Errorf("skip pending occurrences: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status change: %w", err)
	}
	return nil
}

func (r *RecurringRepo) ListOccurrences(ctx context.Context, campaignID string, limit, offset int) ([]domain.Occurrence, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recurring_occurrences WHERE recurring_campaign_id = $1`, campaignID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count occurrences: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+occurrenceColumns+`
		FROM recurring_occurrences
		WHERE recurring_campaign_id = $1
		ORDER BY sequence_number DESC
		LIMIT $2 OFFSET $3`, campaignID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	var out []domain.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan occurrence: %w", err)
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

func (r *RecurringRepo) OccurrenceTotals(ctx context.Context, campaignID string) (recurring.OccurrenceTotals, error) {
	var t recurring.OccurrenceTotals
	k := &t.Counters
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'sent'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'skipped'),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COALESCE(SUM(recipients_count), 0),
		       COALESCE(SUM(emails_sent), 0),
		       COALESCE(SUM(emails_delivered), 0),
		       COALESCE(SUM(emails_bounced), 0),
		       COALESCE(SUM(emails_opened), 0),
		       COALESCE(SUM(emails_clicked), 0),
		       COALESCE(SUM(emails_unsubscribed), 0)
		FROM recurring_occurrences
		WHERE recurring_campaign_id = $1
	`, campaignID).Scan(
		&t.Total, &t.Sent, &t.Failed, &t.Skipped, &t.Pending,
		&k.RecipientsCount, &k.EmailsSent, &k.EmailsDelivered, &k.EmailsBounced,
		&k.EmailsOpened, &k.EmailsClicked, &k.EmailsUnsubscribed,
	)
	if err != nil {
		return t, fmt.Errorf("occurrence totals: %w", err)
	}
	return t, nil
}

func (r *RecurringRepo) RecentOccurrences(ctx context.Context, campaignID string, n int) ([]domain.Occurrence, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+occurrenceColumns+`
		FROM recurring_occurrences
		WHERE recurring_campaign_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2`, campaignID, n)
	if err != nil {
		return nil, fmt.Errorf("recent occurrences: %w", err)
	}
	defer rows.Close()

	var out []domain.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// RecordDelivery updates an occurrence and, on its first transition out of
// pending, the parent campaign's totals. Once sent_at is set only the
// delivery counters change.
func (r *RecurringRepo) RecordDelivery(ctx context.Context, occurrenceID string, d recurring.DeliveryReport) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record delivery: %w", err)
	}
	defer tx.Rollback()

	var (
		campaignID, prev string
		sentAt           sql.NullTime
	)
	err = tx.QueryRowContext(ctx, `
		SELECT recurring_campaign_id, status, sent_at FROM recurring_occurrences WHERE id = $1 FOR UPDATE
	`, occurrenceID).Scan(&campaignID, &prev, &sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return recurring.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock occurrence: %w", err)
	}

	k := d.Counters
	if sentAt.Valid {
		_, err = tx.ExecContext(ctx, `
			UPDATE recurring_occurrences
			SET recipients_count = $2, emails_sent = $3, emails_delivered = $4, emails_bounced = $5,
			    emails_opened = $6, emails_clicked = $7, emails_unsubscribed = $8
			WHERE id = $1
		`, occurrenceID, k.RecipientsCount, k.EmailsSent, k.EmailsDelivered, k.EmailsBounced,
			k.EmailsOpened, k.EmailsClicked, k.EmailsUnsubscribed)
		if err != nil {
			return fmt.Errorf("record delivery counters: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit record delivery: %w", err)
		}
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE recurring_occurrences
		SET status = $2, sent_at = $3, error_message = $4,
		    recipients_count = $5, emails_sent = $6, emails_delivered = $7, emails_bounced = $8,
		    emails_opened = $9, emails_clicked = $10, emails_unsubscribed = $11,
		    retry_count = $12, next_retry_at = $13
		WHERE id = $1
	`, occurrenceID, string(d.Status), d.SentAt, d.ErrorMessage,
		k.RecipientsCount, k.EmailsSent, k.EmailsDelivered, k.EmailsBounced,
		k.EmailsOpened, k.EmailsClicked, k.EmailsUnsubscribed,
		d.RetryCount, d.NextRetryAt)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}

	if domain.OccurrenceStatus(prev) == domain.OccurrencePending {
		var col string
		switch d.Status {
		case domain.OccurrenceSent:
			col = "total_sent"
		case domain.OccurrenceFailed:
			col = "total_failed"
		}
		if col != "" {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(
				`UPDATE recurring_campaigns SET %s = %s + 1, updated_at = NOW() WHERE id = $1`, col, col), campaignID); err != nil {
				return fmt.Errorf("bump campaign totals: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record delivery: %w", err)
	}
	return nil
}

func (r *RecurringRepo) CountActiveContacts(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE user_id = $1 AND status = 'active'`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return n, nil
}

func (r *RecurringRepo) TemplateExists(ctx context.Context, userID, templateID string) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM email_templates WHERE id = $1 AND user_id = $2)`, templateID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("template exists: %w", err)
	}
	return ok, nil
}
