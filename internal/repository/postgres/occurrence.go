package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/service/recurring"
)

// DueCampaigns returns ids of firing campaigns whose next send has arrived.
func (r *RecurringRepo) DueCampaigns(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM recurring_campaigns
		WHERE status IN ('active', 'scheduled')
		  AND next_send_at IS NOT NULL
		  AND next_send_at <= $1
		ORDER BY next_send_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due campaigns: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due campaign: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FireOccurrence materializes one send under a row lock. The campaign is
// re-read FOR UPDATE so two workers that both saw it as due produce a
// single occurrence: the second one finds next_send_at already advanced.
func (r *RecurringRepo) FireOccurrence(ctx context.Context, campaignID string, now time.Time, plan recurring.PlanFunc) (*domain.Occurrence, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin fire: %w", err)
	}
	defer tx.Rollback()

	c, err := scanCampaign(tx.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM recurring_campaigns WHERE id = $1 FOR UPDATE`, campaignID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, recurring.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock campaign: %w", err)
	}
	if !c.IsFiring() || c.NextSendAt == nil || c.NextSendAt.After(now) {
		return nil, recurring.ErrNotDue
	}

	var seq int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM recurring_occurrences WHERE recurring_campaign_id = $1
	`, campaignID).Scan(&seq); err != nil {
		return nil, fmt.Errorf("next sequence: %w", err)
	}

	p, err := plan(c, seq)
	if err != nil {
		return nil, err
	}

	occ := p.Occurrence
	scheduled := 0
	var lastSent *time.Time
	if occ != nil {
		if occ.ID == "" {
			occ.ID = uuid.New().String()
		}
		occ.RecurringCampaignID = campaignID
		occ.SequenceNumber = seq
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO recurring_occurrences
				(id, recurring_campaign_id, sequence_number, subject, scheduled_at, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			RETURNING created_at
		`, occ.ID, campaignID, seq, occ.Subject, occ.ScheduledAt, string(occ.Status)).Scan(&occ.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert occurrence: %w", err)
		}

		if occ.Status == domain.OccurrencePending {
			scheduled = 1
			at := occ.ScheduledAt
			lastSent = &at
			if !c.DynamicRecipients {
				n, err := r.snapshotRecipients(ctx, tx, c, occ.ID)
				if err != nil {
					return nil, err
				}
				occ.RecipientsCount = n
			}
		}
	}

	status := domain.RecurringActive
	next := p.NextSendAt
	if p.Complete {
		status = domain.RecurringCompleted
		next = nil
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE recurring_campaigns
		SET status = $2, next_send_at = $3, last_sent_at = COALESCE($4, last_sent_at),
		    total_scheduled = total_scheduled + $5, updated_at = NOW()
		WHERE id = $1
	`, campaignID, string(status), next, lastSent, scheduled); err != nil {
		return nil, fmt.Errorf("advance campaign: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit fire: %w", err)
	}
	return occ, nil
}

// audienceFilter narrows "contacts c" to the campaign's list or segment.
// With neither configured every active contact of the owner qualifies.
func audienceFilter(c *domain.RecurringCampaign, nextArg int) (string, []any) {
	switch {
	case c.SegmentID != nil && *c.SegmentID != "":
		return fmt.Sprintf(` AND EXISTS (SELECT 1 FROM segment_members m WHERE m.segment_id = $%d AND m.contact_id = c.id)`, nextArg),
			[]any{*c.SegmentID}
	case c.RecipientListID != nil && *c.RecipientListID != "":
		return fmt.Sprintf(` AND c.list_id = $%d`, nextArg), []any{*c.RecipientListID}
	}
	return "", nil
}

func (r *RecurringRepo) snapshotRecipients(ctx context.Context, tx *sql.Tx, c *domain.RecurringCampaign, occurrenceID string) (int, error) {
	filter, extra := audienceFilter(c, 3)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO occurrence_recipients (occurrence_id, contact_id, email, first_name, last_name, fields)
		SELECT $1, c.id, c.email, c.first_name, c.last_name, c.fields
		FROM contacts c
		WHERE c.user_id = $2 AND c.status = 'active'`+filter+`
		ON CONFLICT DO NOTHING
	`, append([]any{occurrenceID, c.UserID}, extra...)...)
	if err != nil {
		return 0, fmt.Errorf("snapshot recipients: %w", err)
	}
	n, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx,
		`UPDATE recurring_occurrences SET recipients_count = $2 WHERE id = $1`, occurrenceID, n); err != nil {
		return 0, fmt.Errorf("set recipients count: %w", err)
	}
	return int(n), nil
}

// Recipients returns the snapshot taken when the occurrence fired, or the
// live audience for dynamic campaigns.
func (r *RecurringRepo) Recipients(ctx context.Context, c *domain.RecurringCampaign, occurrenceID string) ([]domain.Recipient, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if c.DynamicRecipients {
		filter, extra := audienceFilter(c, 2)
		rows, err = r.db.QueryContext(ctx, `
			SELECT c.id, c.email, c.first_name, c.last_name, c.fields
			FROM contacts c
			WHERE c.user_id = $1 AND c.status = 'active'`+filter+`
			ORDER BY c.email`, append([]any{c.UserID}, extra...)...)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT contact_id, email, first_name, last_name, fields
			FROM occurrence_recipients
			WHERE occurrence_id = $1
			ORDER BY email`, occurrenceID)
	}
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		var (
			rc  domain.Recipient
			raw []byte
		)
		if err := rows.Scan(&rc.ContactID, &rc.Email, &rc.FirstName, &rc.LastName, &raw); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		if rc.Fields, err = unmarshalFields(raw); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
