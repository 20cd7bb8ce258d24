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
	"github.com/ignite/cadence-mailer/internal/service/apikey"
)

const apiKeyColumns = `
	id, user_id, name, prefix, hashed_key, scopes, requests_per_minute, requests_per_day,
	is_active, revoked, revoked_at, revoked_reason, usage_count, last_used_at, expires_at,
	created_at, updated_at`

// APIKeyRepo implements apikey.Repository against PostgreSQL.
type APIKeyRepo struct{ db *sql.DB }

func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo { return &APIKeyRepo{db: db} }

func scanAPIKey(row rowScanner) (*domain.APIKey, error) {
	var (
		k                   domain.APIKey
		scopes              pq.StringArray
		revokedAt, lastUsed sql.NullTime
		expiresAt           sql.NullTime
		reason              sql.NullString
	)
	if err := row.Scan(
		&k.ID, &k.UserID, &k.Name, &k.Prefix, &k.HashedKey, &scopes, &k.RequestsPerMinute, &k.RequestsPerDay,
		&k.IsActive, &k.Revoked, &revokedAt, &reason, &k.UsageCount, &lastUsed, &expiresAt,
		&k.CreatedAt, &k.UpdatedAt,
	); err != nil {
		return nil, err
	}
	k.Scopes = []string(scopes)
	k.RevokedAt = timePtr(revokedAt)
	k.RevokedReason = strPtr(reason)
	k.LastUsedAt = timePtr(lastUsed)
	k.ExpiresAt = timePtr(expiresAt)
	return &k, nil
}

func (r *APIKeyRepo) Get(ctx context.Context, userID, id string) (*domain.APIKey, error) {
	k, err := scanAPIKey(r.db.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apikey.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return k, nil
}

func (r *APIKeyRepo) List(ctx context.Context, userID string, f apikey.ListFilter) ([]domain.APIKey, int, error) {
	where := ` WHERE user_id = $1`
	if !f.IncludeRevoked {
		where += ` AND revoked = FALSE`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys`+where, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count api keys: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys`+where+
		` ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var out []domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan api key: %w", err)
		}
		out = append(out, *k)
	}
	return out, total, rows.Err()
}

func (r *APIKeyRepo) Create(ctx context.Context, k *domain.APIKey) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys
			(id, user_id, name, prefix, hashed_key, scopes, requests_per_minute, requests_per_day,
			 is_active, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`, k.ID, k.UserID, k.Name, k.Prefix, k.HashedKey, pq.Array(k.Scopes),
		k.RequestsPerMinute, k.RequestsPerDay, k.IsActive, k.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (r *APIKeyRepo) Update(ctx context.Context, userID, id string, u apikey.UpdateFields) error {
	b := &setBuilder{}
	if u.Name != nil {
		b.add("name", *u.Name)
	}
	if u.Scopes != nil {
		b.add("scopes", pq.Array(u.Scopes))
	}
	if u.IsActive != nil {
		b.add("is_active", *u.IsActive)
	}
	if u.RequestsPerMinute != nil {
		b.add("requests_per_minute", *u.RequestsPerMinute)
	}
	if u.RequestsPerDay != nil {
		b.add("requests_per_day", *u.RequestsPerDay)
	}
	if u.ExpiresAt != nil {
		b.add("expires_at", *u.ExpiresAt)
	} else if u.ClearExpiresAt {
		b.raw("expires_at = NULL")
	}
	if u.Prefix != nil {
		b.add("prefix", *u.Prefix)
	}
	if u.HashedKey != nil {
		b.add("hashed_key", *u.HashedKey)
	}
	if b.empty() {
		return nil
	}
	b.raw("updated_at = NOW()")

	q := fmt.Sprintf(`UPDATE api_keys SET %s WHERE id = %s AND user_id = %s AND revoked = FALSE`,
		joinComma(b.sets), b.next(id), b.next(userID))
	res, err := r.db.ExecContext(ctx, q, b.args...)
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missOrRevoked(ctx, userID, id)
	}
	return nil
}

func (r *APIKeyRepo) Revoke(ctx context.Context, userID, id, reason string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE api_keys
		SET revoked = TRUE, is_active = FALSE, revoked_at = $3, revoked_reason = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked = FALSE
	`, id, userID, at, reason)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missOrRevoked(ctx, userID, id)
	}
	return nil
}

// missOrRevoked explains a guarded UPDATE that matched no row.
func (r *APIKeyRepo) missOrRevoked(ctx context.Context, userID, id string) error {
	var revoked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT revoked FROM api_keys WHERE id = $1 AND user_id = $2`, id, userID).Scan(&revoked)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apikey.ErrNotFound
	case err != nil:
		return fmt.Errorf("check api key: %w", err)
	case revoked:
		return apikey.ErrRevoked
	}
	return apikey.ErrNotFound
}
