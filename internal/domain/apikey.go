package domain

import "time"

// ScopeAll grants every scope.
const ScopeAll = "*"

// APIKey is a user's programmatic credential. Only a bcrypt hash of the
// secret is stored; Prefix identifies the key in listings.
type APIKey struct {
	ID                string     `json:"id" db:"id"`
	UserID            string     `json:"user_id" db:"user_id"`
	Name              string     `json:"name" db:"name"`
	Prefix            string     `json:"prefix" db:"prefix"`
	HashedKey         string     `json:"-" db:"hashed_key"`
	Scopes            []string   `json:"scopes" db:"scopes"`
	RequestsPerMinute int        `json:"requests_per_minute" db:"requests_per_minute"`
	RequestsPerDay    int        `json:"requests_per_day" db:"requests_per_day"`
	IsActive          bool       `json:"is_active" db:"is_active"`
	Revoked           bool       `json:"revoked" db:"revoked"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	RevokedReason     *string    `json:"revoked_reason,omitempty" db:"revoked_reason"`
	UsageCount        int64      `json:"usage_count" db:"usage_count"`
	LastUsedAt        *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Usable reports whether the key may authenticate at now.
func (k *APIKey) Usable(now time.Time) bool {
	if !k.IsActive || k.Revoked {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(now)
}

// HasScope reports whether the key grants scope, directly or through "*".
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == ScopeAll || s == scope {
			return true
		}
	}
	return false
}
