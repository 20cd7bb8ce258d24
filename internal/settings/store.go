// Package settings stores per-owner configuration grouped by category in
// Redis hashes. Reads merge stored values over category defaults.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/cadence-mailer/internal/pkg/logger"
)

var (
	ErrUnknownCategory = errors.New("unknown settings category")
	ErrUnknownKey      = errors.New("unknown settings key")
)

// Category names a group of settings.
type Category string

const (
	SMTP          Category = "smtp"
	Company       Category = "company"
	Security      Category = "security"
	Notifications Category = "notifications"
	Storage       Category = "storage"
	Domains       Category = "domains"
)

// Values is one category's settings keyed by name.
type Values map[string]any

const maskedSecret = "********"

// secretKeys are never returned in clear text.
var secretKeys = map[string]bool{"password": true}

var defaults = map[Category]Values{
	SMTP: {
		"server":       "",
		"port":         587,
		"security":     "TLS",
		"username":     "",
		"password":     "",
		"is_connected": false,
	},
	Company: {
		"company_name":         "Your Company",
		"company_website":      "",
		"company_logo":         "",
		"company_address":      "",
		"support_email":        "",
		"privacy_policy_url":   "",
		"terms_of_service_url": "",
	},
	Security: {
		"api_key_rotation_enabled": false,
		"session_timeout":          30,
	},
	Notifications: {
		"campaign_completion": true,
		"high_bounce_rate":    true,
		"api_limit_warnings":  true,
		"security_alerts":     true,
		"weekly_reports":      false,
		"webhook_url":         "",
		"email_notifications": true,
	},
	Storage: {
		"used":             0.0,
		"total":            10.0,
		"retention_period": 12,
	},
	Domains: {
		"tracking_domain": "",
		"sending_domain":  "",
		"spf":             "pending",
		"dkim":            "pending",
	},
}

// Categories returns the known category names in sorted order.
func Categories() []Category {
	out := make([]Category, 0, len(defaults))
	for c := range defaults {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseCategory resolves a category name, accepting the singular forms
// "notification" and "domain".
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case "notification":
		c = Notifications
	case "domain":
		c = Domains
	}
	if _, ok := defaults[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Store persists settings in Redis under "settings:<owner>:<category>".
type Store struct {
	redis *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{redis: client}
}

func key(owner string, c Category) string {
	return "settings:" + owner + ":" + string(c)
}

// Get returns the category with stored values overlaid on its defaults.
// Secret values are masked.
func (s *Store) Get(ctx context.Context, owner string, c Category) (Values, error) {
	out, err := s.load(ctx, owner, c)
	if err != nil {
		return nil, err
	}
	for k := range secretKeys {
		if v, ok := out[k].(string); ok && v != "" {
			out[k] = maskedSecret
		}
	}
	return out, nil
}

// Secret returns a single value without masking, for internal callers.
func (s *Store) Secret(ctx context.Context, owner string, c Category, name string) (any, error) {
	out, err := s.load(ctx, owner, c)
	if err != nil {
		return nil, err
	}
	return out[name], nil
}

func (s *Store) load(ctx context.Context, owner string, c Category) (Values, error) {
	def, ok := defaults[c]
	if !ok {
		return nil, ErrUnknownCategory
	}
	out := make(Values, len(def))
	for k, v := range def {
		out[k] = v
	}

	stored, err := s.redis.HGetAll(ctx, key(owner, c)).Result()
	if err != nil {
		return nil, fmt.Errorf("load settings %s: %w", c, err)
	}
	for k, raw := range stored {
		if _, known := def[k]; !known {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			logger.Warn("settings value unreadable", "category", string(c), "key", k, "error", err.Error())
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Put stores the given keys. Keys absent from the update keep their
// current value. Writing the masked placeholder for a secret is a no-op.
func (s *Store) Put(ctx context.Context, owner string, c Category, update Values) (Values, error) {
	def, ok := defaults[c]
	if !ok {
		return nil, ErrUnknownCategory
	}

	fields := make(map[string]any, len(update))
	for k, v := range update {
		if _, known := def[k]; !known {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownKey, c, k)
		}
		if secretKeys[k] && v == maskedSecret {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", c, k, err)
		}
		fields[k] = string(raw)
	}
	if len(fields) > 0 {
		if err := s.redis.HSet(ctx, key(owner, c), fields).Err(); err != nil {
			return nil, fmt.Errorf("store settings %s: %w", c, err)
		}
		logger.Info("settings updated", "category", string(c), "owner", owner, "keys", len(fields))
	}
	return s.Get(ctx, owner, c)
}

// Reset drops stored values so the category reads as its defaults.
func (s *Store) Reset(ctx context.Context, owner string, c Category) error {
	if _, ok := defaults[c]; !ok {
		return ErrUnknownCategory
	}
	if err := s.redis.Del(ctx, key(owner, c)).Err(); err != nil {
		return fmt.Errorf("reset settings %s: %w", c, err)
	}
	return nil
}
