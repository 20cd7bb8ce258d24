package apikey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/pkg/logger"
	"github.com/ignite/cadence-mailer/internal/pkg/validate"
	"github.com/ignite/cadence-mailer/internal/schedule"
)

const (
	keyPrefix    = "et_"
	prefixLength = 11 // "et_" plus eight characters of the secret

	DefaultRequestsPerMinute = 100
	DefaultRequestsPerDay    = 10000
	defaultRevokeReason      = "Manually revoked by user"
)

// Scopes lists every grantable scope with its description.
var Scopes = map[string]string{
	domain.ScopeAll:    "Full access",
	"campaigns:create": "Create recurring campaigns",
	"campaigns:read":   "Read recurring campaigns and occurrences",
	"campaigns:update": "Update and control recurring campaigns",
	"campaigns:delete": "Delete recurring campaigns",
	"templates:create": "Create templates",
	"templates:read":   "Read and render templates",
	"templates:update": "Update templates",
	"templates:delete": "Delete templates",
	"analytics:read":   "Read campaign analytics",
	"settings:read":    "Read settings",
	"settings:update":  "Change settings",
	"api_keys:manage":  "Manage API keys",
}

// ScopePresets are common scope bundles.
var ScopePresets = map[string][]string{
	"full_access":         {domain.ScopeAll},
	"readonly":            {"campaigns:read", "templates:read", "analytics:read", "settings:read"},
	"campaign_management": {"campaigns:create", "campaigns:read", "campaigns:update", "campaigns:delete", "templates:read"},
	"template_management": {"templates:create", "templates:read", "templates:update", "templates:delete"},
}

// Service implements API key management.
type Service struct {
	repo     Repository
	now      func() time.Time
	hashCost int
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHashCost sets the bcrypt cost used for new secrets.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// NewService creates an API key service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now, hashCost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateInput holds the fields for a new key. Empty scopes grant full
// access.
type CreateInput struct {
	Name              string   `json:"name" validate:"required,max=100"`
	Scopes            []string `json:"scopes" validate:"max=50"`
	RequestsPerMinute *int     `json:"requests_per_minute" validate:"omitempty,min=1,max=10000"`
	RequestsPerDay    *int     `json:"requests_per_day" validate:"omitempty,min=1,max=1000000"`
	ExpiresInDays     *int     `json:"expires_in_days" validate:"omitempty,min=1,max=3650"`
}

// UpdateInput holds optional key changes. ExpiresInDays of 0 removes the
// expiry.
type UpdateInput struct {
	Name              *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Scopes            []string `json:"scopes" validate:"omitempty,max=50"`
	IsActive          *bool    `json:"is_active"`
	RequestsPerMinute *int     `json:"requests_per_minute" validate:"omitempty,min=1,max=10000"`
	RequestsPerDay    *int     `json:"requests_per_day" validate:"omitempty,min=1,max=1000000"`
	ExpiresInDays     *int     `json:"expires_in_days" validate:"omitempty,min=0,max=3650"`
}

// IssuedKey is a key together with its secret. The secret is only
// available when the key is created or rotated.
type IssuedKey struct {
	domain.APIKey
	Key string `json:"key"`
}

// ScopeCatalog describes the grantable scopes.
type ScopeCatalog struct {
	Scopes  map[string]string   `json:"scopes"`
	Presets map[string][]string `json:"presets"`
}

func checkInput(verr *schedule.ValidationError, in any) {
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

func checkScopes(verr *schedule.ValidationError, scopes []string) {
	var bad []string
	for _, s := range scopes {
		if _, ok := Scopes[s]; !ok {
			bad = append(bad, s)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		verr.Add("scopes", schedule.CodeInvalid, fmt.Sprintf("invalid scopes: %v", bad))
	}
}

// generateSecret returns a new raw key and its display prefix.
func generateSecret() (raw, prefix string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	raw = keyPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return raw, raw[:prefixLength], nil
}

func (s *Service) issue() (raw, prefix, hashed string, err error) {
	raw, prefix, err = generateSecret()
	if err != nil {
		return "", "", "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(raw), s.hashCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hash api key: %w", err)
	}
	return raw, prefix, string(h), nil
}

// Create issues a new key. The returned secret is not stored.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*IssuedKey, error) {
	verr := &schedule.ValidationError{}
	checkInput(verr, in)
	checkScopes(verr, in.Scopes)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	raw, prefix, hashed, err := s.issue()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	k := domain.APIKey{
		ID:                uuid.New().String(),
		UserID:            userID,
		Name:              in.Name,
		Prefix:            prefix,
		HashedKey:         hashed,
		Scopes:            in.Scopes,
		RequestsPerMinute: DefaultRequestsPerMinute,
		RequestsPerDay:    DefaultRequestsPerDay,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if len(k.Scopes) == 0 {
		k.Scopes = []string{domain.ScopeAll}
	}
	if in.RequestsPerMinute != nil {
		k.RequestsPerMinute = *in.RequestsPerMinute
	}
	if in.RequestsPerDay != nil {
		k.RequestsPerDay = *in.RequestsPerDay
	}
	if in.ExpiresInDays != nil {
		exp := now.AddDate(0, 0, *in.ExpiresInDays)
		k.ExpiresAt = &exp
	}

	if err := s.repo.Create(ctx, &k); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	logger.Info("api key created", "api_key_id", k.ID, "user_id", userID, "prefix", prefix)
	return &IssuedKey{APIKey: k, Key: raw}, nil
}

// Get returns a single key without its secret.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.APIKey, error) {
	return s.repo.Get(ctx, userID, id)
}

// List returns the user's keys, newest first.
func (s *Service) List(ctx context.Context, userID string, f ListFilter) ([]domain.APIKey, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, userID, f)
}

// Update changes a key's name, scopes, limits, expiry or active flag.
// Revoked keys cannot be changed.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*domain.APIKey, error) {
	verr := &schedule.ValidationError{}
	checkInput(verr, in)
	if in.Scopes != nil {
		checkScopes(verr, in.Scopes)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	u := UpdateFields{
		Name:              in.Name,
		Scopes:            in.Scopes,
		IsActive:          in.IsActive,
		RequestsPerMinute: in.RequestsPerMinute,
		RequestsPerDay:    in.RequestsPerDay,
	}
	if in.Scopes != nil && len(in.Scopes) == 0 {
		u.Scopes = []string{domain.ScopeAll}
	}
	if in.ExpiresInDays != nil {
		if *in.ExpiresInDays == 0 {
			u.ClearExpiresAt = true
		} else {
			exp := s.now().UTC().AddDate(0, 0, *in.ExpiresInDays)
			u.ExpiresAt = &exp
		}
	}

	if err := s.repo.Update(ctx, userID, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID, id)
}

// Revoke permanently deactivates a key.
func (s *Service) Revoke(ctx context.Context, userID, id, reason string) error {
	if reason == "" {
		reason = defaultRevokeReason
	}
	if err := s.repo.Revoke(ctx, userID, id, reason, s.now().UTC()); err != nil {
		return err
	}
	logger.Info("api key revoked", "api_key_id", id, "user_id", userID)
	return nil
}

// Rotate replaces a key's secret, keeping its scopes and limits. The old
// secret stops matching immediately.
func (s *Service) Rotate(ctx context.Context, userID, id string) (*IssuedKey, error) {
	k, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if k.Revoked {
		return nil, ErrRevoked
	}

	raw, prefix, hashed, err := s.issue()
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, userID, id, UpdateFields{Prefix: &prefix, HashedKey: &hashed}); err != nil {
		return nil, err
	}
	k, err = s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	logger.Info("api key rotated", "api_key_id", id, "user_id", userID, "prefix", prefix)
	return &IssuedKey{APIKey: *k, Key: raw}, nil
}

// Catalog returns the grantable scopes and presets.
func (s *Service) Catalog() ScopeCatalog {
	return ScopeCatalog{Scopes: Scopes, Presets: ScopePresets}
}
