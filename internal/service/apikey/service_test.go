package apikey_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/ignite/cadence-mailer/internal/schedule"
	"github.com/ignite/cadence-mailer/internal/service/apikey"
)

type memRepo struct {
	mu   sync.Mutex
	keys map[string]*domain.APIKey
}

func newMemRepo() *memRepo { return &memRepo{keys: map[string]*domain.APIKey{}} }

func (m *memRepo) Get(_ context.Context, userID, id string) (*domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok || k.UserID != userID {
		return nil, apikey.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, userID string, f apikey.ListFilter) ([]domain.APIKey, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.APIKey
	for _, k := range m.keys {
		if k.UserID == userID && (f.IncludeRevoked || !k.Revoked) {
			out = append(out, *k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, k *domain.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *k
	m.keys[k.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, userID, id string, u apikey.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok || k.UserID != userID {
		return apikey.ErrNotFound
	}
	if k.Revoked {
		return apikey.ErrRevoked
	}
	if u.Name != nil {
		k.Name = *u.Name
	}
	if u.Scopes != nil {
		k.Scopes = u.Scopes
	}
	if u.IsActive != nil {
		k.IsActive = *u.IsActive
	}
	if u.ExpiresAt != nil {
		k.ExpiresAt = u.ExpiresAt
	} else if u.ClearExpiresAt {
		k.ExpiresAt = nil
	}
	if u.Prefix != nil {
		k.Prefix = *u.Prefix
	}
	if u.HashedKey != nil {
		k.HashedKey = *u.HashedKey
	}
	return nil
}

func (m *memRepo) Revoke(_ context.Context, userID, id, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok || k.UserID != userID {
		return apikey.ErrNotFound
	}
	if k.Revoked {
		return apikey.ErrRevoked
	}
	k.Revoked, k.IsActive = true, false
	k.RevokedAt, k.RevokedReason = &at, &reason
	return nil
}

const testUser = "user-1"

var testNow = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func newService(repo *memRepo) *apikey.Service {
	return apikey.NewService(repo,
		apikey.WithClock(func() time.Time { return testNow }),
		apikey.WithHashCost(bcrypt.MinCost))
}

func TestCreateIssuesHashedSecret(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	days := 30

	k, err := svc.Create(context.Background(), testUser, apikey.CreateInput{Name: "CI", ExpiresInDays: &days})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(k.Key, "et_") || len(k.Key) < 40 {
		t.Fatalf("unexpected secret %q", k.Key)
	}
	if k.Prefix != k.Key[:11] {
		t.Errorf("prefix %q does not match secret", k.Prefix)
	}
	if len(k.Scopes) != 1 || k.Scopes[0] != domain.ScopeAll {
		t.Errorf("expected full access by default, got %v", k.Scopes)
	}
	if k.RequestsPerMinute != apikey.DefaultRequestsPerMinute || k.RequestsPerDay != apikey.DefaultRequestsPerDay {
		t.Errorf("unexpected limits %d/%d", k.RequestsPerMinute, k.RequestsPerDay)
	}
	if want := testNow.AddDate(0, 0, 30); k.ExpiresAt == nil || !k.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %v, want %v", k.ExpiresAt, want)
	}

	stored, _ := repo.Get(context.Background(), testUser, k.ID)
	if stored.HashedKey == k.Key {
		t.Fatal("secret stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.HashedKey), []byte(k.Key)); err != nil {
		t.Fatalf("stored hash does not match secret: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newService(newMemRepo())
	rpm := 0

	_, err := svc.Create(context.Background(), testUser, apikey.CreateInput{
		Scopes:            []string{"campaigns:read", "emails:teleport"},
		RequestsPerMinute: &rpm,
	})
	var verr *schedule.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, f := range []string{"name", "scopes", "requests_per_minute"} {
		if !verr.Has(f) {
			t.Errorf("expected violation for %s, got %v", f, verr.Errors)
		}
	}
}

func TestRotateReplacesSecret(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	k, err := svc.Create(ctx, testUser, apikey.CreateInput{Name: "Worker", Scopes: []string{"campaigns:read"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rotated, err := svc.Rotate(ctx, testUser, k.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.Key == k.Key {
		t.Fatal("rotation kept the old secret")
	}
	if rotated.Scopes[0] != "campaigns:read" {
		t.Errorf("rotation changed scopes: %v", rotated.Scopes)
	}
	stored, _ := repo.Get(ctx, testUser, k.ID)
	if bcrypt.CompareHashAndPassword([]byte(stored.HashedKey), []byte(k.Key)) == nil {
		t.Error("old secret still matches")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.HashedKey), []byte(rotated.Key)) != nil {
		t.Error("new secret does not match")
	}
}

func TestRevoke(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	k, err := svc.Create(ctx, testUser, apikey.CreateInput{Name: "Old"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Revoke(ctx, testUser, k.ID, ""); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	got, _ := svc.Get(ctx, testUser, k.ID)
	if !got.Revoked || got.IsActive || got.Usable(testNow) {
		t.Fatalf("key still usable after revoke: %+v", got)
	}
	if got.RevokedReason == nil || *got.RevokedReason != "Manually revoked by user" {
		t.Errorf("revoked_reason = %v", got.RevokedReason)
	}

	if err := svc.Revoke(ctx, testUser, k.ID, "again"); !errors.Is(err, apikey.ErrRevoked) {
		t.Errorf("second revoke: got %v, want ErrRevoked", err)
	}
	if _, err := svc.Rotate(ctx, testUser, k.ID); !errors.Is(err, apikey.ErrRevoked) {
		t.Errorf("rotate revoked: got %v, want ErrRevoked", err)
	}

	keys, total, _ := svc.List(ctx, testUser, apikey.ListFilter{})
	if total != 0 || len(keys) != 0 {
		t.Errorf("revoked key listed by default: %v", keys)
	}
	_, total, _ = svc.List(ctx, testUser, apikey.ListFilter{IncludeRevoked: true})
	if total != 1 {
		t.Errorf("include_revoked total = %d, want 1", total)
	}
}

func TestUpdateClearsExpiry(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()
	days := 10

	k, err := svc.Create(ctx, testUser, apikey.CreateInput{Name: "Temp", ExpiresInDays: &days})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zero := 0
	name := "Permanent"
	got, err := svc.Update(ctx, testUser, k.ID, apikey.UpdateInput{Name: &name, ExpiresInDays: &zero})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.ExpiresAt != nil || got.Name != "Permanent" {
		t.Fatalf("unexpected key after update: %+v", got)
	}
}

func TestGetScopedToUser(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	k, err := svc.Create(context.Background(), testUser, apikey.CreateInput{Name: "Mine"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Get(context.Background(), "user-2", k.ID); !errors.Is(err, apikey.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestCatalogPresetsUseKnownScopes(t *testing.T) {
	c := newService(newMemRepo()).Catalog()
	for name, scopes := range c.Presets {
		for _, s := range scopes {
			if _, ok := c.Scopes[s]; !ok {
				t.Errorf("preset %s uses unknown scope %s", name, s)
			}
		}
	}
}

func TestAPIKeyHasScope(t *testing.T) {
	k := domain.APIKey{Scopes: []string{"templates:read"}}
	if !k.HasScope("templates:read") || k.HasScope("templates:delete") {
		t.Error("explicit scopes")
	}
	k.Scopes = []string{domain.ScopeAll}
	if !k.HasScope("settings:update") {
		t.Error("wildcard should grant every scope")
	}
}
