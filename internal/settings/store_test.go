package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client), mr
}

func TestGetDefaults(t *testing.T) {
	s, _ := newTestStore(t)

	v, err := s.Get(context.Background(), "user-1", SMTP)
	require.NoError(t, err)
	assert.Equal(t, 587, v["port"])
	assert.Equal(t, "TLS", v["security"])
	assert.Equal(t, "", v["password"])
}

func TestPutMergesAndMasksSecrets(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	v, err := s.Put(ctx, "user-1", SMTP, Values{
		"server":   "smtp.example.com",
		"port":     2525,
		"password": "hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", v["server"])
	assert.Equal(t, float64(2525), v["port"])
	assert.Equal(t, "TLS", v["security"], "untouched keys keep defaults")
	assert.Equal(t, maskedSecret, v["password"])
	assert.Equal(t, `"hunter2"`, mr.HGet("settings:user-1:smtp", "password"))

	secret, err := s.Secret(ctx, "user-1", SMTP, "password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret)

	// Echoing the masked value back must not overwrite the stored secret.
	_, err = s.Put(ctx, "user-1", SMTP, Values{"password": maskedSecret, "username": "mailer"})
	require.NoError(t, err)
	secret, err = s.Secret(ctx, "user-1", SMTP, "password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret)
}

func TestPutRejectsUnknownKey(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Put(context.Background(), "user-1", Company, Values{"ceo": "x"})
	assert.True(t, errors.Is(err, ErrUnknownKey))
}

func TestOwnersAreIsolated(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "user-1", Company, Values{"company_name": "Acme"})
	require.NoError(t, err)

	other, err := s.Get(ctx, "user-2", Company)
	require.NoError(t, err)
	assert.Equal(t, "Your Company", other["company_name"])
}

func TestReset(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "user-1", Domains, Values{"spf": "verified"})
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx, "user-1", Domains))

	v, err := s.Get(ctx, "user-1", Domains)
	require.NoError(t, err)
	assert.Equal(t, "pending", v["spf"])
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"smtp", SMTP, false},
		{"Notification", Notifications, false},
		{"domain", Domains, false},
		{"billing", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCategory)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategoriesSorted(t *testing.T) {
	assert.Equal(t, []Category{Company, Domains, Notifications, Security, SMTP, Storage}, Categories())
}
