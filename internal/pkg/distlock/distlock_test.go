package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisLock_Exclusive(t *testing.T) {
	client, _ := newRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "recurring:c1", time.Minute)
	b := NewRedisLock(client, "recurring:c1", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire")

	assert.ErrorIs(t, b.Release(ctx), ErrNotHeld, "non-owner release must not delete")

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_TTLExpiry(t *testing.T) {
	client, mr := newRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "recurring:c2", time.Second)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	b := NewRedisLock(client, "recurring:c2", time.Minute)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock should be acquirable")
	assert.ErrorIs(t, a.Extend(ctx, time.Minute), ErrNotHeld)
}

func TestRedisLock_Extend(t *testing.T) {
	client, mr := newRedis(t)
	ctx := context.Background()

	l := NewRedisLock(client, "recurring:c3", time.Second)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Extend(ctx, time.Minute))
	assert.Greater(t, mr.TTL(l.Key()), 30*time.Second)
}

func TestWithLock(t *testing.T) {
	client, mr := newRedis(t)
	ctx := context.Background()
	locker := NewLocker(client, nil, time.Minute)

	ran := false
	ok, err := WithLock(ctx, locker.For("recurring:c4"), func(context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:recurring:c4"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:recurring:c4"), "lock released after fn")

	held := locker.For("recurring:c4")
	_, err = held.Acquire(ctx)
	require.NoError(t, err)

	ok, err = WithLock(ctx, locker.For("recurring:c4"), func(context.Context) error {
		t.Fatal("fn must not run while lock is held elsewhere")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ok)

	boom := errors.New("boom")
	require.NoError(t, held.Release(ctx))
	_, err = WithLock(ctx, locker.For("recurring:c4"), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:recurring:c4"))
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "recurring:c5")
	id := LockID("recurring:c5")

	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(context.Background()))
	assert.ErrorIs(t, l.Release(context.Background()), ErrNotHeld)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_Contended(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := NewPGAdvisoryLock(db, "recurring:c6").Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockIDDeterministic(t *testing.T) {
	assert.Equal(t, LockID("recurring:abc"), LockID("recurring:abc"))
	assert.NotEqual(t, LockID("recurring:abc"), LockID("recurring:abd"))
}
