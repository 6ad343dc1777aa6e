package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-email-verify/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTTL = 10 * time.Minute

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, Options{Prefix: "verify", TTL: testTTL}), mr
}

func pending(email, code string, issued time.Time) *domain.PendingRegistration {
	return &domain.PendingRegistration{ID: "r-" + code, Email: email, Nickname: "al", Password: "pw", Code: code, IssuedAt: issued}
}

func TestStore_PutSetsKeyExpiry(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, pending("a@x.com", "123456", time.Now())))

	assert.True(t, mr.Exists("verify:pending:a@x.com"))
	assert.Equal(t, 2*testTTL, mr.TTL("verify:pending:a@x.com"))
}

func TestStore_ConsumeRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Put(ctx, pending("a@x.com", "123456", now)))

	reg, err := s.TryConsume(ctx, "a@x.com", "123456", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", reg.Email)
	assert.Equal(t, "al", reg.Nickname)
	assert.Equal(t, "pw", reg.Password)

	_, err = s.TryConsume(ctx, "a@x.com", "123456", now.Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_MismatchKeepsEntry(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Put(ctx, pending("a@x.com", "123456", now)))

	_, err := s.TryConsume(ctx, "a@x.com", "000000", now)
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	_, err = s.TryConsume(ctx, "a@x.com", "000000", now)
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	assert.True(t, mr.Exists("verify:pending:a@x.com"))

	reg, err := s.TryConsume(ctx, "a@x.com", "123456", now)
	require.NoError(t, err)
	assert.Equal(t, "123456", reg.Code)
}

func TestStore_ResendReplacesCode(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Put(ctx, pending("a@x.com", "111111", now)))
	require.NoError(t, s.Put(ctx, pending("a@x.com", "222222", now)))

	_, err := s.TryConsume(ctx, "a@x.com", "111111", now)
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	_, err = s.TryConsume(ctx, "a@x.com", "222222", now)
	assert.NoError(t, err)
}

func TestStore_ExpiredThenNotFound(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	issued := time.Now()
	require.NoError(t, s.Put(ctx, pending("a@x.com", "123456", issued)))

	_, err := s.TryConsume(ctx, "a@x.com", "123456", issued.Add(testTTL+time.Second))
	assert.ErrorIs(t, err, domain.ErrExpired)
	assert.False(t, mr.Exists("verify:pending:a@x.com"))

	_, err = s.TryConsume(ctx, "a@x.com", "123456", issued.Add(testTTL+time.Second))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ValidAtExactTTL(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	issued := time.Now()
	require.NoError(t, s.Put(ctx, pending("a@x.com", "123456", issued)))

	_, err := s.TryConsume(ctx, "a@x.com", "123456", issued.Add(testTTL))
	assert.NoError(t, err)
}

func TestStore_NotFoundAfterRetention(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	issued := time.Now()
	require.NoError(t, s.Put(ctx, pending("a@x.com", "123456", issued)))

	mr.FastForward(2*testTTL + time.Second)

	_, err := s.TryConsume(ctx, "a@x.com", "123456", issued.Add(2*testTTL+time.Second))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ConcurrentConsumeSingleWinner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Put(ctx, pending("a@x.com", "123456", now)))

	const n = 16
	var wins, notFound atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.TryConsume(ctx, "a@x.com", "123456", now)
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, domain.ErrNotFound):
				notFound.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, n-1, notFound.Load())
}
