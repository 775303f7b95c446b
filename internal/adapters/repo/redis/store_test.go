package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bnema/session-tokens/internal/adapters/repo/redis"
	"github.com/bnema/session-tokens/internal/domain"
	"github.com/bnema/session-tokens/internal/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := redis.NewFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr()}), opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreContract(t *testing.T) {
	store, _ := newTestStore(t)
	ports.RunSessionStoreContract(t, store)
}

func TestRedisStoreListOrdersByStartTime(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, domain.Token{ID: "late", StartTime: start.Add(time.Hour)}))
	require.NoError(t, store.Save(ctx, domain.Token{ID: "early", StartTime: start}))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.TokenID{"early", "late"}, ids)
}

func TestRedisStoreUsesPrefix(t *testing.T) {
	store, mr := newTestStore(t, redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.Token{ID: "s1", Name: "focus"}))

	assert.True(t, mr.Exists("test:s1"))
	assert.False(t, mr.Exists(redis.DefaultPrefix+"s1"))
	members, err := mr.ZMembers("test:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, members)
}

func TestRedisStoreLoadCorruptRecord(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set(redis.DefaultPrefix+"bad", "{not json"))

	_, err := store.Load(context.Background(), "bad")
	assert.ErrorContains(t, err, "decode session bad")
}

func TestRedisStoreLoadRejectsUnknownState(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set(redis.DefaultPrefix+"odd", `{"id":"odd","name":"focus","state":"sleeping"}`))

	_, err := store.Load(context.Background(), "odd")
	assert.ErrorContains(t, err, `unknown state "sleeping"`)
}

func TestRedisStoreLoadDefaultsMissingState(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set(redis.DefaultPrefix+"bare", `{"id":"bare","name":"focus"}`))

	token, err := store.Load(context.Background(), "bare")
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, token.State)
	assert.Equal(t, domain.DefaultDurationMinutes, token.DurationMinutes)
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	err := store.Save(context.Background(), domain.Token{ID: "s1"})
	assert.ErrorContains(t, err, "save session s1 to redis")

	_, err = store.Load(context.Background(), "s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
