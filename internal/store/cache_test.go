package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalroom/internal/calendar"
	"vocalroom/internal/model"
)

// countingBackend counts List calls hitting the inner backend.
type countingBackend struct {
	*Memory
	listCalls int
}

func (c *countingBackend) List(ctx context.Context, from, to calendar.Date) ([]model.Reservation, error) {
	c.listCalls++
	return c.Memory.List(ctx, from, to)
}

func newCacheFixture(t *testing.T) (*Cached, *countingBackend) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inner := &countingBackend{Memory: NewMemory()}
	logger := zerolog.Nop()
	return NewCached(inner, rdb, time.Minute, &logger), inner
}

func TestCached_ListReadThrough(t *testing.T) {
	ctx := context.Background()
	cached, inner := newCacheFixture(t)

	_, err := cached.Create(ctx, "2024-06-01", 9, "Alice")
	require.NoError(t, err)

	from, to := monthOfJune()

	first, err := cached.List(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, inner.listCalls)

	// second read is served from Redis
	second, err := cached.List(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.listCalls)
}

func TestCached_MutationInvalidates(t *testing.T) {
	ctx := context.Background()
	cached, inner := newCacheFixture(t)

	created, err := cached.Create(ctx, "2024-06-01", 9, "Alice")
	require.NoError(t, err)

	from, to := monthOfJune()
	_, err = cached.List(ctx, from, to)
	require.NoError(t, err)
	require.Equal(t, 1, inner.listCalls)

	// a new booking must be visible on the next read
	_, err = cached.Create(ctx, "2024-06-01", 10, "Bob")
	require.NoError(t, err)

	got, err := cached.List(ctx, from, to)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, inner.listCalls)

	// rename and delete invalidate too
	require.NoError(t, cached.UpdateUser(ctx, created.ID, "Carol"))
	got, err = cached.List(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, "Carol", got[0].User)

	require.NoError(t, cached.Delete(ctx, created.ID))
	got, err = cached.List(ctx, from, to)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCached_FailedMutationLeavesCacheWarm(t *testing.T) {
	ctx := context.Background()
	cached, inner := newCacheFixture(t)

	_, err := cached.Create(ctx, "2024-06-01", 9, "Alice")
	require.NoError(t, err)

	from, to := monthOfJune()
	_, err = cached.List(ctx, from, to)
	require.NoError(t, err)
	require.Equal(t, 1, inner.listCalls)

	// rejected duplicate must not bust the cache
	_, err = cached.Create(ctx, "2024-06-01", 9, "Bob")
	require.ErrorIs(t, err, ErrPersistence)

	_, err = cached.List(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.listCalls)
}
