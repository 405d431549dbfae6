package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppplay-api/internal/testutil"
)

var commentRule = Rule{Action: "comment", Limit: 1, Window: 10 * time.Second}
var createRule = Rule{Action: "market_create", Limit: 3, Window: time.Hour}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time      { return c.t }
func (c *fakeClock) add(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(0)
	defer l.Close()
	l.now = clock.now

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, UserKey(1), createRule)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
		clock.add(10 * time.Minute)
	}

	d, err := l.Allow(ctx, UserKey(1), createRule)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Minute, d.RetryAfter)

	// other users and other actions are independent
	d, _ = l.Allow(ctx, UserKey(2), createRule)
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, UserKey(1), commentRule)
	assert.True(t, d.Allowed)

	// the first hit slides out of the window
	clock.add(30*time.Minute + time.Second)
	d, _ = l.Allow(ctx, UserKey(1), createRule)
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(0)
	defer l.Close()
	l.now = clock.now

	_, _ = l.Allow(context.Background(), UserKey(1), commentRule)
	clock.add(11 * time.Second)
	l.cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.buckets)
}

func TestDBLimiter_FixedWindow(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)}
	l := NewDBLimiter(db)
	l.now = clock.now

	ctx := context.Background()
	d, err := l.Allow(ctx, UserKey(7), commentRule)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	clock.add(5 * time.Second)
	d, err = l.Allow(ctx, UserKey(7), commentRule)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 4*time.Second, d.RetryAfter)

	clock.add(5 * time.Second)
	d, err = l.Allow(ctx, UserKey(7), commentRule)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestDBLimiter_Purge(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewDBLimiter(db)
	l.now = clock.now

	ctx := context.Background()
	_, err := l.Allow(ctx, UserKey(1), commentRule)
	require.NoError(t, err)
	_, err = l.Allow(ctx, UserKey(1), createRule)
	require.NoError(t, err)

	clock.add(time.Minute)
	purged, err := l.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestIPLimiter(t *testing.T) {
	l := NewIPLimiter(1, 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))

	assert.Equal(t, 0, l.Evict(time.Hour))
	assert.Equal(t, 2, l.Evict(-time.Second))
}
