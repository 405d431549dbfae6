package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	hits   []time.Time
	window time.Duration
}

// MemoryLimiter is a per-process sliding window limiter
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMemoryLimiter starts a limiter that drops idle buckets every cleanupInterval
func NewMemoryLimiter(cleanupInterval time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go l.cleanupLoop(cleanupInterval)
	}
	return l
}

// Close stops the cleanup goroutine
func (l *MemoryLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, rule Rule) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := bucketKey(key, rule)
	b, ok := l.buckets[k]
	if !ok {
		b = &bucket{window: rule.Window}
		l.buckets[k] = b
	}
	b.hits = recent(b.hits, now.Add(-rule.Window))

	if len(b.hits) >= rule.Limit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: b.hits[0].Add(rule.Window).Sub(now),
		}, nil
	}

	b.hits = append(b.hits, now)
	return Decision{
		Allowed:   true,
		Remaining: rule.Limit - len(b.hits),
	}, nil
}

func (l *MemoryLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *MemoryLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, b := range l.buckets {
		b.hits = recent(b.hits, now.Add(-b.window))
		if len(b.hits) == 0 {
			delete(l.buckets, k)
		}
	}
}

// recent keeps hits strictly after cutoff; hits are in ascending order
func recent(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
