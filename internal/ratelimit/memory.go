package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count     int
	expiresAt time.Time
}

// MemoryLimiter keeps counters in process memory. State is lost on
// restart and is not shared between instances; use RedisLimiter when
// running more than one server.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryLimiter creates an empty in-process limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Hit implements Limiter.
func (m *MemoryLimiter) Hit(_ context.Context, key string, win time.Duration, max int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(win)}
		m.windows[key] = w
	}
	w.count++

	if w.count > max {
		return &ExceededError{Key: key, RetryAfter: w.expiresAt.Sub(now)}
	}
	return nil
}

// Sweep drops expired windows and returns how many were removed.
func (m *MemoryLimiter) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, w := range m.windows {
		if !now.Before(w.expiresAt) {
			delete(m.windows, k)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
