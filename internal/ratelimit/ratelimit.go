// Package ratelimit bounds attempts per identity per time window. The contract
// lives behind Limiter so the in-memory backend, valid for a single-process
// deployment only, can be swapped for a shared store in a multi-instance one.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter answers whether one more event is allowed for key right now, and if
// not, how long until it would be.
type Limiter interface {
	Allow(key string) (ok bool, retryAfter time.Duration)
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Memory is a per-key token-bucket limiter over a plain map. Idle keys are
// dropped by a janitor goroutine.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewMemory allows `events` per `window` for each key, with bursts up to the
// full allowance.
func NewMemory(events int, window time.Duration) *Memory {
	if events < 1 {
		events = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	m := &Memory{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(window / time.Duration(events)),
		burst:   events,
		idleTTL: 5 * window,
		done:    make(chan struct{}),
	}
	go m.janitor(window)
	return m
}

func (m *Memory) Allow(key string) (bool, time.Duration) {
	m.mu.Lock()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[key] = b
	}
	b.seen = time.Now()
	m.mu.Unlock()

	res := b.lim.Reserve()
	if !res.OK() {
		return false, m.idleTTL
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

func (m *Memory) janitor(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return
		case now := <-t.C:
			m.mu.Lock()
			for k, b := range m.buckets {
				if now.Sub(b.seen) > m.idleTTL {
					delete(m.buckets, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Stop halts the janitor. Safe to call more than once.
func (m *Memory) Stop() {
	m.once.Do(func() { close(m.done) })
}
