package ratelimit

import (
	"context"
	"sync"
	"time"
)

// tenantWindow is the bounded deque of admission timestamps for one tenant.
// Guarded by its own mutex so tenants never contend with each other.
type tenantWindow struct {
	mu         sync.Mutex
	admissions []time.Time
	lastSeen   time.Time
}

// MemoryStore keeps sliding-window state in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenantWindow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]*tenantWindow)}
}

func (s *MemoryStore) window(tenant string) *tenantWindow {
	s.mu.RLock()
	w, ok := s.tenants[tenant]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok = s.tenants[tenant]; ok {
		return w
	}
	w = &tenantWindow{}
	s.tenants[tenant] = w
	return w
}

// Admit purges admissions strictly older than now-window and admits the
// request while fewer than capacity remain; on denial the retry delay is
// derived from the oldest surviving admission.
func (s *MemoryStore) Admit(_ context.Context, tenant string, rule Rule, now time.Time) (Decision, error) {
	w := s.window(tenant)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastSeen = now
	cutoff := now.Add(-rule.Window)

	keep := 0
	for _, ts := range w.admissions {
		if ts.After(cutoff) {
			break
		}
		keep++
	}
	w.admissions = w.admissions[keep:]

	capacity := rule.Capacity()
	if len(w.admissions) < capacity {
		w.admissions = append(w.admissions, now)
		return Decision{
			Allowed:   true,
			Limit:     capacity,
			Remaining: capacity - len(w.admissions),
			Reset:     now.Add(rule.Window),
		}, nil
	}

	oldest := w.admissions[0]
	retryAfter := oldest.Add(rule.Window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{
		Allowed:    false,
		Limit:      capacity,
		Remaining:  0,
		Reset:      oldest.Add(rule.Window),
		RetryAfter: retryAfter,
	}, nil
}

// Purge drops tenants whose last admission check is older than maxIdle.
func (s *MemoryStore) Purge(_ context.Context, maxIdle time.Duration) error {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	for tenant, w := range s.tenants {
		w.mu.Lock()
		idle := w.lastSeen.Before(cutoff)
		w.mu.Unlock()
		if idle {
			delete(s.tenants, tenant)
		}
	}
	return nil
}
