package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/costwatch/costwatch/internal/config"
	"github.com/costwatch/costwatch/pkg/logger"
)

// Rule is one admission policy: max_requests per sliding window plus an
// additive burst allowance.
type Rule struct {
	MaxRequests int           `json:"max_requests"`
	Window      time.Duration `json:"window"`
	Burst       int           `json:"burst"`
}

// Capacity is the hard admission ceiling for any window.
func (r Rule) Capacity() int {
	return r.MaxRequests + r.Burst
}

// Decision is the outcome of one admission check, including the values
// surfaced in the X-RateLimit-* response headers.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// Store holds per-tenant admission state. Admit purges entries older than
// now-window and either records the new admission or reports when retry is
// possible.
type Store interface {
	Admit(ctx context.Context, tenant string, rule Rule, now time.Time) (Decision, error)
	// Purge drops state untouched for longer than the given age.
	Purge(ctx context.Context, olderThan time.Duration) error
}

// Limiter applies the default rule or a per-tenant override to each
// admission check.
type Limiter struct {
	store       Store
	defaultRule Rule
	failClosed  bool

	mu        sync.RWMutex
	overrides map[string]Rule

	storeErrors atomic.Int64
}

func NewLimiter(store Store, cfg *config.RateLimitConfig) *Limiter {
	return &Limiter{
		store: store,
		defaultRule: Rule{
			MaxRequests: cfg.MaxRequests,
			Window:      cfg.Window,
			Burst:       cfg.Burst,
		},
		failClosed: cfg.FailClosed,
		overrides:  make(map[string]Rule),
	}
}

// SetOverride replaces the default rule for one tenant.
func (l *Limiter) SetOverride(tenant string, rule Rule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides[tenant] = rule
}

// RemoveOverride reverts the tenant to the default rule on its next
// admission check.
func (l *Limiter) RemoveOverride(tenant string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.overrides, tenant)
}

// RuleFor returns the rule in effect for a tenant.
func (l *Limiter) RuleFor(tenant string) Rule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if rule, ok := l.overrides[tenant]; ok {
		return rule
	}
	return l.defaultRule
}

// Check runs one admission check for the tenant. If the backing store
// errors the default policy is fail-open: the request is admitted, the
// event counted and logged. Deployments that prefer strictness set
// rate_limit.fail_closed.
func (l *Limiter) Check(ctx context.Context, tenant string) Decision {
	rule := l.RuleFor(tenant)
	decision, err := l.store.Admit(ctx, tenant, rule, time.Now())
	if err != nil {
		l.storeErrors.Add(1)
		logger.Warn().Err(err).Str("tenant", tenant).Msg("rate limit store error")
		if l.failClosed {
			return Decision{
				Allowed:    false,
				Limit:      rule.Capacity(),
				RetryAfter: rule.Window,
				Reset:      time.Now().Add(rule.Window),
			}
		}
		return Decision{Allowed: true, Limit: rule.Capacity(), Remaining: 0, Reset: time.Now().Add(rule.Window)}
	}
	return decision
}

// StoreErrorCount reports how many admission checks hit a store error.
func (l *Limiter) StoreErrorCount() int64 {
	return l.storeErrors.Load()
}

// StartPurge runs periodic TTL cleanup of idle tenant state until the
// context is cancelled.
func (l *Limiter) StartPurge(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := l.store.Purge(ctx, maxIdle); err != nil {
					logger.Warn().Err(err).Msg("rate limit purge failed")
				}
			}
		}
	}()
}
