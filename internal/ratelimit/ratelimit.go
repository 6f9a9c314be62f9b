// Package ratelimit implements the rate limiter (C11): a global cap
// plus per-domain presets tuned to each provider's documented or
// observed tolerance for SMTP/probe traffic, so a burst of lookups
// against one mailbox provider never starves the others or draws
// provider-side throttling.
package ratelimit

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// domainPresets are known-conservative rates for providers that are
// quick to throttle or greylist aggressive connection volume.
var domainPresets = map[string]rate.Limit{
	"gmail.com":      2,
	"googlemail.com": 2,
	"outlook.com":    1,
	"hotmail.com":    1,
	"live.com":       1,
	"yahoo.com":      1,
}

const defaultDomainRate = 5
const defaultBurst = 10

// sensitiveDomains trigger the OnThrottle callback (if one is
// registered) when throttled, since they're the providers most likely
// to escalate aggressive probing to a block.
var sensitiveDomains = map[string]struct{}{
	"outlook.com": {}, "hotmail.com": {}, "live.com": {}, "yahoo.com": {},
}

// Manager sequences a global rate limit and a per-domain rate limit,
// waiting on the global gate before the domain-specific one so no
// single domain can starve the shared budget.
type Manager struct {
	global *rate.Limiter

	mu       sync.Mutex
	domain   map[string]*rate.Limiter
	onThrottle func(domain string)
}

// NewManager builds a manager with a global limit of globalRate/sec,
// burst globalBurst.
func NewManager(globalRate float64, globalBurst int) *Manager {
	return &Manager{
		global: rate.NewLimiter(rate.Limit(globalRate), globalBurst),
		domain: make(map[string]*rate.Limiter),
	}
}

// OnThrottle registers a callback invoked whenever a sensitive domain
// is made to wait, so callers can log or meter it.
func (m *Manager) OnThrottle(fn func(domain string)) {
	m.onThrottle = fn
}

// Wait blocks until both the global and the domain-specific limiter
// admit one request, in that order, or ctx is canceled.
func (m *Manager) Wait(ctx context.Context, domain string) error {
	if err := m.global.Wait(ctx); err != nil {
		return err
	}

	domain = strings.ToLower(domain)
	limiter := m.limiterFor(domain)
	if limiter.Tokens() < 1 {
		if _, sensitive := sensitiveDomains[domain]; sensitive && m.onThrottle != nil {
			m.onThrottle(domain)
		}
	}
	return limiter.Wait(ctx)
}

func (m *Manager) limiterFor(domain string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.domain[domain]; ok {
		return l
	}

	r := rate.Limit(defaultDomainRate)
	if preset, ok := domainPresets[domain]; ok {
		r = preset
	}
	l := rate.NewLimiter(r, defaultBurst)
	m.domain[domain] = l
	return l
}
