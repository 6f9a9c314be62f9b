// Package resolver implements the DNS/MX resolver (C2): priority-sorted
// MX lookups with classified transport errors, cached by the C1
// substrate.
package resolver

import (
	"context"
	"errors"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/ahmadpiran/emailcheck/internal/cache"
	"github.com/ahmadpiran/emailcheck/internal/model"
)

// Resolver resolves and caches MX records for a domain.
type Resolver struct {
	cache    *cache.Store[model.MxResult]
	resolver *net.Resolver
}

// New builds a Resolver. A dedicated *net.Resolver with PreferGo is
// used so DNS traffic never accidentally routes through an HTTP/SOCKS
// proxy configured for SMTP or probe traffic.
func New(mxCache *cache.Store[model.MxResult]) *Resolver {
	return &Resolver{
		cache: mxCache,
		resolver: &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{Timeout: 3 * time.Second}
				return d.DialContext(ctx, network, address)
			},
		},
	}
}

// ResolveMX resolves domain's MX records, sorted ascending by
// priority, tie-broken by input order (Go's net.LookupMX already
// returns them in query order per-priority, and sort.SliceStable
// preserves that for ties).
func (r *Resolver) ResolveMX(ctx context.Context, domain string) model.MxResult {
	domain = strings.ToLower(strings.TrimSpace(domain))

	if cached, ok := r.cache.Get(domain); ok {
		return cached
	}

	result := r.lookup(ctx, domain)
	r.cache.Set(domain, result)
	return result
}

func (r *Resolver) lookup(ctx context.Context, domain string) model.MxResult {
	mxs, err := r.resolver.LookupMX(ctx, domain)
	if err != nil {
		return model.MxResult{
			Success: false,
			Error:   err.Error(),
			Code:    classifyDNSError(err),
		}
	}

	if len(mxs) == 0 {
		return model.MxResult{
			Success: false,
			Error:   "No MX records found",
			Code:    "NXDOMAIN",
		}
	}

	records := make([]model.MxRecord, len(mxs))
	for i, mx := range mxs {
		records[i] = model.MxRecord{
			Exchange: strings.TrimSuffix(mx.Host, "."),
			Priority: mx.Pref,
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Priority < records[j].Priority
	})

	lowest := records[0]
	return model.MxResult{
		Success: true,
		Records: records,
		Lowest:  &lowest,
	}
}

func classifyDNSError(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return "NXDOMAIN"
		case dnsErr.IsTimeout:
			return "TIMEOUT"
		case dnsErr.Temporary():
			return "SERVFAIL"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}
	return "SERVFAIL"
}
