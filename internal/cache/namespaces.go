package cache

import (
	"context"
	"time"

	"github.com/ahmadpiran/emailcheck/internal/model"
)

// Namespaces bundles every cache instance the engine consults, one per
// concern it memoizes. A single Namespaces is created per process; its
// MX store is handed to the resolver and its SmtpPort store to the SMTP
// engine.
type Namespaces struct {
	MX               *Store[model.MxResult]
	Syntax           *Store[model.SyntaxResult]
	Disposable       *Store[bool]
	Free             *Store[bool]
	DomainValid      *Store[bool]
	Smtp             *Store[model.DialogOutcome]
	SmtpPort         *Store[int]
	DomainSuggestion *Store[string]
	Whois            *Store[int]
	Probe            *Store[model.DialogOutcome]
}

// StartCleanup starts the background sweep goroutine on every
// namespace, so callers don't have to enumerate each store by hand.
func (n *Namespaces) StartCleanup(ctx context.Context, interval time.Duration) {
	n.MX.StartCleanup(ctx, interval)
	n.Syntax.StartCleanup(ctx, interval)
	n.Disposable.StartCleanup(ctx, interval)
	n.Free.StartCleanup(ctx, interval)
	n.DomainValid.StartCleanup(ctx, interval)
	n.Smtp.StartCleanup(ctx, interval)
	n.SmtpPort.StartCleanup(ctx, interval)
	n.DomainSuggestion.StartCleanup(ctx, interval)
	n.Whois.StartCleanup(ctx, interval)
	n.Probe.StartCleanup(ctx, interval)
}

// NewNamespaces wires the sizes and TTLs this deployment ships with;
// these are deployment decisions, not part of the cache design itself.
func NewNamespaces() *Namespaces {
	return &Namespaces{
		MX:               New[model.MxResult]("mx", 10_000, 10*time.Minute),
		Syntax:           New[model.SyntaxResult]("syntax", 50_000, time.Hour),
		Disposable:       New[bool]("disposable", 50_000, 24*time.Hour),
		Free:             New[bool]("free", 50_000, 24*time.Hour),
		DomainValid:      New[bool]("domainValid", 20_000, 30*time.Minute),
		Smtp:             New[model.DialogOutcome]("smtp", 20_000, 30*time.Minute),
		SmtpPort:         New[int]("smtpPort", 20_000, 24*time.Hour),
		DomainSuggestion: New[string]("domainSuggestion", 10_000, 24*time.Hour),
		Whois:            New[int]("whois", 10_000, 24*time.Hour),
		Probe:            New[model.DialogOutcome]("probe", 20_000, 15*time.Minute),
	}
}
