// Package orchestrator implements the orchestrator (C8) and the
// public API surface (C10): it composes the syntax validator, typo
// suggester, MX resolver, SMTP engine and provider probes into a
// single verdict, and exposes verifyOne/verifyBatch plus the small
// standalone lookups (isDisposable, isFree, suggestDomain).
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahmadpiran/emailcheck/internal/evidence"
	"github.com/ahmadpiran/emailcheck/internal/model"
	"github.com/ahmadpiran/emailcheck/internal/probe"
	"github.com/ahmadpiran/emailcheck/internal/provider"
	"github.com/ahmadpiran/emailcheck/internal/ratelimit"
	"github.com/ahmadpiran/emailcheck/internal/resolver"
	"github.com/ahmadpiran/emailcheck/internal/smtpengine"
	"github.com/ahmadpiran/emailcheck/internal/syntaxcheck"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultBatchSize = 10
	maxBatchSize     = 100
)

// Options configures a verification request.
type Options struct {
	VerifyMx        bool
	VerifySmtp      bool
	SmtpOptions     smtpengine.Options
	UseYahooAPI     bool
	CheckDisposable bool
	CheckFree       bool
	SuggestDomain   bool
	DetectCatchAll  bool
	CollectEvidence bool
	Timeout         time.Duration
	BatchSize       int
	Debug           bool
}

// DefaultOptions returns the documented out-of-the-box defaults.
func DefaultOptions() Options {
	return Options{
		VerifyMx:       true,
		VerifySmtp:     true,
		SmtpOptions:    smtpengine.DefaultOptions(),
		DetectCatchAll: true,
		Timeout:        defaultTimeout,
		BatchSize:      defaultBatchSize,
	}
}

// Orchestrator wires the components a single verification composes.
type Orchestrator struct {
	Resolver    *resolver.Resolver
	Engine      *smtpengine.Engine
	Yahoo       *probe.YahooProbe
	RateLimiter *ratelimit.Manager

	// Optional misc-evidence collaborators (C7 extended probes). Left
	// nil, they're simply skipped — CollectEvidence never fails a
	// verification, only enriches VerificationResult.Misc.
	Apps      *probe.AppProbes
	Breach    *evidence.BreachChecker
	DomainAge *evidence.DomainAgeChecker
}

func New(res *resolver.Resolver, engine *smtpengine.Engine, yahoo *probe.YahooProbe, limiter *ratelimit.Manager) *Orchestrator {
	return &Orchestrator{Resolver: res, Engine: engine, Yahoo: yahoo, RateLimiter: limiter}
}

// WithEvidenceCollaborators attaches the optional app/breach/domain-age
// probes used when Options.CollectEvidence is set. Returns the same
// Orchestrator for chaining, mirroring the builder-style wiring the
// rest of the pack favors for optional collaborators.
func (o *Orchestrator) WithEvidenceCollaborators(apps *probe.AppProbes, breach *evidence.BreachChecker, age *evidence.DomainAgeChecker) *Orchestrator {
	o.Apps = apps
	o.Breach = breach
	o.DomainAge = age
	return o
}

// VerifyOne runs the full verification pipeline: syntax, provider
// classification, MX resolution, SMTP dialog, and misc evidence. It
// must never crash the caller: an unexpected panic in any collaborator
// is caught here and surfaced as reachable:Unknown, error:"internal
// error" instead of propagating.
func (o *Orchestrator) VerifyOne(ctx context.Context, input any, opts Options) (result model.VerificationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = model.VerificationResult{
				Email:     fmt.Sprint(input),
				Reachable: model.ReachableUnknown,
				Error:     "internal error",
			}
		}
	}()
	return o.verifyOne(ctx, input, opts)
}

func (o *Orchestrator) verifyOne(ctx context.Context, input any, opts Options) model.VerificationResult {
	start := time.Now()
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	syn := syntaxcheck.Validate(input)
	if !syn.IsValid {
		return model.VerificationResult{
			Email:      fmt.Sprint(input),
			Reachable:  model.ReachableInvalid,
			Syntax:     syn,
			DurationMs: time.Since(start).Milliseconds(),
		}
	}
	email := syn.Local + "@" + syn.Domain

	var misc model.MiscEvidence
	if opts.SuggestDomain {
		misc.DomainSuggestion = SuggestDomain(syn.Domain)
	}

	tag := provider.Classify(syn.Domain, "")

	var mx model.MxResult
	if opts.VerifyMx {
		if o.RateLimiter != nil {
			if err := o.RateLimiter.Wait(ctx, syn.Domain); err != nil {
				return model.VerificationResult{Email: email, Reachable: model.ReachableUnknown, Syntax: syn, Provider: tag, DurationMs: time.Since(start).Milliseconds(), Error: err.Error()}
			}
		}
		mx = o.Resolver.ResolveMX(ctx, syn.Domain)
		if !mx.Success {
			return model.VerificationResult{
				Email:      email,
				Reachable:  model.ReachableInvalid,
				Syntax:     syn,
				Provider:   tag,
				Mx:         &mx,
				DurationMs: time.Since(start).Milliseconds(),
				Error:      mx.Error,
			}
		}
		tag = provider.Classify(syn.Domain, mx.Lowest.Exchange)
	}

	var smtpOutcome model.DialogOutcome
	var smtpAttempted bool
	if opts.VerifySmtp {
		switch {
		case opts.UseYahooAPI && tag == model.ProviderYahoo && o.Yahoo != nil:
			smtpOutcome = o.Yahoo.Check(ctx, syn.Local, syn.Domain)
			smtpAttempted = true
		case mx.Success:
			smtpOutcome = o.Engine.Verify(ctx, syn.Local, syn.Domain, mx.Lowest.Exchange, tag, opts.SmtpOptions)
			if opts.DetectCatchAll && smtpOutcome.Deliverable == model.TriYes {
				smtpOutcome.IsCatchAll = o.Engine.CatchAllProbe(ctx, syn.Domain, mx.Lowest.Exchange, tag, opts.SmtpOptions)
			}
			smtpAttempted = true
		}
	}

	if opts.CheckDisposable {
		misc.IsDisposable = evidence.IsDisposableDomain(syn.Domain)
	}
	if opts.CheckFree {
		misc.IsFree = evidence.IsFreeProvider(tag)
	}
	misc.IsRoleAccount = evidence.IsRoleAccount(syn.Local)

	if opts.CollectEvidence {
		o.collectEvidence(ctx, email, syn.Domain, &misc)
	}

	reachable := computeReachable(syn, mx, opts, smtpOutcome, misc)

	result := model.VerificationResult{
		Email:      email,
		Reachable:  reachable,
		Syntax:     syn,
		Provider:   tag,
		Misc:       &misc,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if opts.VerifyMx {
		result.Mx = &mx
	}
	if smtpAttempted {
		result.Smtp = &smtpOutcome
	}
	return result
}

// collectEvidence fans the optional C7 misc-evidence collaborators out
// concurrently, same goroutine+WaitGroup shape the teacher used for its
// own misc-evidence cluster. Each goroutine writes a distinct struct
// field, so no mutex is needed. Every collaborator is best-effort: a nil
// collaborator or a failed probe just leaves its field at the zero value.
func (o *Orchestrator) collectEvidence(ctx context.Context, email, domain string, misc *model.MiscEvidence) {
	var wg sync.WaitGroup

	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// A panic on its own goroutine is not caught by VerifyOne's
			// recover — it would crash the whole process. Each
			// collaborator gets its own guard so one bad probe degrades
			// to "no evidence" instead of taking the worker down.
			defer func() { recover() }()
			fn()
		}()
	}

	run(func() { misc.HasSPF = evidence.CheckSPF(ctx, domain) })
	run(func() { misc.HasDMARC = evidence.CheckDMARC(ctx, domain) })
	run(func() { misc.HasSaaSTokens = evidence.CheckSaaSTokens(ctx, domain) })

	if o.DomainAge != nil {
		run(func() { misc.DomainAgeDays = o.DomainAge.CheckDomainAgeDays(ctx, domain) })
	}
	if o.Breach != nil {
		run(func() { misc.BreachCount = o.Breach.CheckBreachCount(ctx, email) })
	}
	if o.Apps != nil {
		run(func() { misc.HasTeamsPresence = o.Apps.CheckTeamsPresence(ctx, email, domain) })
		run(func() { misc.HasGoogleCalendar = o.Apps.CheckGoogleCalendar(ctx, email) })
		run(func() { misc.HasSharePoint = o.Apps.CheckSharePoint(ctx, email) })
		run(func() { misc.HasGravatar = o.Apps.CheckGravatar(ctx, email) })
		run(func() { misc.HasGitHub = o.Apps.CheckGitHub(ctx, email) })
		run(func() { misc.HasAdobe = o.Apps.CheckAdobe(ctx, email) })
	}

	wg.Wait()
}

func computeReachable(syn model.SyntaxResult, mx model.MxResult, opts Options, smtp model.DialogOutcome, misc model.MiscEvidence) model.Reachable {
	if !syn.IsValid {
		return model.ReachableInvalid
	}
	if opts.VerifyMx && !mx.Success {
		return model.ReachableInvalid
	}
	switch smtp.Deliverable {
	case model.TriYes:
		if smtp.IsCatchAll || misc.IsDisposable || smtp.Classification.Kind == model.KindFullInbox {
			return model.ReachableRisky
		}
		return model.ReachableSafe
	case model.TriNo:
		return model.ReachableInvalid
	default:
		return model.ReachableUnknown
	}
}

// VerifyBatch fans out independent verifications bounded by
// opts.BatchSize (default 10, hard ceiling 100). Results preserve
// input order; one slow element never blocks the others.
func (o *Orchestrator) VerifyBatch(ctx context.Context, inputs []any, opts Options) []model.VerificationResult {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	results := make([]model.VerificationResult, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchSize)

	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			results[i] = o.VerifyOne(gctx, in, opts)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// IsDisposable is a standalone C10 entry point: a pure domain lookup,
// no network I/O.
func IsDisposable(domain string) bool {
	return evidence.IsDisposableDomain(domain)
}

// IsFree is a standalone C10 entry point classifying a domain's
// provider without performing MX resolution.
func IsFree(domain string) bool {
	return evidence.IsFreeProvider(provider.Classify(domain, ""))
}
