package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/ahmadpiran/emailcheck/internal/cache"
	"github.com/ahmadpiran/emailcheck/internal/model"
	"github.com/ahmadpiran/emailcheck/internal/resolver"
	"github.com/ahmadpiran/emailcheck/internal/smtpengine"
)

func newTestOrchestrator() *Orchestrator {
	ns := cache.NewNamespaces()
	res := resolver.New(ns.MX)
	engine := smtpengine.New(ns.SmtpPort, smtpengine.DirectDialer)
	return New(res, engine, nil, nil)
}

func TestVerifyOne_InvalidSyntaxShortCircuits(t *testing.T) {
	o := newTestOrchestrator()
	result := o.VerifyOne(context.Background(), "not-an-email", DefaultOptions())

	if result.Reachable != model.ReachableInvalid {
		t.Fatalf("expected Invalid for malformed syntax, got %+v", result)
	}
	if result.Mx != nil {
		t.Error("expected no MX lookup to have run for invalid syntax")
	}
}

func TestVerifyOne_NonStringInput(t *testing.T) {
	o := newTestOrchestrator()
	result := o.VerifyOne(context.Background(), 42, DefaultOptions())

	if result.Reachable != model.ReachableInvalid || result.Syntax.IsValid {
		t.Fatalf("expected an immediate invalid verdict for non-string input, got %+v", result)
	}
}

func TestVerifyOne_UnresolvableDomainIsInvalid(t *testing.T) {
	o := newTestOrchestrator()
	opts := DefaultOptions()
	opts.VerifySmtp = false
	opts.Timeout = 3 * time.Second

	result := o.VerifyOne(context.Background(), "someone@definitely-invalid.invalid", opts)
	if result.Reachable != model.ReachableInvalid {
		t.Fatalf("expected Invalid for an unresolvable domain, got %+v", result)
	}
}

func TestVerifyOne_NoVerificationLeavesMxAndSmtpNil(t *testing.T) {
	o := newTestOrchestrator()
	opts := DefaultOptions()
	opts.VerifyMx = false
	opts.VerifySmtp = false

	result := o.VerifyOne(context.Background(), "a@b.co", opts)

	if result.Reachable != model.ReachableUnknown {
		t.Errorf("expected Unknown when neither MX nor SMTP is verified, got %+v", result.Reachable)
	}
	if result.Mx != nil {
		t.Errorf("expected Mx to stay nil when VerifyMx is false, got %+v", result.Mx)
	}
	if result.Smtp != nil {
		t.Errorf("expected Smtp to stay nil when SMTP was never attempted, got %+v", result.Smtp)
	}
}

func TestVerifyBatch_PreservesOrder(t *testing.T) {
	o := newTestOrchestrator()
	opts := DefaultOptions()
	opts.VerifyMx = false
	opts.VerifySmtp = false

	inputs := []any{"bad one", "also bad", "still-bad!!"}
	results := o.VerifyBatch(context.Background(), inputs, opts)

	if len(results) != len(inputs) {
		t.Fatalf("expected %d results, got %d", len(inputs), len(results))
	}
	for i, r := range results {
		if r.Reachable != model.ReachableInvalid {
			t.Errorf("result %d: expected Invalid, got %+v", i, r)
		}
		if r.Email != inputs[i] {
			t.Errorf("result %d: expected email %q, got %q", i, inputs[i], r.Email)
		}
	}
}

func TestIsDisposable(t *testing.T) {
	if !IsDisposable("mailinator.com") {
		t.Error("expected mailinator.com to be disposable")
	}
}

func TestIsFree(t *testing.T) {
	if !IsFree("gmail.com") {
		t.Error("expected gmail.com to be a free provider")
	}
	if IsFree("acme-corp.com") {
		t.Error("expected acme-corp.com to not be a free provider")
	}
}

func TestCollectEvidence_NilCollaboratorsAreSkipped(t *testing.T) {
	o := newTestOrchestrator() // Apps/Breach/DomainAge left nil
	var misc model.MiscEvidence

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Must not panic despite every optional collaborator being nil.
	o.collectEvidence(ctx, "someone@example.com", "example.com", &misc)

	if misc.DomainAgeDays != 0 || misc.BreachCount != 0 || misc.HasGitHub {
		t.Errorf("expected nil collaborators to leave their fields at zero value, got %+v", misc)
	}
}

func TestSuggestDomain(t *testing.T) {
	if got := SuggestDomain("gmai.com"); got != "gmail.com" {
		t.Errorf("expected gmail.com suggestion, got %q", got)
	}
	if got := SuggestDomain("acme-corp.com"); got != "" {
		t.Errorf("expected no suggestion, got %q", got)
	}
}
