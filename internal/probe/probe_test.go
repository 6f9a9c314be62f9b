package probe

import (
	"context"
	"testing"

	"github.com/ahmadpiran/emailcheck/internal/model"
)

func TestYahooProbe_RejectsNonYahooDomain(t *testing.T) {
	p := NewYahooProbe(nil)
	outcome := p.Check(context.Background(), "alice", "gmail.com")

	if outcome.Classification.Message != "Not a Yahoo domain" {
		t.Fatalf("expected domain-guard rejection, got %+v", outcome)
	}
	if outcome.Deliverable != model.TriUnknown {
		t.Errorf("expected unknown deliverable for a rejected domain, got %v", outcome.Deliverable)
	}
}

func TestIsYahooDomain(t *testing.T) {
	cases := map[string]bool{
		"yahoo.com":       true,
		"ymail.com":       true,
		"rocketmail.com":  true,
		"mail.yahoo.com":  false,
		"notyahoo.com":    false,
	}
	for domain, want := range cases {
		if got := isYahooDomain(domain); got != want {
			t.Errorf("isYahooDomain(%s) = %v, want %v", domain, got, want)
		}
	}
}

func TestNewAppProbes_DefaultClient(t *testing.T) {
	p := NewAppProbes(nil)
	if p.client == nil {
		t.Fatal("expected a non-nil http client")
	}
}
