package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/ahmadpiran/emailcheck/internal/cache"
	"github.com/ahmadpiran/emailcheck/internal/model"
)

func TestResolveMX_NoRecords(t *testing.T) {
	r := New(cache.New[model.MxResult]("mx", 100, time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// A syntactically valid domain that will never have MX records.
	result := r.ResolveMX(ctx, "definitely-invalid.invalid")
	if result.Success {
		t.Fatalf("expected failure for a domain with no MX records, got success")
	}
	if result.Code == "" {
		t.Errorf("expected a non-empty error code, got empty")
	}
}

func TestResolveMX_CachesResult(t *testing.T) {
	c := cache.New[model.MxResult]("mx", 100, time.Minute)
	r := New(c)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	domain := "cache-probe.invalid"
	first := r.ResolveMX(ctx, domain)
	second := r.ResolveMX(ctx, domain)

	if first.Success != second.Success || first.Code != second.Code {
		t.Fatalf("expected identical cached result, got %+v then %+v", first, second)
	}
	if !c.Has(domain) {
		t.Errorf("expected domain to be present in cache after resolution")
	}
}

func TestResolveMX_NormalizesCaseAndWhitespace(t *testing.T) {
	c := cache.New[model.MxResult]("mx", 100, time.Minute)
	r := New(c)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r.ResolveMX(ctx, "  Example.INVALID  ")
	if !c.Has("example.invalid") {
		t.Errorf("expected cache key to be lowercased and trimmed")
	}
}
