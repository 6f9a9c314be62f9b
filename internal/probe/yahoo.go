// Package probe implements alternate, non-SMTP verification paths that
// share the SMTP engine's DialogOutcome contract. The Yahoo probe
// fetches the signup page for a CSRF-like token and session cookie,
// POSTs a candidate identifier, and interprets the JSON error-name
// response.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"strings"
	"time"

	"github.com/ahmadpiran/emailcheck/internal/model"
	"github.com/ahmadpiran/emailcheck/internal/provider"
)

const (
	yahooSignupURL     = "https://login.yahoo.com/account/create"
	yahooValidationURL = "https://login.yahoo.com/account/module/create?validateField=yid"
)

var acrumbRegex = regexp.MustCompile(`"acrumb"\s*:\s*"([^"]+)"`)

// YahooProbe implements the Yahoo signup-form probe.
type YahooProbe struct {
	client *http.Client
}

// NewYahooProbe builds a probe with its own cookie jar, since the
// signup-page session cookie must be replayed on the validation POST.
func NewYahooProbe(transport http.RoundTripper) *YahooProbe {
	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar, Timeout: 15 * time.Second}
	if transport != nil {
		client.Transport = transport
	}
	return &YahooProbe{client: client}
}

type yahooValidationResponse struct {
	Errors []struct {
		Name string `json:"name"`
	} `json:"errors"`
}

// Check probes whether local@domain exists on Yahoo's signup flow.
// domain must be a Yahoo-family domain; non-Yahoo domains are rejected
// with a fixed "Not a Yahoo domain" message.
func (p *YahooProbe) Check(ctx context.Context, local, domain string) model.DialogOutcome {
	if !isYahooDomain(domain) {
		return model.DialogOutcome{
			Deliverable:    model.TriUnknown,
			Classification: model.Classification{Kind: model.KindUnknown, Message: "Not a Yahoo domain"},
		}
	}

	acrumb, err := p.fetchAcrumb(ctx)
	if err != nil {
		return errOutcome(err)
	}

	outcome, err := p.validate(ctx, local, acrumb)
	if err != nil {
		return errOutcome(err)
	}
	return outcome
}

// isYahooDomain accepts exactly the domains the provider classifier tags
// as Yahoo, so the orchestrator never dispatches a domain this guard rejects.
func isYahooDomain(domain string) bool {
	return provider.Classify(domain, "") == model.ProviderYahoo
}

func (p *YahooProbe) fetchAcrumb(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, yahooSignupURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; emailcheck/1.0)")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}

	m := acrumbRegex.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("acrumb token not found on signup page")
	}
	return string(m[1]), nil
}

func (p *YahooProbe) validate(ctx context.Context, candidate, acrumb string) (model.DialogOutcome, error) {
	form := fmt.Sprintf("acrumb=%s&yid=%s&specId=yidReg", acrumb, candidate)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, yahooValidationURL, strings.NewReader(form))
	if err != nil {
		return model.DialogOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; emailcheck/1.0)")

	resp, err := p.client.Do(req)
	if err != nil {
		return model.DialogOutcome{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.DialogOutcome{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	var parsed yahooValidationResponse
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.DialogOutcome{}, err
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Malformed JSON is treated as a non-deliverable result rather
		// than propagating a parse error.
		return model.DialogOutcome{Connected: true, Deliverable: model.TriNo}, nil
	}

	if len(parsed.Errors) == 0 {
		return model.DialogOutcome{Connected: true, Deliverable: model.TriNo}, nil
	}

	for _, e := range parsed.Errors {
		switch e.Name {
		case "IDENTIFIER_NOT_AVAILABLE", "IDENTIFIER_ALREADY_EXISTS", "IDENTIFIER_EXISTS":
			return model.DialogOutcome{Connected: true, Deliverable: model.TriYes}, nil
		}
	}

	// Unknown error name -> isDeliverable=false, error=<name>.
	return model.DialogOutcome{
		Connected:      true,
		Deliverable:    model.TriNo,
		Classification: model.Classification{Kind: model.KindUnknown, Message: parsed.Errors[0].Name},
	}, nil
}

func errOutcome(err error) model.DialogOutcome {
	return model.DialogOutcome{
		Deliverable:    model.TriUnknown,
		Classification: model.Classification{Kind: model.KindConnectionError, Severity: model.SeverityTemporary, Message: err.Error()},
	}
}
