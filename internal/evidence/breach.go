package evidence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

const hibpURL = "https://haveibeenpwned.com/api/v3/breachedaccount/"

type hibpBreach struct {
	Name string `json:"Name"`
}

// BreachChecker queries the HaveIBeenPwned v3 API for an address's
// breach history. Its HTTP client is injected so callers can route it
// through the proxy pool (C12) the same way SMTP dialogs are routed.
type BreachChecker struct {
	Client *http.Client
	APIKey string
}

// NewBreachChecker builds a checker with a sane request timeout. A
// nil transport falls back to http.DefaultTransport.
func NewBreachChecker(apiKey string, transport http.RoundTripper) *BreachChecker {
	client := &http.Client{Timeout: 10 * time.Second}
	if transport != nil {
		client.Transport = transport
	}
	return &BreachChecker{Client: client, APIKey: apiKey}
}

// CheckBreachCount returns the number of breaches email appears in, or
// 0 if the API key is absent, the address is clean, or any
// unrecoverable error occurs — breach evidence is advisory, so a
// lookup failure degrades to "no evidence" rather than an error.
func (b *BreachChecker) CheckBreachCount(ctx context.Context, email string) int {
	if b.APIKey == "" {
		return 0
	}

	// Local parts may contain '%' or '/', which are meaningful in a URL
	// path segment; PathEscape encodes those while leaving '@' and '+'
	// untouched, matching what the HIBP path format expects.
	endpoint := hibpURL + url.PathEscape(email) + "?truncateResponse=true"

	for attempt := 1; attempt <= 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return 0
		}
		req.Header.Set("hibp-api-key", b.APIKey)
		req.Header.Set("User-Agent", "emailcheck-verifier")

		resp, err := b.Client.Do(req)
		if err != nil {
			if attempt == 1 {
				time.Sleep(500 * time.Millisecond)
				continue
			}
			return 0
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var breaches []hibpBreach
			err := json.NewDecoder(resp.Body).Decode(&breaches)
			resp.Body.Close()
			if err != nil {
				return 0
			}
			return len(breaches)
		case http.StatusNotFound:
			resp.Body.Close()
			return 0
		case http.StatusTooManyRequests:
			resp.Body.Close()
			if attempt == 1 {
				logrus.WithField("email", email).Debug("HIBP rate limited, backing off")
				select {
				case <-time.After(1600 * time.Millisecond):
				case <-ctx.Done():
					return 0
				}
				continue
			}
			return 0
		default:
			resp.Body.Close()
			if attempt == 1 {
				time.Sleep(500 * time.Millisecond)
				continue
			}
			return 0
		}
	}
	return 0
}
