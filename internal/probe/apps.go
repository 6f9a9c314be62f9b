package probe

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// AppProbes bundles the app/social HTTP probes (C7 misc-evidence
// collaborators) behind one shared client so they can all be routed
// through the proxy pool the same way.
type AppProbes struct {
	client *http.Client
}

func NewAppProbes(transport http.RoundTripper) *AppProbes {
	client := &http.Client{Timeout: 15 * time.Second}
	if transport != nil {
		client.Transport = transport
	}
	return &AppProbes{client: client}
}

func (p *AppProbes) get(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, url, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", randomUserAgent())
	return p.client.Do(req)
}

// CheckTeamsPresence looks for a SIP federation SRV record, then
// confirms the identity exists via the Microsoft login probe.
func (p *AppProbes) CheckTeamsPresence(ctx context.Context, email, domain string) bool {
	_, addrs, err := net.DefaultResolver.LookupSRV(ctx, "sipfederationtls", "tcp", domain)
	if err != nil || len(addrs) == 0 {
		_, addrs, err = net.DefaultResolver.LookupSRV(ctx, "sip", "tls", domain)
		if err != nil || len(addrs) == 0 {
			return false
		}
	}
	return p.CheckMicrosoftLogin(ctx, email)
}

// CheckGoogleCalendar probes the CalDAV endpoint for the address.
func (p *AppProbes) CheckGoogleCalendar(ctx context.Context, email string) bool {
	url := fmt.Sprintf("https://calendar.google.com/calendar/dav/%s/events", email)
	resp, err := p.get(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusOK
}

// CheckSharePoint probes a tenant's OneDrive personal-site naming
// convention for the address.
func (p *AppProbes) CheckSharePoint(ctx context.Context, email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	user, domain := parts[0], parts[1]
	tenant := strings.Split(domain, ".")[0]
	userPath := fmt.Sprintf("%s_%s", user, strings.ReplaceAll(domain, ".", "_"))
	url := fmt.Sprintf("https://%s-my.sharepoint.com/personal/%s", tenant, userPath)

	resp, err := p.get(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusOK
}

// CheckGravatar reports whether email has a registered Gravatar image.
func (p *AppProbes) CheckGravatar(ctx context.Context, email string) bool {
	clean := strings.TrimSpace(strings.ToLower(email))
	hash := md5.Sum([]byte(clean))
	url := fmt.Sprintf("https://www.gravatar.com/avatar/%x?d=404", hash)

	resp, err := p.get(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// CheckGitHub reports whether GitHub's unauthenticated user-search API
// finds an account matching email. Subject to aggressive rate limits.
func (p *AppProbes) CheckGitHub(ctx context.Context, email string) bool {
	url := fmt.Sprintf("https://api.github.com/search/users?q=%s+in:email", email)
	resp, err := p.get(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var result struct {
		TotalCount int `json:"total_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}
	return result.TotalCount > 0
}

type microsoftCredentialResponse struct {
	IfExistsResult int `json:"IfExistsResult"`
}

// CheckMicrosoftLogin reports whether Microsoft's login credential-type
// endpoint recognizes email as an existing identity.
func (p *AppProbes) CheckMicrosoftLogin(ctx context.Context, email string) bool {
	payload, _ := json.Marshal(map[string]string{"username": email})
	resp, err := p.get(ctx, http.MethodPost, "https://login.microsoftonline.com/common/GetCredentialType", payload)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var result microsoftCredentialResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}
	return result.IfExistsResult == 0
}

// CheckAdobe reports whether Adobe's account-lookup endpoint returns a
// recognizable account-type payload for email.
func (p *AppProbes) CheckAdobe(ctx context.Context, email string) bool {
	payload, _ := json.Marshal(map[string]string{"username": email})

	for attempt := 1; attempt <= 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://auth.services.adobe.com/signin/v2/users/accounts", bytes.NewReader(payload))
		if err != nil {
			return false
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-IMS-ClientId", "AdobeID_v2_1")
		req.Header.Set("User-Agent", randomUserAgent())

		resp, err := p.client.Do(req)
		if err != nil {
			if attempt == 1 {
				time.Sleep(500 * time.Millisecond)
				continue
			}
			return false
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return false
		}

		var buf bytes.Buffer
		_, readErr := buf.ReadFrom(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			if attempt == 1 {
				continue
			}
			return false
		}
		return buf.Len() > 50 && strings.Contains(buf.String(), "accountType")
	}
	return false
}
