package evidence

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// DomainAgeChecker queries RDAP for a domain's registration date.
type DomainAgeChecker struct {
	Client *http.Client
}

func NewDomainAgeChecker(transport http.RoundTripper) *DomainAgeChecker {
	client := &http.Client{Timeout: 10 * time.Second}
	if transport != nil {
		client.Transport = transport
	}
	return &DomainAgeChecker{Client: client}
}

type rdapResponse struct {
	Events []struct {
		Action string `json:"eventAction"`
		Date   string `json:"eventDate"`
	} `json:"events"`
}

// CheckDomainAgeDays returns how many days ago domain was registered,
// or 0 if the RDAP lookup fails or carries no registration event.
func (c *DomainAgeChecker) CheckDomainAgeDays(ctx context.Context, domain string) int {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://rdap.org/domain/"+domain, nil)
	if err != nil {
		return 0
	}
	req.Header.Set("Accept", "application/rdap+json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0
	}

	var rdap rdapResponse
	if err := json.NewDecoder(resp.Body).Decode(&rdap); err != nil {
		return 0
	}

	var created time.Time
	for _, event := range rdap.Events {
		if event.Action != "registration" && event.Action != "creation" {
			continue
		}
		t, err := time.Parse(time.RFC3339, event.Date)
		if err != nil {
			continue
		}
		if created.IsZero() || t.Before(created) {
			created = t
		}
	}
	if created.IsZero() {
		return 0
	}
	return int(time.Since(created).Hours() / 24)
}
