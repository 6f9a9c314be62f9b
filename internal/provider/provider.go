// Package provider maps a domain (and optionally its MX exchange) to a
// ProviderTag, via a registry of match rules rather than a conditional
// tree.
package provider

import (
	"strings"

	"github.com/ahmadpiran/emailcheck/internal/model"
)

// rule matches either a domain or an MX host against a ProviderTag.
type rule struct {
	tag          model.ProviderTag
	domainExact  map[string]struct{}
	domainSuffix []string // not consulted by Classify; domains match by exact set only
	mxContains   []string
	mxSuffix     []string
}

var registry = []rule{
	{
		tag:         model.ProviderGmail,
		domainExact: set("gmail.com", "googlemail.com"),
	},
	{
		// Covers the international TLD variants Yahoo Mail actually
		// issues addresses under, not just the bare .com.
		tag: model.ProviderYahoo,
		domainExact: set(
			"yahoo.com", "yahoo.co.uk", "yahoo.co.jp", "yahoo.de", "yahoo.fr",
			"yahoo.it", "yahoo.es", "yahoo.ca", "yahoo.com.au", "yahoo.com.br",
			"yahoo.co.in", "yahoo.com.mx", "yahoo.com.sg", "yahoo.co.id",
			"ymail.com", "ymail.co.uk", "rocketmail.com",
		),
	},
	{
		// Microsoft issues consumer addresses under all three families
		// (hotmail/outlook/live) across many country-code TLDs.
		tag: model.ProviderHotmailB2C,
		domainExact: set(
			"hotmail.com", "hotmail.co.uk", "hotmail.fr", "hotmail.de",
			"hotmail.it", "hotmail.es", "hotmail.com.br", "hotmail.co.jp",
			"outlook.com", "outlook.co.uk", "outlook.de", "outlook.fr",
			"outlook.it", "outlook.es", "outlook.com.br", "outlook.co.jp",
			"outlook.com.au", "outlook.sa",
			"live.com", "live.co.uk", "live.de", "live.fr", "live.it",
			"live.com.au", "live.ca", "live.com.br", "live.cn",
			"msn.com",
		),
	},
	{
		tag:        model.ProviderHotmailB2B,
		mxSuffix:   []string{"-com.olc.protection.outlook.com", ".mail.protection.outlook.com"},
	},
	{
		tag:        model.ProviderProofpoint,
		mxContains: []string{"pphosted.com", "ppe-hosted.com"},
	},
	{
		tag:      model.ProviderMimecast,
		mxSuffix: []string{".mimecast.com"},
	},
}

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

// Classify maps domain (and optionally mxHost, the lowest-priority MX
// exchange) to a ProviderTag. Domain rules match only exact registered
// domains: a subdomain of a well-known provider (e.g. mail.gmail.com)
// does NOT inherit its tag, so this never does substring/suffix
// matching on the domain itself, only exact-set membership.
func Classify(domain, mxHost string) model.ProviderTag {
	domain = strings.ToLower(strings.TrimSpace(domain))
	mxHost = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(mxHost), "."))

	for _, r := range registry {
		if r.domainExact != nil {
			if _, ok := r.domainExact[domain]; ok {
				return r.tag
			}
		}
	}

	if mxHost == "" {
		return model.ProviderEverythingElse
	}

	for _, r := range registry {
		for _, suf := range r.mxSuffix {
			if strings.HasSuffix(mxHost, suf) {
				return r.tag
			}
		}
		for _, sub := range r.mxContains {
			if strings.Contains(mxHost, sub) {
				return r.tag
			}
		}
	}

	return model.ProviderEverythingElse
}
