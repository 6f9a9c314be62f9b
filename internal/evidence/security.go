// Package evidence collects the non-verdict-altering signals that ride
// along on VerificationResult.misc: SPF/DMARC/SaaS tool usage, domain
// infra classification, breach history, disposable and free-provider
// status, role-account and entropy heuristics.
package evidence

import (
	"context"
	"net"
	"strings"

	"github.com/ahmadpiran/emailcheck/internal/model"
)

// CheckSPF reports whether domain publishes an SPF TXT record.
func CheckSPF(ctx context.Context, domain string) bool {
	txts, err := net.DefaultResolver.LookupTXT(ctx, domain)
	if err != nil {
		return false
	}
	for _, txt := range txts {
		if strings.HasPrefix(txt, "v=spf1") {
			return true
		}
	}
	return false
}

// CheckDMARC reports whether _dmarc.<domain> publishes a DMARC policy.
func CheckDMARC(ctx context.Context, domain string) bool {
	txts, err := net.DefaultResolver.LookupTXT(ctx, "_dmarc."+domain)
	if err != nil {
		return false
	}
	for _, txt := range txts {
		if strings.HasPrefix(txt, "v=DMARC1") {
			return true
		}
	}
	return false
}

// saaSIndicators are TXT-record substrings that prove a domain is
// actively used for business operations rather than merely parked.
// google-site-verification is deliberately excluded: it fires for
// nearly every Google Workspace domain regardless of actual SaaS
// tool adoption, which would make the signal meaningless.
var saaSIndicators = []string{
	"salesforce",
	"zendesk",
	"atlassian",
	"docusign",
	"facebook-domain-verification",
	"apple-domain-verification",
	"stripe",
}

// CheckSaaSTokens scans a domain's TXT records for B2B SaaS ownership tokens.
func CheckSaaSTokens(ctx context.Context, domain string) bool {
	txts, err := net.DefaultResolver.LookupTXT(ctx, domain)
	if err != nil {
		return false
	}
	for _, txt := range txts {
		lower := strings.ToLower(txt)
		for _, ind := range saaSIndicators {
			if strings.Contains(lower, ind) {
				return true
			}
		}
	}
	return false
}

// Infra is a coarse email-infrastructure classification derived purely
// from MX hostnames, independent of the C4 recipient-domain provider
// tag: a domain can be "office365" infra for everyone on it while its
// recipient-facing provider tag stays EverythingElse.
type Infra string

const (
	InfraProofpoint Infra = "proofpoint"
	InfraMimecast   Infra = "mimecast"
	InfraBarracuda  Infra = "barracuda"
	InfraGoogle     Infra = "google"
	InfraOffice365  Infra = "office365"
	InfraGeneric    Infra = "generic"
)

// IdentifyInfra classifies a domain's mail infrastructure from its MX
// records. Never returns an empty string; callers don't need to
// normalize the result.
func IdentifyInfra(mxRecords []model.MxRecord) Infra {
	for _, mx := range mxRecords {
		host := strings.ToLower(mx.Exchange)
		switch {
		case strings.Contains(host, "pphosted.com"):
			return InfraProofpoint
		case strings.Contains(host, "mimecast.com"):
			return InfraMimecast
		case strings.Contains(host, "barracudanetworks.com"):
			return InfraBarracuda
		case strings.Contains(host, "google.com"), strings.Contains(host, "googlemail.com"):
			return InfraGoogle
		case strings.Contains(host, "outlook.com"), strings.Contains(host, "protection.outlook.com"):
			return InfraOffice365
		}
	}
	return InfraGeneric
}

var parkedMXHosts = []string{
	"secureserver.net",
	"parking.reg.ru",
	"namecheap.com",
	"domaincontrol.com",
}

// IsParkedDomain reports whether an MX hostname points at a known
// registrar-parking service rather than live mail infrastructure.
func IsParkedDomain(mxHost string) bool {
	host := strings.ToLower(mxHost)
	for _, parked := range parkedMXHosts {
		if strings.Contains(host, parked) {
			return true
		}
	}
	return false
}
