package evidence

import (
	"strings"
	"unicode"

	"github.com/ahmadpiran/emailcheck/internal/model"
)

var disposableDomains = map[string]struct{}{
	"temp-mail.org": {}, "10minutemail.com": {}, "guerrillamail.com": {},
	"mailinator.com": {}, "yopmail.com": {}, "throwawaymail.com": {},
	"tempmail.net": {}, "sharklasers.com": {}, "dispostable.com": {},
	"trashmail.com": {}, "getnada.com": {}, "maildrop.cc": {},
}

// IsDisposableDomain reports whether domain is a known burner/throwaway
// mail provider.
func IsDisposableDomain(domain string) bool {
	_, ok := disposableDomains[strings.ToLower(domain)]
	return ok
}

// IsFreeProvider reports whether tag identifies a consumer free-mail
// provider, derived from the same exact-domain classification the
// response interpreter consults, rather than a second domain list
// that could drift out of sync with it.
func IsFreeProvider(tag model.ProviderTag) bool {
	switch tag {
	case model.ProviderGmail, model.ProviderYahoo, model.ProviderHotmailB2C:
		return true
	default:
		return false
	}
}

var roleAccounts = map[string]struct{}{
	"admin": {}, "support": {}, "info": {}, "sales": {},
	"contact": {}, "help": {}, "office": {}, "marketing": {},
	"jobs": {}, "billing": {}, "abuse": {}, "postmaster": {},
	"noreply": {}, "no-reply": {}, "webmaster": {}, "hostmaster": {},
	"hr": {},
}

// IsRoleAccount reports whether the local part names a generic
// function mailbox rather than an individual.
func IsRoleAccount(local string) bool {
	_, ok := roleAccounts[strings.ToLower(local)]
	return ok
}

// DigitRatio measures what fraction of s's characters are digits,
// a cheap bot/burner-handle heuristic: ratios above 0.5 are suspicious.
func DigitRatio(s string) float64 {
	if s == "" {
		return 0
	}
	digits, total := 0.0, 0.0
	for _, r := range s {
		total++
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits / total
}
