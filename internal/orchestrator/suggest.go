package orchestrator

// commonTypos maps a handful of frequently-mistyped domains to their
// intended spelling, the same exact-match approach mailnexy's
// verifier uses rather than a general edit-distance suggester.
var commonTypos = map[string]string{
	"gmai.com":     "gmail.com",
	"gmal.com":     "gmail.com",
	"gmial.com":    "gmail.com",
	"gmail.co":     "gmail.com",
	"gmail.com.co": "gmail.com",
	"yaho.com":     "yahoo.com",
	"yahooo.com":   "yahoo.com",
	"yhaoo.com":    "yahoo.com",
	"hotmai.com":   "hotmail.com",
	"hotmial.com":  "hotmail.com",
	"outlok.com":   "outlook.com",
	"outlool.com":  "outlook.com",
}

// SuggestDomain returns a corrected domain for a small set of known
// typos of major providers, or "" if domain isn't a recognized typo.
func SuggestDomain(domain string) string {
	if fixed, ok := commonTypos[domain]; ok {
		return fixed
	}
	return ""
}
