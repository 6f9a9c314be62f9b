// Package interpreter implements the response interpreter (C6): a
// stateless classifier that turns an SMTP reply code plus free-text
// message into a normalized {kind, severity, providerCode}.
//
// A policy/anti-abuse phrase check runs first, then provider-specific
// phrase rules, then generic phrase rules, then greylist phrases, then
// a code-based fallback, in that order. A provider rule whose phrase
// also matches the policy check (e.g. "relay access denied") is never
// reached, so such replies carry no ProviderCode.
package interpreter

import (
	"net/textproto"
	"regexp"
	"strconv"
	"strings"

	"github.com/ahmadpiran/emailcheck/internal/model"
)

var policyRegex = regexp.MustCompile(`(?i)spam|policy|rbl|blocked|blacklist|reputation|reject(ed)? by network|spf|dmarc|dkim|spamhaus|sorbs|relay|unauthenticated|access denied|not permitted`)

var greylistRegex = regexp.MustCompile(`(?i)greylist|grey-list|try again|try later|temporarily deferred`)

type providerRule struct {
	phrase       *regexp.Regexp
	kind         model.ErrorKind
	severity     model.Severity
	providerCode string
}

var providerRules = map[model.ProviderTag][]providerRule{
	model.ProviderGmail: {
		{regexp.MustCompile(`(?i)account.*disabled|this account has been disabled`), model.KindDisabled, model.SeverityPermanent, "GMAIL_DISABLED"},
		{regexp.MustCompile(`(?i)mailbox.*(full|quota)`), model.KindFullInbox, model.SeverityTemporary, "GMAIL_FULL"},
		{regexp.MustCompile(`(?i)rate.*limit|too many (login|rcpt|messages)`), model.KindRateLimited, model.SeverityTemporary, "GMAIL_RATE_LIMIT"},
	},
	model.ProviderYahoo: {
		{regexp.MustCompile(`(?i)mailbox.*(full|over quota)`), model.KindFullInbox, model.SeverityTemporary, "YAHOO_FULL"},
		{regexp.MustCompile(`(?i)request rejected|message rejected due to.*policy`), model.KindPolicyRejection, model.SeverityUnknown, "YAHOO_POLICY_REJECT"},
		{regexp.MustCompile(`(?i)frequency limit|rate.*exceed`), model.KindRateLimited, model.SeverityTemporary, "YAHOO_RATE_LIMIT"},
	},
	model.ProviderHotmailB2C: {
		{regexp.MustCompile(`(?i)relay access denied`), model.KindPolicyRejection, model.SeverityPermanent, "EXCHANGE_RELAY_DENIED"},
		{regexp.MustCompile(`(?i)content filter|spam message rejected`), model.KindBlocked, model.SeverityUnknown, "EXCHANGE_CONTENT_FILTER"},
	},
	model.ProviderHotmailB2B: {
		{regexp.MustCompile(`(?i)relay access denied`), model.KindPolicyRejection, model.SeverityPermanent, "EXCHANGE_RELAY_DENIED"},
		{regexp.MustCompile(`(?i)content filter|spam message rejected`), model.KindBlocked, model.SeverityUnknown, "EXCHANGE_CONTENT_FILTER"},
		{regexp.MustCompile(`(?i)recipients belong to multiple regions`), model.KindConnectionError, model.SeverityTemporary, "O365_MULTI_REGION"},
	},
	model.ProviderProofpoint: {
		{regexp.MustCompile(`(?i)message (has been|was) blocked|policy reason`), model.KindPolicyRejection, model.SeverityUnknown, "PROOFPOINT_POLICY"},
	},
	model.ProviderMimecast: {
		{regexp.MustCompile(`(?i)rejected by.*mimecast|temporarily deferred`), model.KindGreyListed, model.SeverityTemporary, "MIMECAST_DEFERRED"},
	},
}

var genericPhraseRules = []providerRule{
	{regexp.MustCompile(`(?i)account (is )?disabled|user disabled`), model.KindDisabled, model.SeverityPermanent, ""},
	{regexp.MustCompile(`(?i)mailbox is full|mailbox.*(quota|over.?quota)`), model.KindFullInbox, model.SeverityTemporary, ""},
	{regexp.MustCompile(`(?i)user unknown|no such user|does not exist|unknown user|unroutable address|mailbox unavailable|invalid mailbox|no mailbox here|recipient rejected|address rejected|bad destination`), model.KindInvalid, model.SeverityPermanent, ""},
	{regexp.MustCompile(`(?i)rate limit exceeded|too many (connections|requests)`), model.KindRateLimited, model.SeverityTemporary, ""},
}

// Classify interprets one SMTP reply. code is the numeric status code
// (0 if unavailable, e.g. a connection-level error); message is the
// free-text portion of the reply.
func Classify(message string, providerTag model.ProviderTag, code int) model.Classification {
	// Policy/anti-abuse language takes priority over a bare "no such
	// user" reading, so a blocked sender is never misclassified as an
	// invalid recipient.
	if policyRegex.MatchString(message) {
		return model.Classification{Kind: model.KindPolicyRejection, Severity: model.SeverityUnknown, Message: message}
	}

	if rules, ok := providerRules[providerTag]; ok {
		for _, r := range rules {
			if r.phrase.MatchString(message) {
				return model.Classification{Kind: r.kind, Severity: r.severity, Message: message, ProviderCode: r.providerCode}
			}
		}
	}

	for _, r := range genericPhraseRules {
		if r.phrase.MatchString(message) {
			return model.Classification{Kind: r.kind, Severity: r.severity, Message: message}
		}
	}

	if greylistRegex.MatchString(message) {
		return model.Classification{Kind: model.KindGreyListed, Severity: model.SeverityTemporary, Message: message}
	}

	return classifyByCode(code, message)
}

// ClassifyError interprets a Go error returned by the SMTP transport,
// preferring a structured *textproto.Error code over string matching
// when one is available — structured codes are more reliable than
// free-text scraping.
func ClassifyError(err error, providerTag model.ProviderTag) model.Classification {
	if err == nil {
		return model.Classification{Kind: model.KindNone, Severity: model.SeverityUnknown}
	}
	if tpErr, ok := err.(*textproto.Error); ok {
		return Classify(tpErr.Msg, providerTag, tpErr.Code)
	}
	return Classify(err.Error(), providerTag, extractLeadingCode(err.Error()))
}

func extractLeadingCode(s string) int {
	s = strings.TrimSpace(s)
	if len(s) < 3 {
		return 0
	}
	code, err := strconv.Atoi(s[:3])
	if err != nil {
		return 0
	}
	return code
}

func classifyByCode(code int, message string) model.Classification {
	switch {
	case code == 550:
		return model.Classification{Kind: model.KindDisabled, Severity: model.SeverityPermanent, Message: message}
	case code == 552:
		return model.Classification{Kind: model.KindFullInbox, Severity: model.SeverityTemporary, Message: message}
	case code == 450 || code == 451:
		return model.Classification{Kind: model.KindRateLimited, Severity: model.SeverityTemporary, Message: message}
	case code == 0:
		return model.Classification{Kind: model.KindUnknown, Severity: model.SeverityUnknown, Message: message}
	default:
		return model.Classification{Kind: model.KindUnknown, Severity: model.SeverityUnknown, Message: message}
	}
}
