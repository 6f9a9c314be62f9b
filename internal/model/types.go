// Package model holds the shared data types passed between the
// syntax, resolver, SMTP, probe, and orchestrator layers.
package model

import "time"

// Tri is a three-valued boolean: a definitive yes/no, or unknown when
// the remote gave no decisive signal.
type Tri string

const (
	TriYes     Tri = "yes"
	TriNo      Tri = "no"
	TriUnknown Tri = "unknown"
)

// ProviderTag classifies a domain by its mailbox provider.
type ProviderTag string

const (
	ProviderGmail         ProviderTag = "gmail"
	ProviderYahoo         ProviderTag = "yahoo"
	ProviderHotmailB2C    ProviderTag = "hotmail_b2c"
	ProviderHotmailB2B    ProviderTag = "hotmail_b2b"
	ProviderProofpoint    ProviderTag = "proofpoint"
	ProviderMimecast      ProviderTag = "mimecast"
	ProviderEverythingElse ProviderTag = "everything_else"
)

// SmtpStep is a single stage of the SMTP dialog state machine.
type SmtpStep string

const (
	StepGreeting SmtpStep = "greeting"
	StepEhlo     SmtpStep = "ehlo"
	StepStartTLS SmtpStep = "starttls"
	StepMailFrom SmtpStep = "mail_from"
	StepRcptTo   SmtpStep = "rcpt_to"
	StepVrfy     SmtpStep = "vrfy"
	StepQuit     SmtpStep = "quit"
)

// Sequence is the ordered list of steps a dialog should attempt, plus
// the envelope fields that parameterize MailFrom/Vrfy.
type Sequence struct {
	Steps      []SmtpStep
	From       string // envelope sender; "" means null-sender <>
	VrfyTarget string // "" means derive from the local part
}

// DefaultSequence is the standard greeting/EHLO/MAIL FROM/RCPT TO dialog.
func DefaultSequence() Sequence {
	return Sequence{
		Steps: []SmtpStep{StepGreeting, StepEhlo, StepMailFrom, StepRcptTo},
	}
}

// TLSPolicy controls certificate validation during STARTTLS/implicit TLS.
type TLSPolicy struct {
	Disabled           bool
	RejectUnauthorized bool
	MinVersion         string // "TLSv1.2" | "TLSv1.3"
}

// ConnectionParams describes one connection attempt to an MX exchange.
type ConnectionParams struct {
	Host           string
	Port           int
	UseImplicitTLS bool
	TLS            TLSPolicy
}

// MxRecord is one DNS MX answer.
type MxRecord struct {
	Exchange string
	Priority uint16
}

// MxResult is the outcome of resolving a domain's MX records.
type MxResult struct {
	Success bool
	Records []MxRecord
	Lowest  *MxRecord
	Error   string
	Code    string // "NXDOMAIN" | "TIMEOUT" | "SERVFAIL" | ""
}

// Severity classifies whether an ErrorKind is expected to persist.
type Severity string

const (
	SeverityPermanent Severity = "permanent"
	SeverityTemporary Severity = "temporary"
	SeverityUnknown   Severity = "unknown"
)

// ErrorKind is the normalized error taxonomy for SMTP/probe outcomes.
type ErrorKind string

const (
	KindInvalid         ErrorKind = "invalid"
	KindDisabled        ErrorKind = "disabled"
	KindFullInbox       ErrorKind = "full_inbox"
	KindRateLimited     ErrorKind = "rate_limited"
	KindBlocked         ErrorKind = "blocked"
	KindGreyListed      ErrorKind = "greylisted"
	KindCatchAll        ErrorKind = "catch_all"
	KindConnectionError ErrorKind = "connection_error"
	KindTimeout         ErrorKind = "timeout"
	KindPolicyRejection ErrorKind = "policy_rejection"
	KindUnknown         ErrorKind = "unknown"
	KindNone            ErrorKind = ""
)

// Classification is the result of the response interpreter (C6).
type Classification struct {
	Kind         ErrorKind
	Severity     Severity
	Message      string
	ProviderCode string
}

// DialogOutcome is the raw result of an SMTP dialog or provider probe.
type DialogOutcome struct {
	Connected      bool
	TLSApplied     bool
	FinalCode      int
	Deliverable    Tri
	Classification Classification
	RawTranscript  []string
	IsCatchAll     bool
	UsedPort       int
}

// Reachable is the orchestrator's final verdict.
type Reachable string

const (
	ReachableSafe    Reachable = "safe"
	ReachableRisky   Reachable = "risky"
	ReachableInvalid Reachable = "invalid"
	ReachableUnknown Reachable = "unknown"
)

// SyntaxResult is the output of the syntax validator (C3).
type SyntaxResult struct {
	IsValid bool
	Local   string
	Domain  string
	Error   string
}

// MiscEvidence carries auxiliary, non-verdict-altering signals.
type MiscEvidence struct {
	IsDisposable     bool
	IsFree           bool
	IsRoleAccount    bool
	DomainSuggestion string
	HasSPF           bool
	HasDMARC         bool
	HasSaaSTokens    bool
	DomainAgeDays    int
	BreachCount      int
	HasTeamsPresence bool
	HasGoogleCalendar bool
	HasSharePoint    bool
	HasAdobe         bool
	HasGitHub        bool
	HasGravatar      bool
}

// VerificationResult is the top-level public output of VerifyOne.
type VerificationResult struct {
	Email      string
	Reachable  Reachable
	Syntax     SyntaxResult
	Provider   ProviderTag
	Mx         *MxResult
	Smtp       *DialogOutcome
	Misc       *MiscEvidence
	DurationMs int64
	Error      string
}

// CacheEntry wraps a cached value with its store time for TTL checks.
type CacheEntry[T any] struct {
	Value    T
	StoredAt time.Time
}
