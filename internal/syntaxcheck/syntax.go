// Package syntaxcheck implements the syntax validator (C3): a pure,
// no-I/O function that normalizes and validates an email address shape.
//
// Error message substrings are part of the public contract — downstream
// consumers pattern-match on them — so they must not be reworded.
package syntaxcheck

import (
	"strings"
	"unicode"

	"github.com/ahmadpiran/emailcheck/internal/model"
	"golang.org/x/text/unicode/norm"
)

const (
	maxLocalBytes  = 64
	maxDomainBytes = 253
	maxLabelBytes  = 63
)

// Validate checks raw (any) input. Non-string input is rejected
// without attempting normalization.
func Validate(raw any) model.SyntaxResult {
	s, ok := raw.(string)
	if !ok {
		return model.SyntaxResult{IsValid: false, Error: "must be a string"}
	}
	return ValidateString(s)
}

// ValidateString runs the same checks directly against a string,
// for call sites that already know the input type.
func ValidateString(s string) model.SyntaxResult {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = norm.NFC.String(s)

	if strings.ContainsAny(s, " \t\r\n") {
		return invalid("Invalid email format: contains whitespace")
	}

	atCount := strings.Count(s, "@")
	if atCount != 1 {
		return invalid("Invalid email format: must contain exactly one '@'")
	}

	at := strings.IndexByte(s, '@')
	local, domain := s[:at], s[at+1:]

	if local == "" || domain == "" {
		return invalid("Invalid email format: empty local or domain part")
	}

	if strings.HasPrefix(local, `"`) || strings.HasSuffix(local, `"`) {
		return invalid("Invalid email format: quoted local parts are not supported")
	}

	if len(local) > maxLocalBytes {
		return invalid("Local part exceeds 64 characters")
	}
	if len(domain) > maxDomainBytes {
		return invalid("Domain exceeds 253 characters")
	}

	if strings.Contains(local, "..") || strings.Contains(domain, "..") {
		return invalid("Invalid email format: consecutive dots are not allowed")
	}

	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return invalid("Invalid email format: local part cannot start or end with a dot")
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return invalid("Invalid email format: domain cannot start or end with a dot")
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return invalid("Invalid email format: domain must contain at least one dot")
	}
	for _, label := range labels {
		if label == "" {
			return invalid("Invalid email format: empty domain label")
		}
		if len(label) > maxLabelBytes {
			return invalid("Invalid email format: domain label exceeds 63 characters")
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return invalid("Invalid email format: domain label cannot start or end with a hyphen")
		}
		for _, r := range label {
			if !isLabelRune(r) {
				return invalid("Invalid email format: domain contains an illegal character")
			}
		}
	}

	if !isValidLocalPart(local) {
		return invalid("Invalid email format: local part contains an illegal character")
	}

	return model.SyntaxResult{IsValid: true, Local: local, Domain: domain}
}

func invalid(msg string) model.SyntaxResult {
	return model.SyntaxResult{IsValid: false, Error: msg}
}

func isLabelRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'
}

func isValidLocalPart(local string) bool {
	for _, r := range local {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
		case strings.ContainsRune(".!#$%&'*+-/=?^_`{|}~", r):
		default:
			return false
		}
	}
	return true
}
