package syntaxcheck

import (
	"strings"
	"testing"
)

func TestValidate_NonString(t *testing.T) {
	r := Validate(42)
	if r.IsValid {
		t.Fatalf("expected non-string input to be invalid")
	}
	if r.Error != "must be a string" {
		t.Errorf("unexpected error message: %q", r.Error)
	}
}

func TestValidateString_Valid(t *testing.T) {
	r := ValidateString("a@b.co")
	if !r.IsValid {
		t.Fatalf("expected valid, got error %q", r.Error)
	}
	if r.Local != "a" || r.Domain != "b.co" {
		t.Errorf("unexpected split: local=%q domain=%q", r.Local, r.Domain)
	}
}

func TestValidateString_UppercaseNormalizes(t *testing.T) {
	lower := ValidateString("a@b.co")
	upper := ValidateString("A@B.CO")
	if lower != upper {
		t.Errorf("expected case-insensitive idempotence, got %+v vs %+v", lower, upper)
	}
}

func TestValidateString_Idempotent(t *testing.T) {
	first := ValidateString("  Mixed.Case+tag@Example.COM ")
	second := ValidateString(first.Local + "@" + first.Domain)
	if first.IsValid != second.IsValid || first.Local != second.Local || first.Domain != second.Domain {
		t.Errorf("validation is not idempotent: %+v vs %+v", first, second)
	}
}

func TestValidateString_InvalidFormat(t *testing.T) {
	cases := []string{"", "noat.example.com", "a@b@c.com", "a@", "@b.com", "a b@c.com"}
	for _, c := range cases {
		r := ValidateString(c)
		if r.IsValid {
			t.Errorf("expected %q to be invalid", c)
		}
		if !strings.Contains(r.Error, "Invalid email format") {
			t.Errorf("expected %q error to contain 'Invalid email format', got %q", c, r.Error)
		}
	}
}

func TestValidateString_LocalPartLength(t *testing.T) {
	local64 := strings.Repeat("a", 64)
	local65 := strings.Repeat("a", 65)

	ok := ValidateString(local64 + "@example.com")
	if !ok.IsValid {
		t.Errorf("expected 64-byte local part to be valid, got %q", ok.Error)
	}

	bad := ValidateString(local65 + "@example.com")
	if bad.IsValid {
		t.Fatalf("expected 65-byte local part to be invalid")
	}
	if !strings.Contains(bad.Error, "exceeds 64 characters") {
		t.Errorf("expected message to contain 'exceeds 64 characters', got %q", bad.Error)
	}
}

func TestValidateString_DomainLength(t *testing.T) {
	// Build a 253-byte domain out of legal 63-byte labels, and a 254-byte one.
	label := strings.Repeat("a", 63)
	domain253 := strings.Join([]string{label, label, label, strings.Repeat("a", 61)}, ".") // 63*3+3+61 = 253
	if len(domain253) != 253 {
		t.Fatalf("test setup error: domain253 is %d bytes, want 253", len(domain253))
	}
	ok := ValidateString("a@" + domain253)
	if !ok.IsValid {
		t.Errorf("expected 253-byte domain to be valid, got %q", ok.Error)
	}

	domain254 := domain253 + "a"
	bad := ValidateString("a@" + domain254)
	if bad.IsValid {
		t.Fatalf("expected 254-byte domain to be invalid")
	}
	if !strings.Contains(bad.Error, "exceeds 253 characters") {
		t.Errorf("expected message to contain 'exceeds 253 characters', got %q", bad.Error)
	}
}

func TestValidateString_ConsecutiveDots(t *testing.T) {
	if ValidateString("a..b@example.com").IsValid {
		t.Errorf("expected consecutive dots in local part to be invalid")
	}
	if ValidateString("a@example..com").IsValid {
		t.Errorf("expected consecutive dots in domain to be invalid")
	}
}

func TestValidateString_LeadingTrailingHyphenLabel(t *testing.T) {
	if ValidateString("a@-example.com").IsValid {
		t.Errorf("expected leading-hyphen label to be invalid")
	}
	if ValidateString("a@example-.com").IsValid {
		t.Errorf("expected trailing-hyphen label to be invalid")
	}
}

func TestValidateString_QuotedLocalPartRejected(t *testing.T) {
	if ValidateString(`"quoted"@example.com`).IsValid {
		t.Errorf("expected quoted local part to be rejected")
	}
}
