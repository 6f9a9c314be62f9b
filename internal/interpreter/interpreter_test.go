package interpreter

import (
	"net/textproto"
	"testing"

	"github.com/ahmadpiran/emailcheck/internal/model"
)

func TestClassify_GenericInvalid(t *testing.T) {
	c := Classify("User unknown", model.ProviderEverythingElse, 550)
	if c.Kind != model.KindInvalid {
		t.Errorf("expected KindInvalid, got %v", c.Kind)
	}
}

func TestClassify_PolicyTakesPriorityOverInvalidLooking(t *testing.T) {
	// Even though this mentions "rejected", the policy/blocklist
	// language must win so a blocked sender is never reported Invalid.
	c := Classify("550 5.7.1 Message blocked due to spam content policy", model.ProviderEverythingElse, 550)
	if c.Kind != model.KindPolicyRejection {
		t.Errorf("expected KindPolicyRejection, got %v", c.Kind)
	}
}

func TestClassify_GreylistDetected(t *testing.T) {
	c := Classify("450 4.2.0 greylisted, try again later", model.ProviderEverythingElse, 450)
	if c.Kind != model.KindGreyListed {
		t.Errorf("expected KindGreyListed, got %v", c.Kind)
	}
}

func TestClassify_ProviderSpecificRule(t *testing.T) {
	c := Classify("mailbox over quota", model.ProviderYahoo, 552)
	if c.Kind != model.KindFullInbox || c.ProviderCode != "YAHOO_FULL" {
		t.Errorf("expected YAHOO_FULL full-inbox classification, got %+v", c)
	}
}

func TestClassify_CodeFallback(t *testing.T) {
	cases := []struct {
		code int
		want model.ErrorKind
	}{
		{550, model.KindDisabled},
		{552, model.KindFullInbox},
		{450, model.KindRateLimited},
		{451, model.KindRateLimited},
	}
	for _, c := range cases {
		got := Classify("some unrecognized text", model.ProviderEverythingElse, c.code)
		if got.Kind != c.want {
			t.Errorf("code %d: got %v, want %v", c.code, got.Kind, c.want)
		}
	}
}

func TestClassify_TotallyUnknown(t *testing.T) {
	c := Classify("blorp zingle woz", model.ProviderEverythingElse, 0)
	if c.Kind != model.KindUnknown || c.Severity != model.SeverityUnknown {
		t.Errorf("expected Unknown/Unknown, got %+v", c)
	}
}

func TestClassify_StableAcrossCalls(t *testing.T) {
	a := Classify("mailbox is full", model.ProviderGmail, 552)
	b := Classify("mailbox is full", model.ProviderGmail, 552)
	if a != b {
		t.Errorf("expected classification to be stable across calls, got %+v then %+v", a, b)
	}
}

func TestClassifyError_PrefersStructuredCode(t *testing.T) {
	err := &textproto.Error{Code: 450, Msg: "4.2.1 mailbox temporarily unavailable"}
	c := ClassifyError(err, model.ProviderEverythingElse)
	if c.Kind != model.KindRateLimited {
		t.Errorf("expected structured 450 code to classify as rate limited, got %v", c.Kind)
	}
}
