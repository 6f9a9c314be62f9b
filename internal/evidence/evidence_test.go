package evidence

import (
	"testing"

	"github.com/ahmadpiran/emailcheck/internal/model"
)

func TestIsDisposableDomain(t *testing.T) {
	if !IsDisposableDomain("Mailinator.com") {
		t.Error("expected mailinator.com to be disposable (case-insensitive)")
	}
	if IsDisposableDomain("acme-corp.com") {
		t.Error("expected acme-corp.com to not be disposable")
	}
}

func TestIsFreeProvider(t *testing.T) {
	cases := []struct {
		tag  model.ProviderTag
		want bool
	}{
		{model.ProviderGmail, true},
		{model.ProviderYahoo, true},
		{model.ProviderHotmailB2C, true},
		{model.ProviderHotmailB2B, false},
		{model.ProviderEverythingElse, false},
	}
	for _, c := range cases {
		if got := IsFreeProvider(c.tag); got != c.want {
			t.Errorf("IsFreeProvider(%v) = %v, want %v", c.tag, got, c.want)
		}
	}
}

func TestIsRoleAccount(t *testing.T) {
	if !IsRoleAccount("Admin") {
		t.Error("expected 'Admin' to be a role account (case-insensitive)")
	}
	if IsRoleAccount("jsmith") {
		t.Error("expected 'jsmith' to not be a role account")
	}
}

func TestDigitRatio(t *testing.T) {
	if got := DigitRatio(""); got != 0 {
		t.Errorf("expected 0 for empty string, got %f", got)
	}
	if got := DigitRatio("a1b2c3"); got < 0.49 || got > 0.51 {
		t.Errorf("expected ~0.5 digit ratio, got %f", got)
	}
}

func TestIdentifyInfra(t *testing.T) {
	cases := []struct {
		mx   string
		want Infra
	}{
		{"mx.pphosted.com", InfraProofpoint},
		{"mx.mimecast.com", InfraMimecast},
		{"aspmx.l.google.com", InfraGoogle},
		{"acme-corp-com.mail.protection.outlook.com", InfraOffice365},
		{"mx.acme-corp.com", InfraGeneric},
	}
	for _, c := range cases {
		got := IdentifyInfra([]model.MxRecord{{Exchange: c.mx, Priority: 10}})
		if got != c.want {
			t.Errorf("IdentifyInfra(%s) = %v, want %v", c.mx, got, c.want)
		}
	}
}

func TestIsParkedDomain(t *testing.T) {
	if !IsParkedDomain("park-ns.domaincontrol.com") {
		t.Error("expected domaincontrol.com MX to be parked")
	}
	if IsParkedDomain("aspmx.l.google.com") {
		t.Error("expected google MX to not be parked")
	}
}
