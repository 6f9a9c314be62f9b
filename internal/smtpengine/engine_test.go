package smtpengine

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/ahmadpiran/emailcheck/internal/cache"
	"github.com/ahmadpiran/emailcheck/internal/model"
)

// scriptedServer starts a tiny SMTP stub on 127.0.0.1 that answers each
// client line with the next scripted response, in order. It accepts a
// single connection and then stops listening.
func scriptedServer(t *testing.T, responses []string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start stub server: %v", err)
	}

	go func() {
		conn, err := ln.Accept()
		ln.Close()
		if err != nil {
			return
		}
		defer conn.Close()

		writer := bufio.NewWriter(conn)
		reader := bufio.NewReader(conn)

		// Greeting is sent unprompted.
		if len(responses) > 0 {
			writer.WriteString(responses[0] + "\r\n")
			writer.Flush()
			responses = responses[1:]
		}

		for _, resp := range responses {
			if _, _, err := reader.ReadLine(); err != nil {
				return
			}
			writer.WriteString(resp + "\r\n")
			writer.Flush()
		}
		// Drain and close.
		for {
			if _, _, err := reader.ReadLine(); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String()
}

// dialerTo always dials addr regardless of the requested network address,
// letting tests point the engine at a local stub server under an
// arbitrary "mxHost".
type dialerTo struct {
	addr string
}

func (d dialerTo) DialContext(ctx context.Context, network, _ string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	return dialer.DialContext(ctx, network, d.addr)
}

func TestVerify_AcceptedRecipient(t *testing.T) {
	addr := scriptedServer(t, []string{
		"220 mx.example.com ESMTP",
		"250-mx.example.com\r\n250 VRFY",
		"250 2.1.0 OK",
		"250 2.1.5 OK",
	})

	e := New(cache.New[int]("smtpPort", 100, time.Minute), dialerTo{addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome := e.Verify(ctx, "alice", "example.com", "mx.example.com", model.ProviderEverythingElse, testOptions())

	if outcome.Deliverable != model.TriYes {
		t.Fatalf("expected deliverable=yes, got %+v", outcome)
	}
	if outcome.FinalCode != 250 {
		t.Errorf("expected final code 250, got %d", outcome.FinalCode)
	}
}

func TestVerify_InvalidRecipient(t *testing.T) {
	addr := scriptedServer(t, []string{
		"220 mx.example.com ESMTP",
		"250 mx.example.com",
		"250 2.1.0 OK",
		"550 5.1.1 User unknown",
	})

	e := New(cache.New[int]("smtpPort", 100, time.Minute), dialerTo{addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome := e.Verify(ctx, "bob", "example.com", "mx.example.com", model.ProviderEverythingElse, testOptions())

	if outcome.Deliverable != model.TriNo {
		t.Fatalf("expected deliverable=no, got %+v", outcome)
	}
	if outcome.Classification.Kind != model.KindInvalid {
		t.Errorf("expected KindInvalid, got %v", outcome.Classification.Kind)
	}
}

func TestVerify_PolicyRejectionIsUnknownNotInvalid(t *testing.T) {
	addr := scriptedServer(t, []string{
		"220 mx.example.com ESMTP",
		"250 mx.example.com",
		"250 2.1.0 OK",
		"550 5.7.1 Message blocked due to spam policy",
	})

	e := New(cache.New[int]("smtpPort", 100, time.Minute), dialerTo{addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome := e.Verify(ctx, "carol", "example.com", "mx.example.com", model.ProviderEverythingElse, testOptions())

	if outcome.Deliverable == model.TriNo {
		t.Fatalf("policy rejection must never resolve to a definitive No: %+v", outcome)
	}
	if outcome.Classification.Kind != model.KindPolicyRejection {
		t.Errorf("expected KindPolicyRejection, got %v", outcome.Classification.Kind)
	}
}

func TestVerify_FullInbox(t *testing.T) {
	addr := scriptedServer(t, []string{
		"220 mx.example.com ESMTP",
		"250 mx.example.com",
		"250 2.1.0 OK",
		"552 Mailbox over quota",
	})

	e := New(cache.New[int]("smtpPort", 100, time.Minute), dialerTo{addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome := e.Verify(ctx, "dave", "example.com", "mx.example.com", model.ProviderEverythingElse, testOptions())

	if outcome.Classification.Kind != model.KindFullInbox {
		t.Errorf("expected KindFullInbox, got %v", outcome.Classification.Kind)
	}
}

func TestVerify_NoGreeting(t *testing.T) {
	addr := scriptedServer(t, []string{
		"421 service not available",
	})

	e := New(cache.New[int]("smtpPort", 100, time.Minute), dialerTo{addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome := e.Verify(ctx, "erin", "example.com", "mx.example.com", model.ProviderEverythingElse, testOptions())

	if outcome.Deliverable == model.TriYes {
		t.Fatalf("expected no deliverable=yes without a 220 greeting: %+v", outcome)
	}
}

func TestVerify_EmptyPortListIsUnknownConnectionError(t *testing.T) {
	e := New(cache.New[int]("smtpPort", 100, time.Minute), DirectDialer)
	opts := testOptions()
	opts.Ports = nil

	outcome := e.Verify(context.Background(), "x", "example.com", "mx.example.com", model.ProviderEverythingElse, opts)
	if outcome.Deliverable != model.TriUnknown || outcome.Classification.Kind != model.KindConnectionError {
		t.Fatalf("expected immediate unknown/connection_error for empty port list, got %+v", outcome)
	}
}

func TestOrderedPorts_CachedPortFirst(t *testing.T) {
	portCache := cache.New[int]("smtpPort", 100, time.Minute)
	portCache.Set("example.com", 587)

	e := New(portCache, DirectDialer)
	ports := e.orderedPorts("example.com", []int{25, 587, 465})

	if len(ports) == 0 || ports[0] != 587 {
		t.Fatalf("expected cached port 587 first, got %v", ports)
	}
	if len(ports) != 3 {
		t.Fatalf("expected deduplicated 3-port list, got %v", ports)
	}
}

func TestRandomAlnum_Length(t *testing.T) {
	s := randomAlnum(16)
	if len(s) != 16 {
		t.Fatalf("expected 16 characters, got %d (%q)", len(s), s)
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			t.Fatalf("expected lowercase alnum only, got %q", s)
		}
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Ports = []int{25}
	opts.Sequence = model.Sequence{Steps: []model.SmtpStep{model.StepGreeting, model.StepEhlo, model.StepMailFrom, model.StepRcptTo}}
	return opts
}

