// Package smtpengine implements the SMTP dialog engine (C5): a state
// machine that connects to an MX exchange (plain, implicit TLS, or
// STARTTLS) and drives a configurable Sequence of steps to a verdict,
// plus the port-preference memo (C9) that remembers the port that
// last worked for a domain.
package smtpengine

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/ahmadpiran/emailcheck/internal/cache"
	"github.com/ahmadpiran/emailcheck/internal/interpreter"
	"github.com/ahmadpiran/emailcheck/internal/model"
)

// Dialer abstracts the network dial so SMTP traffic can be routed
// through a SOCKS5/HTTP proxy (C12) without the engine knowing about it.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error)
}

type directDialer struct{}

func (directDialer) DialContext(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, network, addr)
}

// DirectDialer dials the internet directly, no proxy.
var DirectDialer Dialer = directDialer{}

// Options configures a single SMTP verification dialog.
type Options struct {
	Ports      []int
	Timeout    time.Duration
	MaxRetries int
	TLS        model.TLSPolicy
	Hostname   string
	UseVRFY    bool
	Sequence   model.Sequence
	Debug      bool
}

// DefaultOptions returns the documented out-of-the-box defaults.
func DefaultOptions() Options {
	return Options{
		Ports:      []int{25, 587, 465},
		Timeout:    3 * time.Second,
		MaxRetries: 1,
		TLS:        model.TLSPolicy{RejectUnauthorized: false, MinVersion: "TLSv1.2"},
		Hostname:   "localhost",
		UseVRFY:    true,
		Sequence:   model.DefaultSequence(),
	}
}

// Engine drives SMTP dialogs against a single MX exchange at a time.
type Engine struct {
	portCache *cache.Store[int]
	dialer    Dialer
}

// New builds an Engine. portCache backs C9; dialer may be nil to use
// DirectDialer.
func New(portCache *cache.Store[int], dialer Dialer) *Engine {
	if dialer == nil {
		dialer = DirectDialer
	}
	return &Engine{portCache: portCache, dialer: dialer}
}

// Verify runs the full port loop against mxHost for local@domain,
// returning the first decisive DialogOutcome or the last attempt's
// outcome if every port exhausted its retries inconclusively.
func (e *Engine) Verify(ctx context.Context, local, domain, mxHost string, providerTag model.ProviderTag, opts Options) model.DialogOutcome {
	ports := e.orderedPorts(domain, opts.Ports)
	if len(ports) == 0 {
		return model.DialogOutcome{
			Deliverable:    model.TriUnknown,
			Classification: model.Classification{Kind: model.KindConnectionError, Severity: model.SeverityUnknown, Message: "no ports configured"},
		}
	}

	var last model.DialogOutcome
	for _, port := range ports {
		outcome := e.attemptPortWithRetries(ctx, local, domain, mxHost, port, providerTag, opts)
		last = outcome
		if isDecisive(outcome) {
			if outcome.Connected && e.portCache != nil {
				e.portCache.Set(domain, port)
			}
			return outcome
		}
	}
	return last
}

// CatchAllProbe repeats the verification with a random 16-character
// lowercase-alnum local part that almost certainly has never been
// registered, to detect a domain that accepts mail for any recipient.
func (e *Engine) CatchAllProbe(ctx context.Context, domain, mxHost string, providerTag model.ProviderTag, opts Options) bool {
	probeLocal := randomAlnum(16)
	outcome := e.Verify(ctx, probeLocal, domain, mxHost, providerTag, opts)
	return outcome.Deliverable == model.TriYes
}

// orderedPorts places the cached best port first (C9), then the
// configured port list, deduplicated.
func (e *Engine) orderedPorts(domain string, configured []int) []int {
	if len(configured) == 0 {
		return nil
	}
	ordered := make([]int, 0, len(configured))
	seen := make(map[int]bool)

	if e.portCache != nil {
		if cached, ok := e.portCache.Get(domain); ok {
			ordered = append(ordered, cached)
			seen[cached] = true
		}
	}
	for _, p := range configured {
		if !seen[p] {
			ordered = append(ordered, p)
			seen[p] = true
		}
	}
	return ordered
}

func isDecisive(o model.DialogOutcome) bool {
	return !(o.Classification.Kind == model.KindTimeout || o.Classification.Kind == model.KindConnectionError)
}

func (e *Engine) attemptPortWithRetries(ctx context.Context, local, domain, mxHost string, port int, providerTag model.ProviderTag, opts Options) model.DialogOutcome {
	attempts := opts.MaxRetries + 1
	var outcome model.DialogOutcome
	for attempt := 1; attempt <= attempts; attempt++ {
		outcome = e.attemptPort(ctx, local, domain, mxHost, port, providerTag, opts)
		if isDecisive(outcome) {
			return outcome
		}
		if attempt < attempts {
			backoff := time.Duration(math.Min(1000*math.Pow(2, float64(attempt-1)), 5000)) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return outcome
			}
		}
	}
	return outcome
}

// enterpriseGatewayMarkers are MX-host substrings indicating a "strict
// enterprise gateway" known to tarpit or rate-limit aggressively,
// warranting a longer per-step deadline and a human-paced delay
// between commands.
var enterpriseGatewayMarkers = []string{
	"mimecast.com", "pphosted.com", "ppe-hosted.com", "barracudanetworks.com",
	"messagelabs.com", "iphmx.com", "trendmicro.com", "sophos.com",
	"mailcontrol.com", "mxlogic.net", "fireeye.com", "mx.cloudflare.net",
}

func isEnterpriseGateway(mxHost string) bool {
	h := strings.ToLower(mxHost)
	for _, marker := range enterpriseGatewayMarkers {
		if strings.Contains(h, marker) {
			return true
		}
	}
	return false
}

func connectionParams(mxHost string, port int, tlsPolicy model.TLSPolicy) model.ConnectionParams {
	return model.ConnectionParams{
		Host:           mxHost,
		Port:           port,
		UseImplicitTLS: port == 465,
		TLS:            tlsPolicy,
	}
}

func (e *Engine) attemptPort(ctx context.Context, local, domain, mxHost string, port int, providerTag model.ProviderTag, opts Options) model.DialogOutcome {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	interCommandDelay := time.Duration(0)
	if isEnterpriseGateway(mxHost) {
		timeout += 6 * time.Second
		interCommandDelay = time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := connectionParams(mxHost, port, opts.TLS)

	dialHost := mxHost
	if ascii, err := idna.Lookup.ToASCII(mxHost); err == nil {
		dialHost = ascii
	}

	conn, err := e.dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(dialHost, strconv.Itoa(port)), timeout)
	if err != nil {
		return model.DialogOutcome{
			Connected:      false,
			Classification: classifyNetErr(err, dialCtx),
			UsedPort:       port,
		}
	}

	d := &dialogState{
		conn:              conn,
		providerTag:       providerTag,
		opts:              opts,
		local:             local,
		domain:            domain,
		mxHost:            mxHost,
		port:              port,
		params:            params,
		interCommandDelay: interCommandDelay,
	}
	defer d.close()

	if params.UseImplicitTLS {
		if err := d.upgradeTLS(); err != nil {
			return model.DialogOutcome{
				Connected:      false,
				Classification: model.Classification{Kind: model.KindConnectionError, Severity: model.SeverityTemporary, Message: err.Error()},
				UsedPort:       port,
			}
		}
		d.tlsApplied = true
	}
	d.attachTextproto()

	return d.run(dialCtx)
}

func classifyNetErr(err error, ctx context.Context) model.Classification {
	if ctx.Err() == context.DeadlineExceeded || isTimeoutErr(err) {
		return model.Classification{Kind: model.KindTimeout, Severity: model.SeverityTemporary, Message: err.Error()}
	}
	return model.Classification{Kind: model.KindConnectionError, Severity: model.SeverityTemporary, Message: err.Error()}
}

func isTimeoutErr(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// dialogState holds the per-attempt mutable state of one SMTP dialog.
type dialogState struct {
	conn              net.Conn
	tp                *textproto.Conn
	providerTag       model.ProviderTag
	opts              Options
	local, domain     string
	mxHost            string
	port              int
	params            model.ConnectionParams
	interCommandDelay time.Duration

	transcript       []string
	supportsStartTLS bool
	supportsVRFY     bool
	tlsApplied       bool
	finalCode        int
}

func (d *dialogState) attachTextproto() {
	d.tp = textproto.NewConn(d.conn)
}

func (d *dialogState) upgradeTLS() error {
	conf := &tls.Config{
		ServerName:         d.mxHost,
		InsecureSkipVerify: !d.opts.TLS.RejectUnauthorized,
		MinVersion:         tlsMinVersion(d.opts.TLS.MinVersion),
	}
	tlsConn := tls.Client(d.conn, conf)
	hsCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		return err
	}
	d.conn = tlsConn
	return nil
}

func tlsMinVersion(v string) uint16 {
	switch v {
	case "TLSv1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

func (d *dialogState) send(format string, args ...any) error {
	d.transcript = append(d.transcript, "C: "+fmt.Sprintf(format, args...))
	return d.tp.PrintfLine(format, args...)
}

func (d *dialogState) readResponse() (int, string, error) {
	code, msg, err := d.tp.ReadResponse(0)
	if err == nil {
		d.transcript = append(d.transcript, "S: "+strconv.Itoa(code)+" "+msg)
	}
	return code, msg, err
}

func (d *dialogState) close() {
	if d.tp != nil {
		_ = d.conn.SetDeadline(time.Now().Add(2 * time.Second))
		_ = d.tp.PrintfLine("QUIT")
		_, _, _ = d.tp.ReadResponse(0)
		d.tp.Close()
		return
	}
	if d.conn != nil {
		d.conn.Close()
	}
}

func (d *dialogState) outcome(deliverable model.Tri, cls model.Classification) model.DialogOutcome {
	return model.DialogOutcome{
		Connected:      true,
		TLSApplied:     d.tlsApplied,
		FinalCode:      d.finalCode,
		Deliverable:    deliverable,
		Classification: cls,
		RawTranscript:  d.transcript,
		UsedPort:       d.port,
	}
}

func (d *dialogState) connOutcome(err error) model.DialogOutcome {
	return model.DialogOutcome{
		Connected:      true,
		TLSApplied:     d.tlsApplied,
		Classification: classifyNetErr(err, context.Background()),
		RawTranscript:  d.transcript,
		UsedPort:       d.port,
	}
}

func indexOfStep(steps []model.SmtpStep, target model.SmtpStep) (int, bool) {
	for i, s := range steps {
		if s == target {
			return i, true
		}
	}
	return 0, false
}

// run advances through the configured step sequence, returning as
// soon as a step produces a decisive outcome (the stop=true case) or
// ctx is cancelled.
func (d *dialogState) run(ctx context.Context) model.DialogOutcome {
	steps := d.opts.Sequence.Steps
	if len(steps) == 0 {
		steps = model.DefaultSequence().Steps
	}

	i := 0
	for i < len(steps) {
		select {
		case <-ctx.Done():
			return d.outcome(model.TriUnknown, model.Classification{Kind: model.KindTimeout, Severity: model.SeverityTemporary})
		default:
		}

		outcome, next, stop := d.runStep(steps, i)
		if stop {
			return outcome
		}
		if d.interCommandDelay > 0 {
			time.Sleep(d.interCommandDelay)
		}
		i = next
	}

	return d.outcome(model.TriUnknown, model.Classification{Kind: model.KindUnknown, Severity: model.SeverityUnknown})
}

func (d *dialogState) runStep(steps []model.SmtpStep, i int) (model.DialogOutcome, int, bool) {
	switch steps[i] {

	case model.StepGreeting:
		code, _, err := d.readResponse()
		if err != nil {
			return d.connOutcome(err), 0, true
		}
		if code != 220 {
			return d.outcome(model.TriUnknown, model.Classification{Kind: model.KindUnknown, Message: "no_greeting"}), 0, true
		}
		return model.DialogOutcome{}, i + 1, false

	case model.StepEhlo:
		hostname := d.opts.Hostname
		if hostname == "" {
			hostname = "localhost"
		}
		if err := d.send("EHLO %s", hostname); err != nil {
			return d.connOutcome(err), 0, true
		}
		code, msg, err := d.readResponse()
		if err != nil {
			return d.connOutcome(err), 0, true
		}
		if code != 250 {
			return d.outcome(model.TriUnknown, model.Classification{Kind: model.KindUnknown, Message: "ehlo_rejected"}), 0, true
		}
		upper := strings.ToUpper(msg)
		d.supportsStartTLS = strings.Contains(upper, "STARTTLS")
		d.supportsVRFY = strings.Contains(upper, "VRFY")

		if !d.tlsApplied && !d.params.UseImplicitTLS && !d.opts.TLS.Disabled && d.supportsStartTLS {
			if idx, ok := indexOfStep(steps, model.StepStartTLS); ok {
				return model.DialogOutcome{}, idx, false
			}
		}
		return model.DialogOutcome{}, i + 1, false

	case model.StepStartTLS:
		// Skip the upgrade when TLS is already on, disabled, or not
		// advertised in the last EHLO reply.
		if d.tlsApplied || d.params.UseImplicitTLS || d.opts.TLS.Disabled || !d.supportsStartTLS {
			return model.DialogOutcome{}, i + 1, false
		}
		if err := d.send("STARTTLS"); err != nil {
			return d.connOutcome(err), 0, true
		}
		code, _, err := d.readResponse()
		if err != nil {
			return d.connOutcome(err), 0, true
		}
		if code != 220 {
			return d.outcome(model.TriUnknown, model.Classification{Kind: model.KindUnknown, Message: "tls_error"}), 0, true
		}
		if err := d.upgradeTLS(); err != nil {
			return d.outcome(model.TriUnknown, model.Classification{Kind: model.KindUnknown, Message: "tls_error"}), 0, true
		}
		d.attachTextproto()
		d.tlsApplied = true
		d.supportsStartTLS, d.supportsVRFY = false, false

		// Always re-issue EHLO after STARTTLS, discarding prior
		// capability bits (decided Open Question, RFC 3207 §4.2).
		if idx, ok := indexOfStep(steps, model.StepEhlo); ok {
			return model.DialogOutcome{}, idx, false
		}
		return model.DialogOutcome{}, i + 1, false

	case model.StepMailFrom:
		from := d.opts.Sequence.From
		if from == "" {
			from = "<>"
		} else {
			from = "<" + from + ">"
		}
		if err := d.send("MAIL FROM:%s", from); err != nil {
			return d.connOutcome(err), 0, true
		}
		code, _, err := d.readResponse()
		if err != nil {
			return d.connOutcome(err), 0, true
		}
		if code != 250 {
			return d.outcome(model.TriUnknown, model.Classification{Kind: model.KindUnknown, Message: "mail_from_rejected"}), 0, true
		}
		return model.DialogOutcome{}, i + 1, false

	case model.StepRcptTo:
		target := d.local + "@" + d.domain
		if err := d.send("RCPT TO:<%s>", target); err != nil {
			return d.connOutcome(err), 0, true
		}
		code, msg, err := d.readResponse()
		if err != nil {
			return d.connOutcome(err), 0, true
		}
		d.finalCode = code
		return d.classifyRcpt(steps, i, code, msg)

	case model.StepVrfy:
		target := d.opts.Sequence.VrfyTarget
		if target == "" {
			target = d.local
		}
		if err := d.send("VRFY %s", target); err != nil {
			return d.connOutcome(err), 0, true
		}
		code, msg, err := d.readResponse()
		if err != nil {
			return d.connOutcome(err), 0, true
		}
		d.finalCode = code
		switch {
		case code == 250 || code == 252:
			return d.outcome(model.TriYes, model.Classification{}), 0, true
		case code == 550:
			return d.outcome(model.TriNo, model.Classification{Kind: model.KindInvalid, Severity: model.SeverityPermanent, Message: msg}), 0, true
		default:
			return d.outcome(model.TriUnknown, model.Classification{Kind: model.KindUnknown, Message: msg}), 0, true
		}

	case model.StepQuit:
		return d.outcome(model.TriUnknown, model.Classification{Kind: model.KindUnknown}), 0, true
	}

	return d.outcome(model.TriUnknown, model.Classification{Kind: model.KindUnknown}), 0, true
}

func (d *dialogState) classifyRcpt(steps []model.SmtpStep, i, code int, msg string) (model.DialogOutcome, int, bool) {
	switch {
	case code == 250 || code == 251:
		return d.outcome(model.TriYes, model.Classification{}), 0, true

	case code == 550 || code == 551 || code == 553:
		cls := interpreter.Classify(msg, d.providerTag, code)
		if cls.Kind == model.KindPolicyRejection {
			return d.outcome(model.TriUnknown, cls), 0, true
		}
		return d.outcome(model.TriNo, model.Classification{Kind: model.KindInvalid, Severity: model.SeverityPermanent, Message: msg}), 0, true

	case code == 552 || code == 452:
		return d.outcome(model.TriNo, model.Classification{Kind: model.KindFullInbox, Severity: model.SeverityTemporary, Message: msg}), 0, true

	case code >= 400 && code < 500:
		cls := interpreter.Classify(msg, d.providerTag, code)
		kind := model.KindUnknown
		if cls.Kind == model.KindGreyListed {
			kind = model.KindGreyListed
		}
		return d.outcome(model.TriUnknown, model.Classification{Kind: kind, Severity: model.SeverityTemporary, Message: msg}), 0, true

	case code >= 500 && d.opts.UseVRFY && d.supportsVRFY:
		if idx, ok := indexOfStep(steps, model.StepVrfy); ok {
			return model.DialogOutcome{}, idx, false
		}
		return d.outcome(model.TriUnknown, model.Classification{Kind: model.KindUnknown, Message: msg}), 0, true

	default:
		return d.outcome(model.TriUnknown, model.Classification{Kind: model.KindUnknown, Message: msg}), 0, true
	}
}

const alnum = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomAlnum(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alnum[int(b)%len(alnum)]
	}
	return string(out)
}
