// Package proxynet implements the proxy dialer (C12): a pool of
// outbound proxies that SMTP dialogs and HTTP probes can rotate
// through, isolated behind the smtpengine.Dialer contract so neither
// caller needs to know a proxy is involved.
package proxynet

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	netproxy "golang.org/x/net/proxy"
)

// Manager round-robins a fixed list of proxy URLs and bounds overall
// concurrent proxy usage with a semaphore, independent of per-domain
// or per-MX concurrency limits enforced elsewhere.
type Manager struct {
	proxies   []*url.URL
	counter   uint64
	semaphore chan struct{}
}

// NewManager pre-resolves each proxy hostname to an IP once at
// startup so the resolver isn't hammered per-dial under concurrency,
// and sizes the semaphore to limit, or to len(proxies) when limit<=0.
func NewManager(rawURLs []string, limit int) (*Manager, error) {
	var parsed []*url.URL
	for _, raw := range rawURLs {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", raw, err)
		}
		resolveHostToIP(u)
		parsed = append(parsed, u)
	}

	if limit <= 0 {
		limit = len(parsed)
		if limit == 0 {
			limit = 10
		}
	}

	return &Manager{proxies: parsed, semaphore: make(chan struct{}, limit)}, nil
}

func resolveHostToIP(u *url.URL) {
	host := u.Hostname()
	port := u.Port()
	if net.ParseIP(host) != nil {
		return
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return
	}
	resolved := ips[0].String()
	for _, ip := range ips {
		if ip.To4() != nil {
			resolved = ip.String()
			break
		}
	}
	if port != "" {
		u.Host = net.JoinHostPort(resolved, port)
	} else {
		u.Host = resolved
	}
}

// Next returns the next proxy in rotation, or nil if the pool is empty.
func (m *Manager) Next() *url.URL {
	if m == nil || len(m.proxies) == 0 {
		return nil
	}
	n := atomic.AddUint64(&m.counter, 1)
	return m.proxies[(n-1)%uint64(len(m.proxies))]
}

// Enabled reports whether the manager has any proxies configured.
func (m *Manager) Enabled() bool {
	return m != nil && len(m.proxies) > 0
}

type releaseConn struct {
	net.Conn
	once    sync.Once
	release func()
}

func (c *releaseConn) Close() error {
	c.once.Do(c.release)
	return c.Conn.Close()
}

// Dialer implements smtpengine.Dialer, routing through the Manager's
// proxy pool when enabled and falling back to a direct dial otherwise.
// A nil Manager (or one with zero configured proxies) behaves exactly
// like a direct dialer.
type Dialer struct {
	Manager *Manager
}

func (d Dialer) DialContext(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
	direct := &net.Dialer{Timeout: timeout}

	if d.Manager == nil || !d.Manager.Enabled() {
		return direct.DialContext(ctx, network, addr)
	}

	pURL := d.Manager.Next()
	select {
	case d.Manager.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("timeout waiting for a free proxy slot: %w", ctx.Err())
	}

	release := func() { <-d.Manager.semaphore }

	pdialer, err := netproxy.FromURL(pURL, direct)
	if err != nil {
		release()
		return nil, fmt.Errorf("parsing proxy url %s: %w", pURL.Redacted(), err)
	}

	var conn net.Conn
	if cdialer, ok := pdialer.(netproxy.ContextDialer); ok {
		conn, err = cdialer.DialContext(ctx, network, addr)
	} else {
		conn, err = pdialer.Dial(network, addr)
	}
	if err != nil {
		release()
		logrus.WithFields(logrus.Fields{"addr": addr, "proxy": pURL.Host}).WithError(err).Debug("proxy dial failed")
		return nil, err
	}

	return &releaseConn{Conn: conn, release: release}, nil
}

// HTTPTransport builds an http.Transport that routes every request
// through the Manager's rotation, the same pattern the SMTP dialer
// uses, for C7 probe and evidence HTTP clients.
func (m *Manager) HTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: func(_ *http.Request) (*url.URL, error) {
			if !m.Enabled() {
				return nil, nil
			}
			return m.Next(), nil
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}
