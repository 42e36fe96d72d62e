// Package network builds the HTTP clients used to talk to sources.
package network

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/kerbaras/shelf/pkg/sources"
)

// DefaultUserAgent is sent when none is configured.
const DefaultUserAgent = "shelf/1.0"

// Options configures the clients built by a Factory.
type Options struct {
	// Proxy is a SOCKS5 address, either "host:port" or "socks5://host:port".
	Proxy     string
	UserAgent string
	// Timeout bounds a whole request. Zero means no limit.
	Timeout time.Duration
}

// Factory builds HTTP clients and sessions. Every client gets its own
// transport, so sessions never share connections.
type Factory struct {
	opts Options
}

// NewFactory validates opts and returns a factory.
func NewFactory(opts Options) (*Factory, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Proxy != "" {
		if _, err := proxyAddr(opts.Proxy); err != nil {
			return nil, err
		}
	}
	return &Factory{opts: opts}, nil
}

// Client returns a new HTTP client with its own connection pool.
func (f *Factory) Client() (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 32

	if f.opts.Proxy != "" {
		addr, err := proxyAddr(f.opts.Proxy)
		if err != nil {
			return nil, err
		}
		dialer, err := proxy.SOCKS5("tcp", addr, nil, &net.Dialer{Timeout: 30 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("connect to socks5 proxy %s: %w", addr, err)
		}
		ctxDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer for %s does not support contexts", addr)
		}
		transport.Proxy = nil
		transport.DialContext = ctxDialer.DialContext
	}

	return &http.Client{
		Transport: &userAgentTransport{base: transport, userAgent: f.opts.UserAgent},
		Timeout:   f.opts.Timeout,
	}, nil
}

// Session opens a fresh source session.
func (f *Factory) Session() (*sources.Session, error) {
	client, err := f.Client()
	if err != nil {
		return nil, err
	}
	return sources.NewSession(client), nil
}

func proxyAddr(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid proxy %q: %w", raw, err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return "", fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid proxy %q: missing host", raw)
	}
	return u.Host, nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the
// wrapped transport.
func (t *userAgentTransport) CloseIdleConnections() {
	if c, ok := t.base.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}
