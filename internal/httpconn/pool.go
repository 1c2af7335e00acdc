// Package httpconn implements the engine's HTTP connection layer (§4.5):
// one persistent transport per (scheme, host, port) origin, reused across
// jobs while the previous response didn't set Connection: close, with
// HTTP/1.1 keep-alive and HTTP/2 multiplexing (a configurable request
// window) over the same *http.Client.
package httpconn

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/publicsuffix"
)

// HSTSStore is the narrow collaborator interface from SPEC_FULL §4.12: the
// connection layer consults it before every request so an HSTS match
// rewrites the scheme to https ahead of connecting (§4.5 "Upgrades").
type HSTSStore interface {
	ShouldUpgrade(host string) bool
	Remember(host string, maxAge time.Duration)
}

// Key identifies one origin's connection bucket.
type Key struct {
	Scheme, Host, Port string
}

// Connection is one origin's reusable transport. Protocol is learned from
// the first response's negotiated ALPN ("HTTP/2.0" vs "HTTP/1.1") and
// caps how many requests may be in flight at once (§4.5: 1 for HTTP/1.1,
// http2RequestWindow for HTTP/2).
type Connection struct {
	client      *http.Client
	maxInFlight int32
	inFlight    atomic.Int32
	protocol    atomic.Value // string
	closed      atomic.Bool
}

// Protocol returns the negotiated protocol once known, or "" before the
// first response arrives.
func (c *Connection) Protocol() string {
	if v, ok := c.protocol.Load().(string); ok {
		return v
	}
	return ""
}

// MaxInFlight returns the current in-flight cap for this connection
// (§4.6: 1 for HTTP/1.1, the configured http2_request_window for HTTP/2).
func (c *Connection) MaxInFlight() int {
	if c.Protocol() == "HTTP/2.0" {
		return int(c.maxInFlight)
	}
	return 1
}

// TryAcquire reserves one in-flight slot, returning false if the
// connection is already at its cap (the worker should then drain
// responses, per §4.6's GET_JOB->GET_RESPONSE transition).
func (c *Connection) TryAcquire() bool {
	for {
		cur := c.inFlight.Load()
		if int(cur) >= c.MaxInFlight() {
			return false
		}
		if c.inFlight.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release frees one in-flight slot after a response (or error) completes.
func (c *Connection) Release() {
	c.inFlight.Add(-1)
}

// InFlight reports how many requests are currently outstanding.
func (c *Connection) InFlight() int {
	return int(c.inFlight.Load())
}

// Do issues req over this connection, classifying transport/TLS failures
// into a ConnError (§7 Network/TLS kinds) and recording the negotiated
// protocol from the first successful response.
func (c *Connection) Do(req *http.Request) (*http.Response, *ConnError) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyDoError(err)
	}
	if resp.Proto != "" {
		c.protocol.Store(resp.Proto)
	}
	if resp.Close || resp.Header.Get("Connection") == "close" {
		c.closed.Store(true)
	}
	return resp, nil
}

// ShouldClose reports whether the last response asked for the connection
// to close, per §4.5 "Reused when... the previous response did not set
// Connection: close".
func (c *Connection) ShouldClose() bool {
	return c.closed.Load()
}

// Pool holds one Connection per origin, plus the shared HSTS store
// consulted before dialing.
type Pool struct {
	mu             sync.Mutex
	conns          map[Key]*Connection
	hsts           HSTSStore
	jar            http.CookieJar
	http2Window    int
	dialTimeout    time.Duration
	readTimeout    time.Duration
	tlsMinVersion  uint16
}

// NewPool builds a connection pool. http2Window is the configurable
// in-flight cap for multiplexed HTTP/2 connections (§4.5); dialTimeout
// and readTimeout are the independently configurable per-operation
// timeouts of §5 (zero means infinite, a deliberate compatibility choice).
// Every connection shares one cookie jar, scoped by the public suffix
// list so a cookie set on a.example never leaks to b.example (§4.12).
func NewPool(hsts HSTSStore, http2Window int, dialTimeout, readTimeout time.Duration) *Pool {
	if http2Window <= 0 {
		http2Window = 100
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Pool{
		conns:         make(map[Key]*Connection),
		hsts:          hsts,
		jar:           jar,
		http2Window:   http2Window,
		dialTimeout:   dialTimeout,
		readTimeout:   readTimeout,
		tlsMinVersion: tls.VersionTLS12,
	}
}

// ResolveScheme applies the §4.5 HSTS upgrade: if hsts has seen an
// HSTS header for host, the scheme is rewritten to https ahead of
// connecting, regardless of what the caller originally requested.
func (p *Pool) ResolveScheme(scheme, host string) string {
	if p.hsts != nil && p.hsts.ShouldUpgrade(host) {
		return "https"
	}
	return scheme
}

// Get returns the Connection for key, creating and caching a fresh one
// (or replacing a stale one asked to close) as needed.
func (p *Pool) Get(key Key) *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.conns[key]; ok && !existing.ShouldClose() {
		return existing
	}

	conn := p.newConnection()
	p.conns[key] = conn
	return conn
}

func (p *Pool) newConnection() *Connection {
	dialer := &net.Dialer{Timeout: p.dialTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: p.tlsMinVersion},
		TLSHandshakeTimeout: p.dialTimeout,
		MaxIdleConnsPerHost: 1,
	}
	// Enables transparent ALPN negotiation of HTTP/2 over TLS; cleartext
	// HTTP stays HTTP/1.1 (§6 wire: "HTTP/1.1 and HTTP/2 over TLS 1.2+").
	_ = http2.ConfigureTransport(transport)

	client := &http.Client{
		Transport: transport,
		Timeout:   p.readTimeout,
		Jar:       p.jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Redirects are re-queued as new Jobs by the response
			// pipeline (§4.7), never followed transparently here.
			return http.ErrUseLastResponse
		},
	}

	conn := &Connection{client: client, maxInFlight: int32(p.http2Window)}
	return conn
}

// Close evicts key's cached connection, if any, closing its idle
// transport connections.
func (p *Pool) Close(key Key) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, ok := p.conns[key]
	if !ok {
		return
	}
	if transport, ok := conn.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	delete(p.conns, key)
}

func classifyDoError(err error) *ConnError {
	var tlsRecordErr tls.RecordHeaderError
	var certErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var certInvalidErr x509.CertificateInvalidError
	if errors.As(err, &tlsRecordErr) || errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &certInvalidErr) {
		return tlsError(err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return dialError(err)
		}
		if opErr.Op == "remote error" || opErr.Op == "tls" {
			return tlsError(err)
		}
	}

	return transportError(err)
}
