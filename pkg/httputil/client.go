// Package httputil provides the pooled HTTP client and concurrency limiter
// used for webhook callback delivery.
package httputil

import (
	"io"
	"net"
	"net/http"
	"time"
)

// MaxResponseSize caps how much of a callback response body is ever read.
// Callback receivers are untrusted; an unbounded read is an OOM vector.
const MaxResponseSize = 1 * 1024 * 1024 // 1MB

// sharedTransport pools connections across all outbound deliveries. Safe
// for concurrent use.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// NewClient returns a client with the given overall timeout on top of the
// shared connection pool. Prefer this over constructing http.Client
// directly so deliveries reuse TCP connections.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
	}
}

// ReadResponseBody reads at most maxSize bytes of a response body.
func ReadResponseBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// DrainAndClose drains and closes a response body so the underlying
// connection returns to the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
