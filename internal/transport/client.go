package transport

import (
	"context"
	"net"
	"net/http"
	"time"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 30 * time.Second
)

// Timeouts holds the two independently configured request limits.
//
// Connect bounds dialing and the TLS handshake. Read bounds the wait for response headers and, together with
// Connect, the whole exchange including the body.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Connect <= 0 {
		t.Connect = DefaultConnectTimeout
	}
	if t.Read <= 0 {
		t.Read = DefaultReadTimeout
	}
	return t
}

// NewHTTPClient builds a client whose transport enforces t.
func NewHTTPClient(t Timeouts) *http.Client {
	t = t.withDefaults()
	dialer := &net.Dialer{Timeout: t.Connect, KeepAlive: 30 * time.Second}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   t.Connect,
			ResponseHeaderTimeout: t.Read,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			ForceAttemptHTTP2:     true,
			// archives and audio are already compressed
			DisableCompression: true,
		},
	}
}

// deadline derives the per-request context. Cancelling it aborts the underlying connection.
func (t Timeouts) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	t = t.withDefaults()
	return context.WithTimeout(ctx, t.Connect+t.Read)
}
