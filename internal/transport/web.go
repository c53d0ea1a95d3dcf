package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/omf/internal/shared"
)

// WebBackend performs requests with a standard [http.Client].
type WebBackend struct {
	client   *http.Client
	timeouts Timeouts
	logger   *log.Logger
}

// WebOption configures a [WebBackend].
type WebOption func(*WebBackend)

// WithHTTPClient replaces the client built from the configured timeouts.
func WithHTTPClient(c *http.Client) WebOption {
	return func(b *WebBackend) { b.client = c }
}

// WithWebLogger sets the logger.
func WithWebLogger(l *log.Logger) WebOption {
	return func(b *WebBackend) { b.logger = shared.WithLogger(l, "backend", KindWeb) }
}

// NewWebBackend creates a web backend enforcing t.
func NewWebBackend(t Timeouts, opts ...WebOption) *WebBackend {
	b := &WebBackend{timeouts: t.withDefaults(), logger: shared.NopLogger()}
	for _, opt := range opts {
		opt(b)
	}
	if b.client == nil {
		b.client = NewHTTPClient(b.timeouts)
	}
	return b
}

func (b *WebBackend) Kind() BackendKind { return KindWeb }

// PerformRequest sends req. Binary requests always yield a bytes payload, every other kind yields text.
func (b *WebBackend) PerformRequest(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := b.timeouts.deadline(ctx)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), req.URL, body)
	if err != nil {
		return nil, newError(KindProtocol, KindWeb, req.URL, fmt.Errorf("failed to create request: %w", err))
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, newError(classify(err), KindWeb, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(classify(err), KindWeb, req.URL, fmt.Errorf("failed to read response: %w", err))
	}

	b.logger.Debug("request complete", "method", req.method(), "url", req.URL, "status", resp.StatusCode, "kind", req.ResponseKind, "bytes", len(data))

	out := &Response{StatusCode: resp.StatusCode, Headers: flattenHeaders(resp.Header)}
	if req.ResponseKind == ResponseBinary {
		out.Payload = BytesPayload(data)
	} else {
		out.Payload = TextPayload(string(data))
	}
	return out, nil
}
