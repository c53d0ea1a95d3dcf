// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/omf/internal/transport"
)

// RespondFunc answers the n-th (1-based) request made to a [FakeBackend].
type RespondFunc func(n int, req transport.Request) (*transport.Response, error)

// FakeBackend is a scripted [transport.Backend] that records calls and tracks how many run at once.
type FakeBackend struct {
	kind    transport.BackendKind
	respond RespondFunc
	delay   time.Duration

	mu          sync.Mutex
	calls       []transport.Request
	inFlight    int
	maxInFlight int
}

// NewFakeBackend creates a backend of the given kind answering with respond.
func NewFakeBackend(kind transport.BackendKind, respond RespondFunc) *FakeBackend {
	return &FakeBackend{kind: kind, respond: respond}
}

// WithDelay makes every call take d, so concurrent calls overlap.
func (f *FakeBackend) WithDelay(d time.Duration) *FakeBackend {
	f.delay = d
	return f
}

func (f *FakeBackend) Kind() transport.BackendKind { return f.kind }

func (f *FakeBackend) PerformRequest(ctx context.Context, req transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &transport.Error{Kind: transport.KindTimeout, Backend: f.kind, URL: req.URL, Err: ctx.Err()}
		case <-time.After(f.delay):
		}
	}
	return f.respond(n, req)
}

// Calls returns a copy of every request received so far.
func (f *FakeBackend) Calls() []transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Request(nil), f.calls...)
}

// CallCount is len(Calls()).
func (f *FakeBackend) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// MaxInFlight is the highest number of simultaneous calls observed.
func (f *FakeBackend) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// BytesResponse builds a response with a bytes payload.
func BytesResponse(status int, b []byte) *transport.Response {
	return &transport.Response{StatusCode: status, Payload: transport.BytesPayload(b), Headers: map[string]string{}}
}

// TextResponse builds a response with a text payload.
func TextResponse(status int, s string) *transport.Response {
	return &transport.Response{StatusCode: status, Payload: transport.TextPayload(s), Headers: map[string]string{}}
}

// AbsentResponse builds a response with no payload.
func AbsentResponse(status int) *transport.Response {
	return &transport.Response{StatusCode: status, Payload: transport.AbsentPayload(), Headers: map[string]string{}}
}

// RecordingSleeper stands in for a real timer and records requested delays.
type RecordingSleeper struct {
	mu     sync.Mutex
	Delays []time.Duration
}

func (r *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.Delays = append(r.Delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
