package download

import (
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/omf/internal/shared"
)

const (
	DefaultMaxRetries = 3
	DefaultTimeout    = 30 * time.Second
	DefaultBaseDelay  = time.Second
)

// DownloadRequest describes one binary download. It is passed by value and never modified.
type DownloadRequest struct {
	URL        string
	Headers    map[string]string
	MaxRetries int           // retries after the first attempt; N allows N+1 attempts
	Timeout    time.Duration // bound on each transport call
}

// NewRequest returns a request for url with the default retry budget and timeout.
func NewRequest(url string) DownloadRequest {
	return DownloadRequest{URL: url, MaxRetries: DefaultMaxRetries, Timeout: DefaultTimeout}
}

func (r DownloadRequest) attempts() int {
	return max(r.MaxRetries, 0) + 1
}

func (r DownloadRequest) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

// BinaryResult is a completed download. Data belongs to the caller.
type BinaryResult struct {
	Data       []byte
	StatusCode int
	Headers    map[string]string
	SizeBytes  int // always len(Data)
}

func newResult(data []byte, status int, headers map[string]string) *BinaryResult {
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return &BinaryResult{Data: data, StatusCode: status, Headers: h, SizeBytes: len(data)}
}

// OutcomeKind classifies one attempt.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	RecoverableFailure
	FatalFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case RecoverableFailure:
		return "recoverable"
	default:
		return "fatal"
	}
}

// Outcome is the result of a single attempt and drives the retry loop.
type Outcome struct {
	Kind       OutcomeKind
	Result     *BinaryResult // set for Success
	Reason     string        // set for failures
	StatusCode int           // last HTTP status seen, 0 when none
	Err        error         // last transport or decode error, if any
}

// DownloadError is returned once a download has definitively failed.
type DownloadError struct {
	URL        string
	LastReason string
	StatusCode int  // last HTTP status seen, 0 when the server never answered
	Attempts   int  // attempts actually made
	Fatal      bool // stopped early instead of exhausting retries
	Err        error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%v: %s after %d attempt(s): %s", shared.ErrDownloadFailed, e.URL, e.Attempts, e.LastReason)
}

func (e *DownloadError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrDownloadFailed}
	}
	return []error{shared.ErrDownloadFailed, e.Err}
}

// Retryable reports whether a later call might succeed.
func (e *DownloadError) Retryable() bool {
	return !e.Fatal || !isDefinitiveClientError(e.StatusCode)
}

// AsDownloadError unwraps err to a [*DownloadError].
func AsDownloadError(err error) (*DownloadError, bool) {
	var de *DownloadError
	ok := errors.As(err, &de)
	return de, ok
}

// isDefinitiveClientError reports whether status is a 4xx that repeating the request cannot fix.
func isDefinitiveClientError(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	return status != 408 && status != 429
}
