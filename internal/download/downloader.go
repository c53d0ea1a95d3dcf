package download

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/omf/internal/shared"
	"github.com/desertthunder/omf/internal/transcode"
	"github.com/desertthunder/omf/internal/transport"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options tunes a [Downloader].
type Options struct {
	BaseDelay         time.Duration // backoff unit; attempt n waits n × BaseDelay
	RetryClientErrors bool          // retry 4xx responses instead of failing fast
	SniffBinaryText   bool          // require LooksLikeBase64 before decoding strategy A text
	Sleep             SleepFunc     // replaces the real timer, for tests
	Logger            *log.Logger
}

// Downloader runs the download algorithm against a single backend.
//
// It holds no per-call state and is safe for concurrent use.
type Downloader struct {
	backend transport.Backend
	opts    Options
	logger  *log.Logger
}

// New creates a Downloader for backend.
func New(backend transport.Backend, opts Options) *Downloader {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	return &Downloader{
		backend: backend,
		opts:    opts,
		logger:  shared.WithLogger(opts.Logger, "component", "download", "backend", backend.Kind()),
	}
}

// Download fetches req.URL and returns its bytes, or a [*DownloadError].
func (d *Downloader) Download(ctx context.Context, req DownloadRequest) (*BinaryResult, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("%w: download url is empty", shared.ErrMissingArgument)
	}

	if d.backend.Kind() == transport.KindWeb {
		return d.downloadDirect(ctx, req)
	}
	return d.downloadWithFallback(ctx, req)
}

// downloadDirect is the single-request path for backends that always deliver bytes.
func (d *Downloader) downloadDirect(ctx context.Context, req DownloadRequest) (*BinaryResult, error) {
	resp, err := d.perform(ctx, req, transport.ResponseBinary)
	if err != nil {
		return nil, &DownloadError{URL: req.URL, LastReason: err.Error(), Attempts: 1, Fatal: true, Err: err}
	}
	if !resp.OK() {
		return nil, &DownloadError{URL: req.URL, LastReason: fmt.Sprintf("HTTP %d", resp.StatusCode), StatusCode: resp.StatusCode, Attempts: 1, Fatal: true}
	}

	var data []byte
	switch resp.Payload.Kind() {
	case transport.PayloadBytes:
		data = slices.Clone(resp.Payload.Bytes())
	case transport.PayloadAbsent:
		data = []byte{}
	default:
		return nil, &DownloadError{URL: req.URL, LastReason: "binary request answered with text", StatusCode: resp.StatusCode, Attempts: 1, Fatal: true}
	}
	if data == nil {
		data = []byte{}
	}

	d.logger.Debug("download complete", "url", req.URL, "bytes", len(data))
	return newResult(data, resp.StatusCode, resp.Headers), nil
}

// downloadWithFallback is the retry loop for backends whose payload shape cannot be trusted.
func (d *Downloader) downloadWithFallback(ctx context.Context, req DownloadRequest) (*BinaryResult, error) {
	total := req.attempts()
	var last Outcome

	for attempt := 1; attempt <= total; attempt++ {
		logger := d.logger.With("url", req.URL, "attempt", attempt, "of", total)

		last = d.attempt(ctx, req, logger)
		switch last.Kind {
		case Success:
			logger.Debug("download complete", "bytes", last.Result.SizeBytes)
			return last.Result, nil
		case FatalFailure:
			logger.Warn("download stopped", "reason", last.Reason, "status", last.StatusCode)
			return nil, &DownloadError{URL: req.URL, LastReason: last.Reason, StatusCode: last.StatusCode, Attempts: attempt, Fatal: true, Err: last.Err}
		}

		if err := ctx.Err(); err != nil {
			return nil, &DownloadError{URL: req.URL, LastReason: last.Reason, StatusCode: last.StatusCode, Attempts: attempt, Err: err}
		}
		if attempt == total {
			break
		}

		delay := time.Duration(attempt) * d.opts.BaseDelay
		logger.Warn("attempt failed, retrying", "reason", last.Reason, "status", last.StatusCode, "backoff", delay)
		if err := d.opts.Sleep(ctx, delay); err != nil {
			return nil, &DownloadError{URL: req.URL, LastReason: last.Reason, StatusCode: last.StatusCode, Attempts: attempt, Err: err}
		}
	}

	return nil, &DownloadError{URL: req.URL, LastReason: last.Reason, StatusCode: last.StatusCode, Attempts: total, Err: last.Err}
}

// attempt runs strategy A and, when it yields nothing usable, strategy B.
func (d *Downloader) attempt(ctx context.Context, req DownloadRequest, logger *log.Logger) Outcome {
	binary := d.strategy(ctx, req, transport.ResponseBinary, d.opts.SniffBinaryText)
	if binary.Kind != RecoverableFailure {
		return binary
	}
	logger.Debug("binary request unusable, falling back to default request", "reason", binary.Reason)

	plain := d.strategy(ctx, req, transport.ResponseDefault, true)
	if plain.Kind != RecoverableFailure {
		return plain
	}

	out := plain
	out.Reason = fmt.Sprintf("binary: %s; default: %s", binary.Reason, plain.Reason)
	if out.StatusCode == 0 {
		out.StatusCode = binary.StatusCode
	}
	if out.Err == nil {
		out.Err = binary.Err
	}
	return out
}

// strategy performs one request and tries to turn its payload into bytes. sniff gates text decoding on
// [transcode.LooksLikeBase64].
func (d *Downloader) strategy(ctx context.Context, req DownloadRequest, kind transport.ResponseKind, sniff bool) Outcome {
	resp, err := d.perform(ctx, req, kind)
	if err != nil {
		return Outcome{Kind: RecoverableFailure, Reason: err.Error(), Err: err}
	}

	if !resp.OK() {
		o := Outcome{Kind: RecoverableFailure, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode), StatusCode: resp.StatusCode}
		if isDefinitiveClientError(resp.StatusCode) && !d.opts.RetryClientErrors {
			o.Kind = FatalFailure
		}
		return o
	}

	p := resp.Payload
	switch {
	case p.Kind() == transport.PayloadBytes && len(p.Bytes()) > 0:
		return Outcome{Kind: Success, Result: newResult(slices.Clone(p.Bytes()), resp.StatusCode, resp.Headers), StatusCode: resp.StatusCode}
	case p.Kind() == transport.PayloadText && p.Text() != "":
		if sniff && !transcode.LooksLikeBase64(p.Text()) {
			return Outcome{Kind: RecoverableFailure, Reason: fmt.Sprintf("%s response is text that does not look like base64", kind), StatusCode: resp.StatusCode}
		}
		data, err := transcode.DecodeBase64(p.Text())
		if err != nil {
			return Outcome{Kind: RecoverableFailure, Reason: err.Error(), StatusCode: resp.StatusCode, Err: err}
		}
		return Outcome{Kind: Success, Result: newResult(data, resp.StatusCode, resp.Headers), StatusCode: resp.StatusCode}
	default:
		return Outcome{Kind: RecoverableFailure, Reason: fmt.Sprintf("%s response carried no data", kind), StatusCode: resp.StatusCode}
	}
}

func (d *Downloader) perform(ctx context.Context, req DownloadRequest, kind transport.ResponseKind) (*transport.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, req.timeout())
	defer cancel()

	return d.backend.PerformRequest(ctx, transport.Request{
		URL:          req.URL,
		Method:       "GET",
		Headers:      req.Headers,
		ResponseKind: kind,
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
