package storage

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/omf/internal/shared"
	"github.com/desertthunder/omf/internal/transcode"
	"github.com/google/uuid"
)

// WriteErrorKind classifies a [WriteError].
type WriteErrorKind int

const (
	// EncodingFailure means the bytes could not be represented in the backend's encoding.
	EncodingFailure WriteErrorKind = iota + 1
	// BackendRejected means the backend refused a write, rename or read.
	BackendRejected
)

func (k WriteErrorKind) String() string {
	if k == EncodingFailure {
		return "encoding failure"
	}
	return "backend rejected"
}

// WriteError is returned by [Writer] operations.
type WriteError struct {
	Kind WriteErrorKind
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%v: %s: %s: %v", shared.ErrWriteFailed, e.Path, e.Kind, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{shared.ErrWriteFailed, e.Err}
}

// Location identifies a stored file.
type Location struct {
	Path string `json:"path"`
	URI  string `json:"uri"`
}

// Writer saves byte buffers to a [Backend].
type Writer struct {
	backend  Backend
	encoding Encoding
	logger   *log.Logger
}

// NewWriter creates a Writer. The logger may be nil.
func NewWriter(backend Backend, logger *log.Logger) *Writer {
	enc := EncodingBase64
	if p, ok := backend.(EncodingPreferrer); ok {
		enc = p.PreferredEncoding()
	}
	return &Writer{backend: backend, encoding: enc, logger: shared.WithLogger(logger, "component", "storage")}
}

// Backend returns the underlying backend.
func (w *Writer) Backend() Backend { return w.backend }

// SaveBytes stores data at target so that target holds either all of data or its previous contents.
func (w *Writer) SaveBytes(ctx context.Context, data []byte, target string) (Location, error) {
	payload, err := w.encode(data)
	if err != nil {
		return Location{}, &WriteError{Kind: EncodingFailure, Path: target, Err: err}
	}

	renamer, atomic := w.backend.(Renamer)
	if atomic {
		tmp := fmt.Sprintf("%s.%s.tmp", target, uuid.NewString())
		if err := w.backend.WriteFile(ctx, tmp, payload, w.encoding); err != nil {
			w.discard(ctx, tmp)
			return Location{}, &WriteError{Kind: BackendRejected, Path: target, Err: err}
		}
		if err := renamer.Rename(ctx, tmp, target); err != nil {
			w.discard(ctx, tmp)
			return Location{}, &WriteError{Kind: BackendRejected, Path: target, Err: err}
		}
	} else {
		if err := w.backend.WriteFile(ctx, target, payload, w.encoding); err != nil {
			w.discard(ctx, target)
			return Location{}, &WriteError{Kind: BackendRejected, Path: target, Err: err}
		}
	}

	w.logger.Debug("saved file", "path", target, "bytes", len(data), "encoding", w.encoding, "atomic", atomic)
	return w.Locate(target), nil
}

// Locate returns the [Location] of path without touching the backend. The URI is path itself unless the
// backend is a [Locator].
func (w *Writer) Locate(path string) Location {
	loc := Location{Path: path, URI: path}
	if l, ok := w.backend.(Locator); ok {
		if uri := l.URI(path); uri != "" {
			loc.URI = uri
		}
	}
	return loc
}

// ReadBytes reads a stored file back.
func (w *Writer) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	text, err := w.backend.ReadFile(ctx, path, w.encoding)
	if err != nil {
		return nil, &WriteError{Kind: BackendRejected, Path: path, Err: err}
	}
	if w.encoding == EncodingUTF8 {
		return []byte(text), nil
	}

	data, err := transcode.DecodeBase64(text)
	if err != nil {
		return nil, &WriteError{Kind: EncodingFailure, Path: path, Err: err}
	}
	return data, nil
}

func (w *Writer) encode(data []byte) (string, error) {
	if w.encoding == EncodingUTF8 {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: data is not valid UTF-8", shared.ErrInvalidInput)
		}
		return string(data), nil
	}

	var b strings.Builder
	if err := transcode.EncodeBase64To(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (w *Writer) discard(ctx context.Context, path string) {
	if err := w.backend.DeleteFile(context.WithoutCancel(ctx), path); err != nil {
		w.logger.Warn("failed to remove partial file", "path", path, "error", err)
	}
}
