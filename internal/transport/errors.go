package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

var (
	ErrTimeout    = errors.New("transport timeout")
	ErrConnection = errors.New("transport connection error")
	ErrProtocol   = errors.New("transport protocol error")
)

// ErrorKind classifies an [Error].
type ErrorKind int

const (
	KindTimeout ErrorKind = iota + 1
	KindConnection
	KindProtocol
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindConnection:
		return ErrConnection
	default:
		return ErrProtocol
	}
}

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	default:
		return "protocol"
	}
}

// Error is returned when a request produced no response.
type Error struct {
	Kind    ErrorKind
	Backend BackendKind
	URL     string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s %s", e.Kind.sentinel(), e.Backend, e.URL)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Kind.sentinel(), e.Backend, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel as well as anything in the wrapped chain.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// classify maps a net/http or bridge failure to an error kind.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindConnection
}

func newError(kind ErrorKind, backend BackendKind, url string, err error) *Error {
	return &Error{Kind: kind, Backend: backend, URL: url, Err: err}
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }
