package transport

import (
	"context"
	"net/http"
	"strings"
)

// ResponseKind tells the backend how the caller wants the body delivered.
type ResponseKind int

const (
	// ResponseDefault leaves the choice to the backend.
	ResponseDefault ResponseKind = iota
	ResponseJSON
	ResponseText
	ResponseBinary
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseJSON:
		return "json"
	case ResponseText:
		return "text"
	case ResponseBinary:
		return "binary"
	default:
		return "default"
	}
}

// BackendKind identifies a [Backend] implementation.
type BackendKind string

const (
	KindWeb    BackendKind = "web"
	KindNative BackendKind = "native"
)

// Request describes one HTTP request.
type Request struct {
	URL          string
	Method       string
	Headers      map[string]string
	Body         []byte
	ResponseKind ResponseKind
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// Response is produced fresh for every request and is never modified afterwards.
type Response struct {
	StatusCode int
	Payload    Payload
	Headers    map[string]string
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Header returns the value of the named header, ignoring case.
func (r *Response) Header(name string) string {
	if v, ok := r.Headers[http.CanonicalHeaderKey(name)]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Backend performs one HTTP request and reports what came back.
type Backend interface {
	PerformRequest(ctx context.Context, req Request) (*Response, error)
	Kind() BackendKind
}

// PayloadKind discriminates [Payload].
type PayloadKind int

const (
	PayloadAbsent PayloadKind = iota
	PayloadBytes
	PayloadText
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadBytes:
		return "bytes"
	case PayloadText:
		return "text"
	default:
		return "absent"
	}
}

// Payload is a response body exactly as the backend delivered it: bytes, text, or nothing.
type Payload struct {
	kind  PayloadKind
	bytes []byte
	text  string
}

func BytesPayload(b []byte) Payload { return Payload{kind: PayloadBytes, bytes: b} }
func TextPayload(s string) Payload  { return Payload{kind: PayloadText, text: s} }
func AbsentPayload() Payload        { return Payload{} }

func (p Payload) Kind() PayloadKind { return p.kind }

// Bytes returns the body when Kind is PayloadBytes and nil otherwise.
func (p Payload) Bytes() []byte { return p.bytes }

// Text returns the body when Kind is PayloadText and "" otherwise.
func (p Payload) Text() string { return p.text }

// Empty reports whether the payload carries no data at all.
func (p Payload) Empty() bool {
	switch p.kind {
	case PayloadBytes:
		return len(p.bytes) == 0
	case PayloadText:
		return p.text == ""
	default:
		return true
	}
}

// Len is the number of bytes or characters carried.
func (p Payload) Len() int {
	return len(p.bytes) + len(p.text)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[http.CanonicalHeaderKey(k)] = strings.Join(v, ", ")
		}
	}
	return out
}
