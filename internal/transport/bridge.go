package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/desertthunder/omf/internal/transcode"
)

// Bridge response types, as understood by a native shell.
const (
	BridgeResponseDefault = ""
	BridgeResponseBinary  = "arraybuffer"
	BridgeResponseJSON    = "json"
	BridgeResponseText    = "text"
)

// BridgeRequest is the request shape a native shell accepts.
type BridgeRequest struct {
	URL          string
	Method       string
	Headers      map[string]string
	Data         []byte
	ResponseType string
}

// BridgeResponse is what a native shell hands back.
//
// Data is []byte, string or nil, and which one arrives for a given request is not guaranteed.
type BridgeResponse struct {
	Status  int
	Data    any
	Headers map[string]string
	URL     string
}

// Bridge is the native shell's request mechanism.
type Bridge interface {
	Request(ctx context.Context, req BridgeRequest) (*BridgeResponse, error)
	// Available reports whether the shell is present in this process.
	Available() bool
}

// HTTPBridge is a [Bridge] over net/http that answers the way a native shell does:
//   - binary response type: raw bytes
//   - default response type: text for textual content types, base64 text for everything else
//   - empty body: nil
type HTTPBridge struct {
	client *http.Client
}

// NewHTTPBridge creates a bridge; a nil client gets one built from default timeouts.
func NewHTTPBridge(client *http.Client) *HTTPBridge {
	if client == nil {
		client = NewHTTPClient(Timeouts{})
	}
	return &HTTPBridge{client: client}
}

func (b *HTTPBridge) Available() bool { return true }

func (b *HTTPBridge) Request(ctx context.Context, req BridgeRequest) (*BridgeResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Data) > 0 {
		body = bytes.NewReader(req.Data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	out := &BridgeResponse{Status: resp.StatusCode, Headers: flattenHeaders(resp.Header), URL: resp.Request.URL.String()}
	if len(raw) == 0 {
		return out, nil
	}

	switch req.ResponseType {
	case BridgeResponseBinary:
		out.Data = raw
	case BridgeResponseJSON, BridgeResponseText:
		out.Data = string(raw)
	case BridgeResponseDefault:
		if isTextual(resp.Header.Get("Content-Type")) {
			out.Data = string(raw)
		} else {
			out.Data = transcode.EncodeBase64(raw)
		}
	default:
		return nil, fmt.Errorf("unsupported response type %q", req.ResponseType)
	}
	return out, nil
}

func isTextual(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return true
	case mediaType == "application/xml", strings.HasSuffix(mediaType, "+xml"):
		return true
	case mediaType == "application/x-www-form-urlencoded", mediaType == "application/javascript":
		return true
	}
	return false
}
