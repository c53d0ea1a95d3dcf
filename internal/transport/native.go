package transport

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/omf/internal/shared"
)

// NativeBackend performs requests through a [Bridge].
type NativeBackend struct {
	bridge   Bridge
	timeouts Timeouts
	logger   *log.Logger
}

// NewNativeBackend wraps bridge. The logger may be nil.
func NewNativeBackend(bridge Bridge, t Timeouts, logger *log.Logger) *NativeBackend {
	return &NativeBackend{
		bridge:   bridge,
		timeouts: t.withDefaults(),
		logger:   shared.WithLogger(logger, "backend", KindNative),
	}
}

func (b *NativeBackend) Kind() BackendKind { return KindNative }

// PerformRequest sends req through the bridge and returns the body in whatever shape the bridge produced.
func (b *NativeBackend) PerformRequest(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := b.timeouts.deadline(ctx)
	defer cancel()

	resp, err := b.bridge.Request(ctx, BridgeRequest{
		URL:          req.URL,
		Method:       req.method(),
		Headers:      req.Headers,
		Data:         req.Body,
		ResponseType: bridgeResponseType(req.ResponseKind),
	})
	if err != nil {
		// a bridge may return before noticing its context expired
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return nil, newError(classify(err), KindNative, req.URL, err)
	}
	if resp == nil {
		return nil, newError(KindProtocol, KindNative, req.URL, fmt.Errorf("bridge returned no response"))
	}

	var payload Payload
	switch data := resp.Data.(type) {
	case nil:
		payload = AbsentPayload()
	case []byte:
		payload = BytesPayload(data)
	case string:
		payload = TextPayload(data)
	default:
		return nil, newError(KindProtocol, KindNative, req.URL, fmt.Errorf("bridge returned unsupported data type %T", resp.Data))
	}

	b.logger.Debug("request complete", "method", req.method(), "url", req.URL, "status", resp.Status, "kind", req.ResponseKind, "payload", payload.Kind(), "size", payload.Len())

	headers := resp.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	return &Response{StatusCode: resp.Status, Payload: payload, Headers: headers}, nil
}

func bridgeResponseType(k ResponseKind) string {
	switch k {
	case ResponseBinary:
		return BridgeResponseBinary
	case ResponseJSON:
		return BridgeResponseJSON
	case ResponseText:
		return BridgeResponseText
	default:
		return BridgeResponseDefault
	}
}
