// Package transport performs single HTTP requests through one of two interchangeable backends.
//
// # Backends
//
// [WebBackend] is a plain [http.Client]. Binary responses always arrive as bytes.
//
// [NativeBackend] adapts a [Bridge], the restricted request mechanism of a packaged app shell. A bridge may hand
// back a binary body as raw bytes, as base64 text, or not at all, and may do so differently for identical
// requests. NativeBackend passes whatever it got through as a [Payload] without coercing it; deciding what the
// payload means is the caller's job.
//
// [HTTPBridge] is a bridge implemented over net/http that reproduces the shapes a native shell produces.
//
// # Selection
//
// [Detect] chooses a backend once at start-up. The result is passed to whatever needs it; there is no package
// level default.
//
// # Errors
//
// A non-2xx status is a normal [Response]. Failures to get a response at all are reported as [*Error] whose kind
// matches [ErrTimeout], [ErrConnection] or [ErrProtocol] with [errors.Is].
package transport
