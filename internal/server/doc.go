// Package server provides HTTP routing, middleware, and the OAuth loopback callback.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] receives the osu! authorization redirect. It validates the state parameter, hands the code
// to a [CodeExchanger] (normally the session, which stores the credential) and sends the result through a
// channel. Only the first callback is processed.
//
// [WaitForCallback] runs a temporary loopback server for a handler and shuts it down once a result arrives,
// the context ends, or the server fails.
package server
