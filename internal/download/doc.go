// Package download fetches binary assets through a [transport.Backend] and recovers the bytes no matter which
// shape the backend delivered them in.
//
// # Web backend
//
// One binary request. A non-2xx status or transport failure ends the download immediately.
//
// # Native backend
//
// Up to MaxRetries+1 attempts. Each attempt first asks for a binary body (strategy A) and, if that produced
// nothing usable, immediately asks again with the default response type (strategy B). The fallback is part of
// the same attempt and does not consume retry budget.
//
//   - bytes: success
//   - text: decoded as base64 (strategy B only when [transcode.LooksLikeBase64] agrees)
//   - absent or empty: fall through
//
// A 4xx other than 408 and 429 is treated as definitive and stops the loop; [Options.RetryClientErrors] retries
// them like everything else. Attempts are separated by a linear backoff of attempt × [Options.BaseDelay].
//
// # Batches
//
// [Batch] runs many calls with a fixed cap on how many are in flight and returns results keyed by input.
package download
