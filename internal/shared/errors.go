package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrNetworkFailure   = fmt.Errorf("network unavailable")

	// Transfer errors
	ErrDownloadFailed = fmt.Errorf("download failed")
	ErrDecode         = fmt.Errorf("payload is not decodable binary data")
	ErrWriteFailed    = fmt.Errorf("write failed")
	ErrTimeout        = fmt.Errorf("operation timed out")

	// Library errors
	ErrTrackNotFound = fmt.Errorf("track not found")
	ErrNotAudioFile  = fmt.Errorf("not an audio file")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
