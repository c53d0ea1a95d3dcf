// Package services talks to the osu! OAuth provider and keeps the resulting session.
//
// # Token exchange
//
// [OsuAuthService] performs the authorization-code and refresh-token grants through a [transport.Backend]. It
// holds no state between calls and never retries: every call ends in exactly one [TokenExchangeResult].
//
//   - Ok: 200 with an access_token
//   - InvalidClient / InvalidGrant: 400 with error=invalid_client / invalid_grant
//   - OtherError: any other failure response, with the provider's error and error_description
//   - NetworkFailure: the provider could not be reached
//
// Before exchanging an authorization code the service probes the provider's base URL and reports NetworkFailure
// without attempting the exchange when the probe fails.
//
// Credentials expire five minutes before the provider says they do.
//
// # Session
//
// [Session] combines the exchanger with a [models.CredentialStore]. It refreshes expired credentials on demand
// and clears them when the provider rejects the refresh token ([TokenExchangeResult.ShouldClearCredentials]).
// [Session.TokenSource] exposes the session as an [oauth2.TokenSource].
package services
