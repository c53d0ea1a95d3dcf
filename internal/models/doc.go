// Package models defines the persistent entities of the osu! music library and the interfaces used to store them.
//
//   - [Track] : an audio file in the local library, with metadata derived from its filename
//   - [OAuthCredential] : the osu! access/refresh token pair with its expiry
//
// Tracks implement [Model] and are stored through a [Repository]. Credentials are kept by a [CredentialStore].
package models
