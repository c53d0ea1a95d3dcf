// Package repositories implements SQLite persistence for the library's entities.
//
// Key Implementations:
//   - [TrackRepository] : the track index, keyed by a generated UUID and unique per file name
//   - [CredentialRepository] : the stored osu! credential, one row per provider; implements [models.CredentialStore]
package repositories
