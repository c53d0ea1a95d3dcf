// Package storage persists downloaded bytes through a file [Backend].
//
// A backend is a plain byte-in/byte-out file service that accepts either UTF-8 text or base64 text, as the
// storage APIs of app shells do. [LocalBackend] implements it over a directory on disk.
//
// [Writer.SaveBytes] converts bytes to whatever the backend accepts and makes the write look atomic: the data is
// written under a temporary name and renamed over the target, so a reader sees either the whole file or nothing.
// Writes are never retried here.
package storage
