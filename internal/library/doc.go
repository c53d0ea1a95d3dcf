// Package library manages the local collection of beatmap audio files.
//
// Metadata is derived from file names of the form {beatmapsetId}-{title}-{artist}.{ext}; files that do not
// follow the convention fall back to their name as title and "Unknown Artist". The [Service] keeps the track
// index in step with the music directory.
package library
