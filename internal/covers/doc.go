// Package covers resolves beatmapset cover images to locally stored files.
//
// Covers are fetched from the osu! asset host through the download orchestrator, saved through the
// storage writer and remembered in an in-memory cache keyed by beatmapset and size. When a cover cannot be
// fetched a placeholder image is returned instead.
package covers
