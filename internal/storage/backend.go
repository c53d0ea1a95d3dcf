package storage

import (
	"context"
	"time"
)

// Encoding is the text representation a backend reads and writes.
type Encoding int

const (
	EncodingBase64 Encoding = iota
	EncodingUTF8
)

func (e Encoding) String() string {
	if e == EncodingUTF8 {
		return "utf8"
	}
	return "base64"
}

// FileInfo describes one directory entry.
type FileInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
	IsDir   bool      `json:"is_dir"`
}

// Backend is the file service contract. Paths are relative to the backend's root.
type Backend interface {
	WriteFile(ctx context.Context, path, data string, enc Encoding) error
	ReadFile(ctx context.Context, path string, enc Encoding) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
	DeleteFile(ctx context.Context, path string) error
	ListDirectory(ctx context.Context, path string) ([]FileInfo, error)
}

// Renamer is implemented by backends that can move a file in one step.
type Renamer interface {
	Rename(ctx context.Context, from, to string) error
}

// Locator is implemented by backends that can give a stable URI for a path.
type Locator interface {
	URI(path string) string
}

// EncodingPreferrer is implemented by backends with a preferred write encoding. Others get base64.
type EncodingPreferrer interface {
	PreferredEncoding() Encoding
}
