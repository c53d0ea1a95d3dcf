package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/desertthunder/omf/internal/shared"
	"github.com/desertthunder/omf/internal/transcode"
)

// LocalBackend stores files under a root directory.
type LocalBackend struct {
	root     string
	encoding Encoding
}

// NewLocalBackend creates the root directory if needed. enc is the encoding writers should prefer.
func NewLocalBackend(root string, enc Encoding) (*LocalBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalBackend{root: abs, encoding: enc}, nil
}

// Root returns the absolute root directory.
func (b *LocalBackend) Root() string { return b.root }

func (b *LocalBackend) PreferredEncoding() Encoding { return b.encoding }

// resolve maps a backend path to a filesystem path, refusing anything outside root.
func (b *LocalBackend) resolve(p string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash("/" + strings.TrimPrefix(p, "/")))
	full := filepath.Join(b.root, clean)
	if full != b.root && !strings.HasPrefix(full, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q escapes storage root", shared.ErrInvalidArgument, p)
	}
	return full, nil
}

func (b *LocalBackend) WriteFile(ctx context.Context, path, data string, enc Encoding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := b.resolve(path)
	if err != nil {
		return err
	}

	raw := []byte(data)
	if enc == EncodingBase64 {
		if raw, err = transcode.DecodeBase64(data); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}
	if err := os.WriteFile(full, raw, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (b *LocalBackend) ReadFile(ctx context.Context, path string, enc Encoding) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := b.resolve(path)
	if err != nil {
		return "", err
	}

	raw, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if enc == EncodingBase64 {
		return transcode.EncodeBase64(raw), nil
	}
	return string(raw), nil
}

func (b *LocalBackend) Exists(ctx context.Context, path string) (bool, error) {
	full, err := b.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// DeleteFile removes path. A missing file is not an error.
func (b *LocalBackend) DeleteFile(ctx context.Context, path string) error {
	full, err := b.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// ListDirectory returns the entries of path sorted by name. A missing directory is empty.
func (b *LocalBackend) ListDirectory(ctx context.Context, path string) ([]FileInfo, error) {
	full, err := b.resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(full)
	if errors.Is(err, fs.ErrNotExist) {
		return []FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Name:    e.Name(),
			Path:    filepath.ToSlash(filepath.Join(path, e.Name())),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   e.IsDir(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *LocalBackend) Rename(ctx context.Context, from, to string) error {
	src, err := b.resolve(from)
	if err != nil {
		return err
	}
	dst, err := b.resolve(to)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to rename: %w", err)
	}
	return nil
}

// URI returns a file:// URI for path.
func (b *LocalBackend) URI(path string) string {
	full, err := b.resolve(path)
	if err != nil {
		return ""
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String()
}

// FullPath returns the filesystem path for a backend path.
func (b *LocalBackend) FullPath(path string) (string, error) {
	return b.resolve(path)
}
