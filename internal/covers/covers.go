package covers

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/omf/internal/download"
	"github.com/desertthunder/omf/internal/shared"
	"github.com/desertthunder/omf/internal/storage"
	"golang.org/x/time/rate"
)

// AssetBaseURL is the host serving beatmapset covers.
const AssetBaseURL = "https://assets.ppy.sh/beatmaps"

const placeholderName = "placeholder.svg"

const placeholderSVG = `<svg width="100" height="100" xmlns="http://www.w3.org/2000/svg">
  <rect width="100%" height="100%" fill="#f0f0f0"/>
  <text x="50%" y="50%" text-anchor="middle" dy=".3em" font-family="Arial, sans-serif" font-size="12" fill="#999">osu!</text>
</svg>
`

// Size is a cover variant published by the asset host.
type Size string

const (
	SizeCover     Size = "cover"
	SizeCard      Size = "card"
	SizeList      Size = "list"
	SizeSlimCover Size = "slimcover"
)

// DefaultSize is used when no size is given.
const DefaultSize = SizeCard

// ParseSize validates s. An empty string is [DefaultSize].
func ParseSize(s string) (Size, error) {
	switch size := Size(strings.ToLower(strings.TrimSpace(s))); size {
	case "":
		return DefaultSize, nil
	case SizeCover, SizeCard, SizeList, SizeSlimCover:
		return size, nil
	default:
		return "", fmt.Errorf("%w: unknown cover size %q", shared.ErrInvalidArgument, s)
	}
}

// URL returns the asset URL for a beatmapset cover.
func URL(beatmapsetID int, size Size) string {
	if size == "" {
		size = DefaultSize
	}
	return fmt.Sprintf("%s/%d/covers/%s.jpg", AssetBaseURL, beatmapsetID, size)
}

// Request identifies one cover.
type Request struct {
	BeatmapsetID int
	Size         Size
}

func (r Request) key() string {
	return fmt.Sprintf("%d-%s", r.BeatmapsetID, r.Size)
}

// Fetcher downloads binary data. It is satisfied by [*download.Downloader].
type Fetcher interface {
	Download(ctx context.Context, req download.DownloadRequest) (*download.BinaryResult, error)
}

// Options configures a [Service].
type Options struct {
	Dir         string                   // backend directory covers are saved under
	Concurrency int                      // in-flight downloads for [Service.Covers]
	Limiter     *rate.Limiter            // optional; paces every network fetch
	Request     download.DownloadRequest // retry budget and timeout for each fetch; URL is ignored
	Logger      *log.Logger
}

// Service resolves covers to stored locations. It is safe for concurrent use.
type Service struct {
	fetcher     Fetcher
	writer      *storage.Writer
	dir         string
	concurrency int
	limiter     *rate.Limiter
	template    download.DownloadRequest
	logger      *log.Logger

	mu          sync.Mutex
	cache       map[string]string
	placeholder string
}

// NewService creates a Service that fetches with fetcher and saves with writer.
func NewService(fetcher Fetcher, writer *storage.Writer, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = download.DefaultConcurrency
	}
	tmpl := opts.Request
	if tmpl.Timeout <= 0 {
		tmpl = download.NewRequest("")
	}
	return &Service{
		fetcher:     fetcher,
		writer:      writer,
		dir:         opts.Dir,
		concurrency: opts.Concurrency,
		limiter:     opts.Limiter,
		template:    tmpl,
		logger:      shared.WithLogger(opts.Logger, "component", "covers"),
		cache:       make(map[string]string),
	}
}

// Cover returns the location of a beatmapset cover, downloading it on first use. A cover that cannot be
// fetched resolves to the placeholder image; only invalid input and placeholder write failures are errors.
func (s *Service) Cover(ctx context.Context, beatmapsetID int, size Size) (string, error) {
	if beatmapsetID <= 0 {
		return "", fmt.Errorf("%w: beatmapset id must be positive", shared.ErrInvalidArgument)
	}
	size, err := ParseSize(string(size))
	if err != nil {
		return "", err
	}

	req := Request{BeatmapsetID: beatmapsetID, Size: size}
	if loc, ok := s.cached(req.key()); ok {
		return loc, nil
	}

	logger := s.logger.With("beatmapset", beatmapsetID, "size", size)
	loc, err := s.fetch(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Warn("cover unavailable, using placeholder", "error", err)
		if loc, err = s.Placeholder(ctx); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	s.cache[req.key()] = loc
	s.mu.Unlock()
	return loc, nil
}

// Covers resolves many covers with a bounded number of downloads in flight. Requests that fail are absent
// from the result.
func (s *Service) Covers(ctx context.Context, reqs []Request) map[Request]string {
	keys := make([]Request, 0, len(reqs))
	for _, r := range reqs {
		if r.Size == "" {
			r.Size = DefaultSize
		}
		keys = append(keys, r)
	}

	results := download.Batch(ctx, s.concurrency, keys, func(ctx context.Context, r Request) (string, error) {
		return s.Cover(ctx, r.BeatmapsetID, r.Size)
	})

	out := make(map[Request]string, len(results))
	for r, res := range results {
		if res.Err != nil {
			s.logger.Warn("cover failed", "beatmapset", r.BeatmapsetID, "size", r.Size, "error", res.Err)
			continue
		}
		out[r] = res.Value
	}
	return out
}

// ClearCache forgets every resolved cover. Stored files are kept.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cache)
	s.logger.Debug("cache cleared")
}

// Placeholder returns the location of the placeholder image, writing it on first use.
func (s *Service) Placeholder(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.placeholder != "" {
		return s.placeholder, nil
	}

	loc, err := s.writer.SaveBytes(ctx, []byte(placeholderSVG), path.Join(s.dir, placeholderName))
	if err != nil {
		return "", fmt.Errorf("failed to write placeholder: %w", err)
	}
	s.placeholder = loc.URI
	return s.placeholder, nil
}

func (s *Service) cached(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.cache[key]
	return loc, ok
}

// fetch returns the stored cover, downloading it when it is not already on disk.
func (s *Service) fetch(ctx context.Context, r Request) (string, error) {
	target := path.Join(s.dir, r.key()+".jpg")

	if ok, err := s.writer.Backend().Exists(ctx, target); err == nil && ok {
		return s.writer.Locate(target).URI, nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	req := s.template
	req.URL = URL(r.BeatmapsetID, r.Size)
	res, err := s.fetcher.Download(ctx, req)
	if err != nil {
		return "", err
	}

	loc, err := s.writer.SaveBytes(ctx, res.Data, target)
	if err != nil {
		return "", err
	}
	s.logger.Info("cover saved", "beatmapset", r.BeatmapsetID, "size", r.Size, "bytes", res.SizeBytes)
	return loc.URI, nil
}
