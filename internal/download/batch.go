package download

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency caps in-flight calls when a batch is given no limit.
const DefaultConcurrency = 5

// BatchResult is the outcome for one key of a [Batch].
type BatchResult[V any] struct {
	Value V
	Err   error
}

// Batch calls fn once for every distinct key with at most limit calls running at once, and returns the outcomes
// keyed by input. A failing call does not stop the others. Keys not yet started when ctx is done report ctx's
// error.
func Batch[K comparable, V any](ctx context.Context, limit int, keys []K, fn func(context.Context, K) (V, error)) map[K]BatchResult[V] {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var (
		mu      sync.Mutex
		results = make(map[K]BatchResult[V], len(keys))
		g       errgroup.Group
	)
	g.SetLimit(limit)

	seen := make(map[K]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		g.Go(func() error {
			var res BatchResult[V]
			if err := ctx.Err(); err != nil {
				res.Err = err
			} else {
				res.Value, res.Err = fn(ctx, key)
			}

			mu.Lock()
			results[key] = res
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// DownloadAll downloads every request with at most limit in flight, keyed by URL.
func (d *Downloader) DownloadAll(ctx context.Context, reqs []DownloadRequest, limit int) map[string]BatchResult[*BinaryResult] {
	byURL := make(map[string]DownloadRequest, len(reqs))
	urls := make([]string, 0, len(reqs))
	for _, r := range reqs {
		if _, ok := byURL[r.URL]; !ok {
			urls = append(urls, r.URL)
			byURL[r.URL] = r
		}
	}

	return Batch(ctx, limit, urls, func(ctx context.Context, url string) (*BinaryResult, error) {
		return d.Download(ctx, byURL[url])
	})
}
