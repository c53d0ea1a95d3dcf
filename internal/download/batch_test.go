package download

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	tu "github.com/desertthunder/omf/internal/testing"
	"github.com/desertthunder/omf/internal/transport"
)

func TestBatch(t *testing.T) {
	t.Run("never exceeds the concurrency limit", func(t *testing.T) {
		backend := tu.NewFakeBackend(transport.KindNative, func(int, transport.Request) (*transport.Response, error) {
			return tu.BytesResponse(200, []byte("jpg")), nil
		}).WithDelay(20 * time.Millisecond)
		d, _ := newTestDownloader(backend, Options{})

		reqs := make([]DownloadRequest, 12)
		for i := range reqs {
			reqs[i] = DownloadRequest{URL: fmt.Sprintf("https://assets.ppy.sh/beatmaps/%d/covers/card.jpg", i), Timeout: time.Second}
		}

		results := d.DownloadAll(context.Background(), reqs, 5)

		if len(results) != 12 {
			t.Fatalf("expected 12 results, got %d", len(results))
		}
		for _, r := range reqs {
			if res, ok := results[r.URL]; !ok || res.Err != nil {
				t.Errorf("missing or failed result for %s: %+v", r.URL, res)
			}
		}
		if got := backend.MaxInFlight(); got > 5 {
			t.Errorf("expected at most 5 in flight, saw %d", got)
		}
		if backend.CallCount() != 12 {
			t.Errorf("expected 12 calls, got %d", backend.CallCount())
		}
	})

	t.Run("failures are keyed and do not stop others", func(t *testing.T) {
		results := Batch(context.Background(), 2, []int{1, 2, 3, 4}, func(_ context.Context, n int) (int, error) {
			if n%2 == 0 {
				return 0, errors.New("even")
			}
			return n * 10, nil
		})

		if results[1].Value != 10 || results[3].Value != 30 {
			t.Errorf("unexpected values: %+v", results)
		}
		if results[2].Err == nil || results[4].Err == nil {
			t.Errorf("expected errors for even keys: %+v", results)
		}
	})

	t.Run("duplicate keys run once", func(t *testing.T) {
		var calls atomic.Int32
		results := Batch(context.Background(), 0, []string{"a", "a", "b"}, func(context.Context, string) (struct{}, error) {
			calls.Add(1)
			return struct{}{}, nil
		})

		if calls.Load() != 2 || len(results) != 2 {
			t.Errorf("expected 2 calls and results, got %d and %d", calls.Load(), len(results))
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := Batch(ctx, 1, []int{1, 2}, func(context.Context, int) (int, error) {
			t.Error("fn should not be called after cancellation")
			return 0, nil
		})
		for k, r := range results {
			if !errors.Is(r.Err, context.Canceled) {
				t.Errorf("key %d: expected context.Canceled, got %v", k, r.Err)
			}
		}
	})
}
