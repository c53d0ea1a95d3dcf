package covers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/omf/internal/download"
	"github.com/desertthunder/omf/internal/shared"
	"github.com/desertthunder/omf/internal/storage"
	"golang.org/x/time/rate"
)

type fakeFetcher struct {
	mu       sync.Mutex
	urls     []string
	fail     bool
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeFetcher) Download(ctx context.Context, req download.DownloadRequest) (*download.BinaryResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.urls = append(f.urls, req.URL)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail {
		return nil, &download.DownloadError{URL: req.URL, LastReason: "HTTP 404", StatusCode: 404, Attempts: 1, Fatal: true}
	}
	data := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	return &download.BinaryResult{Data: data, StatusCode: 200, SizeBytes: len(data)}, nil
}

func (f *fakeFetcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func newTestService(t *testing.T, f Fetcher, opts Options) (*Service, *storage.LocalBackend) {
	t.Helper()
	backend, err := storage.NewLocalBackend(t.TempDir(), storage.EncodingBase64)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	if opts.Dir == "" {
		opts.Dir = "covers"
	}
	return NewService(f, storage.NewWriter(backend, nil), opts), backend
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    Size
		wantErr bool
	}{
		{"", SizeCard, false},
		{"cover", SizeCover, false},
		{"CARD", SizeCard, false},
		{"list", SizeList, false},
		{"slimcover", SizeSlimCover, false},
		{"huge", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestURL(t *testing.T) {
	if got := URL(1234, SizeList); got != "https://assets.ppy.sh/beatmaps/1234/covers/list.jpg" {
		t.Errorf("unexpected url %s", got)
	}
	if got := URL(1, ""); got != "https://assets.ppy.sh/beatmaps/1/covers/card.jpg" {
		t.Errorf("unexpected default url %s", got)
	}
}

func TestCover(t *testing.T) {
	ctx := context.Background()

	t.Run("downloads and saves", func(t *testing.T) {
		f := &fakeFetcher{}
		svc, backend := newTestService(t, f, Options{})

		loc, err := svc.Cover(ctx, 42, SizeCard)
		if err != nil {
			t.Fatalf("Cover failed: %v", err)
		}
		if !strings.HasPrefix(loc, "file://") || !strings.HasSuffix(loc, "covers/42-card.jpg") {
			t.Errorf("unexpected location %s", loc)
		}
		if ok, _ := backend.Exists(ctx, "covers/42-card.jpg"); !ok {
			t.Error("expected cover file to exist")
		}
		if calls := f.calls(); len(calls) != 1 || calls[0] != URL(42, SizeCard) {
			t.Errorf("unexpected fetches %v", calls)
		}
	})

	t.Run("cache hit", func(t *testing.T) {
		f := &fakeFetcher{}
		svc, _ := newTestService(t, f, Options{})

		first, err := svc.Cover(ctx, 7, "")
		if err != nil {
			t.Fatalf("Cover failed: %v", err)
		}
		second, err := svc.Cover(ctx, 7, SizeCard)
		if err != nil {
			t.Fatalf("Cover failed: %v", err)
		}

		if first != second {
			t.Errorf("expected same location, got %s and %s", first, second)
		}
		if n := len(f.calls()); n != 1 {
			t.Errorf("expected 1 fetch, got %d", n)
		}
	})

	t.Run("stored file skips download after ClearCache", func(t *testing.T) {
		f := &fakeFetcher{}
		svc, _ := newTestService(t, f, Options{})

		if _, err := svc.Cover(ctx, 9, SizeList); err != nil {
			t.Fatalf("Cover failed: %v", err)
		}
		svc.ClearCache()
		if _, err := svc.Cover(ctx, 9, SizeList); err != nil {
			t.Fatalf("Cover failed: %v", err)
		}
		if n := len(f.calls()); n != 1 {
			t.Errorf("expected 1 fetch, got %d", n)
		}
	})

	t.Run("failure falls back to placeholder written once", func(t *testing.T) {
		f := &fakeFetcher{fail: true}
		svc, backend := newTestService(t, f, Options{})

		a, err := svc.Cover(ctx, 1, SizeCard)
		if err != nil {
			t.Fatalf("Cover failed: %v", err)
		}
		b, err := svc.Cover(ctx, 2, SizeCard)
		if err != nil {
			t.Fatalf("Cover failed: %v", err)
		}

		if a != b || !strings.HasSuffix(a, "covers/placeholder.svg") {
			t.Errorf("expected shared placeholder, got %s and %s", a, b)
		}
		text, err := backend.ReadFile(ctx, "covers/placeholder.svg", storage.EncodingUTF8)
		if err != nil {
			t.Fatalf("failed to read placeholder: %v", err)
		}
		if !strings.Contains(text, "osu!") {
			t.Errorf("unexpected placeholder contents %q", text)
		}
		if ok, _ := backend.Exists(ctx, "covers/1-card.jpg"); ok {
			t.Error("failed cover must not be stored")
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeFetcher{}, Options{})

		if _, err := svc.Cover(ctx, 0, SizeCard); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := svc.Cover(ctx, 1, "poster"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("request template", func(t *testing.T) {
		f := &fakeFetcher{}
		limiter := rate.NewLimiter(rate.Inf, 1)
		svc, _ := newTestService(t, f, Options{Limiter: limiter, Request: download.DownloadRequest{MaxRetries: 1, Timeout: time.Second}})

		if _, err := svc.Cover(ctx, 3, SizeCover); err != nil {
			t.Fatalf("Cover failed: %v", err)
		}
		if svc.template.MaxRetries != 1 || svc.template.Timeout != time.Second {
			t.Errorf("unexpected template %+v", svc.template)
		}
	})
}

func TestCovers(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrency cap", func(t *testing.T) {
		f := &fakeFetcher{delay: 20 * time.Millisecond}
		svc, _ := newTestService(t, f, Options{Concurrency: 3})

		reqs := make([]Request, 0, 12)
		for i := 1; i <= 12; i++ {
			reqs = append(reqs, Request{BeatmapsetID: i})
		}

		got := svc.Covers(ctx, reqs)
		if len(got) != 12 {
			t.Fatalf("expected 12 results, got %d", len(got))
		}
		if _, ok := got[Request{BeatmapsetID: 5, Size: SizeCard}]; !ok {
			t.Error("expected default size to be applied to result keys")
		}
		if m := f.maxSeen.Load(); m > 3 {
			t.Errorf("expected at most 3 in flight, saw %d", m)
		}
	})

	t.Run("invalid requests are absent", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeFetcher{}, Options{})

		got := svc.Covers(ctx, []Request{{BeatmapsetID: 1}, {BeatmapsetID: -1}})
		if len(got) != 1 {
			t.Errorf("expected 1 result, got %d", len(got))
		}
	})
}
