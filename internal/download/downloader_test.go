package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/omf/internal/shared"
	tu "github.com/desertthunder/omf/internal/testing"
	"github.com/desertthunder/omf/internal/transcode"
	"github.com/desertthunder/omf/internal/transport"
)

var audio = bytes.Repeat([]byte{0x49, 0x44, 0x33, 0x04, 0x00, 0xff}, 64)

func newTestDownloader(backend transport.Backend, opts Options) (*Downloader, *tu.RecordingSleeper) {
	sleeper := &tu.RecordingSleeper{}
	opts.Sleep = sleeper.Sleep
	return New(backend, opts), sleeper
}

func request(maxRetries int) DownloadRequest {
	return DownloadRequest{URL: "https://assets.ppy.sh/beatmaps/1/covers/card.jpg", MaxRetries: maxRetries, Timeout: time.Second}
}

func TestDownloadNative(t *testing.T) {
	t.Run("bytes on first call succeed without backoff", func(t *testing.T) {
		backend := tu.NewFakeBackend(transport.KindNative, func(n int, req transport.Request) (*transport.Response, error) {
			return tu.BytesResponse(200, audio), nil
		})
		d, sleeper := newTestDownloader(backend, Options{})

		result, err := d.Download(context.Background(), request(3))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(result.Data, audio) {
			t.Error("data mismatch")
		}
		if result.SizeBytes != len(result.Data) {
			t.Errorf("SizeBytes %d != len(Data) %d", result.SizeBytes, len(result.Data))
		}
		if backend.CallCount() != 1 {
			t.Errorf("expected 1 call, got %d", backend.CallCount())
		}
		if len(sleeper.Delays) != 0 {
			t.Errorf("expected no backoff, got %v", sleeper.Delays)
		}
		if backend.Calls()[0].ResponseKind != transport.ResponseBinary {
			t.Errorf("first call should request binary, got %s", backend.Calls()[0].ResponseKind)
		}
	})

	t.Run("absent then base64 text succeeds within one attempt", func(t *testing.T) {
		encoded := transcode.EncodeBase64(audio)
		backend := tu.NewFakeBackend(transport.KindNative, func(n int, req transport.Request) (*transport.Response, error) {
			if req.ResponseKind == transport.ResponseBinary {
				return tu.AbsentResponse(200), nil
			}
			return tu.TextResponse(200, encoded), nil
		})
		d, sleeper := newTestDownloader(backend, Options{})

		result, err := d.Download(context.Background(), request(3))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(result.Data, audio) {
			t.Error("decoded data mismatch")
		}
		if backend.CallCount() != 2 {
			t.Errorf("expected strategy A and B in one attempt (2 calls), got %d", backend.CallCount())
		}
		if len(sleeper.Delays) != 0 {
			t.Errorf("fallback must not back off, got %v", sleeper.Delays)
		}
	})

	t.Run("strategy A base64 text is decoded", func(t *testing.T) {
		backend := tu.NewFakeBackend(transport.KindNative, func(n int, req transport.Request) (*transport.Response, error) {
			return tu.TextResponse(200, transcode.EncodeBase64([]byte("short"))), nil
		})
		d, _ := newTestDownloader(backend, Options{})

		result, err := d.Download(context.Background(), request(0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(result.Data) != "short" {
			t.Errorf("expected short, got %q", result.Data)
		}
	})

	t.Run("sniffing gate rejects short strategy A text", func(t *testing.T) {
		backend := tu.NewFakeBackend(transport.KindNative, func(n int, req transport.Request) (*transport.Response, error) {
			return tu.TextResponse(200, transcode.EncodeBase64([]byte("short"))), nil
		})
		d, _ := newTestDownloader(backend, Options{SniffBinaryText: true})

		_, err := d.Download(context.Background(), request(0))
		if err == nil {
			t.Fatal("expected error: short text fails the sniffing heuristic in both strategies")
		}
	})

	t.Run("strategy B requires base64-looking text", func(t *testing.T) {
		backend := tu.NewFakeBackend(transport.KindNative, func(n int, req transport.Request) (*transport.Response, error) {
			if req.ResponseKind == transport.ResponseBinary {
				return tu.AbsentResponse(200), nil
			}
			return tu.TextResponse(200, "<html>maintenance</html>"), nil
		})
		d, _ := newTestDownloader(backend, Options{})

		_, err := d.Download(context.Background(), request(0))
		de, ok := AsDownloadError(err)
		if !ok {
			t.Fatalf("expected *DownloadError, got %v", err)
		}
		if !strings.Contains(de.LastReason, "default") {
			t.Errorf("expected reason to mention the default strategy, got %q", de.LastReason)
		}
	})

	t.Run("always failing transport makes exactly N+1 attempt pairs", func(t *testing.T) {
		for _, n := range []int{0, 1, 3} {
			backend := tu.NewFakeBackend(transport.KindNative, func(_ int, req transport.Request) (*transport.Response, error) {
				return nil, &transport.Error{Kind: transport.KindConnection, Backend: transport.KindNative, URL: req.URL, Err: errors.New("bridge unavailable")}
			})
			d, sleeper := newTestDownloader(backend, Options{})

			_, err := d.Download(context.Background(), request(n))
			de, ok := AsDownloadError(err)
			if !ok {
				t.Fatalf("maxRetries=%d: expected *DownloadError, got %v", n, err)
			}
			if de.Attempts != n+1 {
				t.Errorf("maxRetries=%d: expected %d attempts, got %d", n, n+1, de.Attempts)
			}
			if backend.CallCount() != 2*(n+1) {
				t.Errorf("maxRetries=%d: expected %d calls, got %d", n, 2*(n+1), backend.CallCount())
			}
			for i, call := range backend.Calls() {
				want := transport.ResponseBinary
				if i%2 == 1 {
					want = transport.ResponseDefault
				}
				if call.ResponseKind != want {
					t.Errorf("maxRetries=%d: call %d expected %s, got %s", n, i, want, call.ResponseKind)
				}
			}
			if len(sleeper.Delays) != n {
				t.Errorf("maxRetries=%d: expected %d backoffs, got %d", n, n, len(sleeper.Delays))
			}
			if !errors.Is(err, shared.ErrDownloadFailed) || !errors.Is(err, transport.ErrConnection) {
				t.Errorf("maxRetries=%d: error should match ErrDownloadFailed and ErrConnection: %v", n, err)
			}
			if de.Fatal {
				t.Errorf("maxRetries=%d: exhausted retries should not be fatal", n)
			}
		}
	})

	t.Run("linear backoff", func(t *testing.T) {
		backend := tu.NewFakeBackend(transport.KindNative, func(int, transport.Request) (*transport.Response, error) {
			return tu.AbsentResponse(200), nil
		})
		d, sleeper := newTestDownloader(backend, Options{BaseDelay: 10 * time.Millisecond})

		d.Download(context.Background(), request(3))

		want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
		if len(sleeper.Delays) != len(want) {
			t.Fatalf("expected %v, got %v", want, sleeper.Delays)
		}
		for i := range want {
			if sleeper.Delays[i] != want[i] {
				t.Errorf("backoff %d: expected %v, got %v", i, want[i], sleeper.Delays[i])
			}
		}
	})

	t.Run("recovers on a later attempt", func(t *testing.T) {
		backend := tu.NewFakeBackend(transport.KindNative, func(n int, req transport.Request) (*transport.Response, error) {
			if n <= 4 {
				return tu.BytesResponse(503, nil), nil
			}
			return tu.BytesResponse(200, audio), nil
		})
		d, sleeper := newTestDownloader(backend, Options{})

		result, err := d.Download(context.Background(), request(3))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.StatusCode != 200 {
			t.Errorf("expected 200, got %d", result.StatusCode)
		}
		if len(sleeper.Delays) != 2 {
			t.Errorf("expected 2 backoffs before the third attempt, got %d", len(sleeper.Delays))
		}
	})

	t.Run("definitive 4xx stops immediately", func(t *testing.T) {
		backend := tu.NewFakeBackend(transport.KindNative, func(int, transport.Request) (*transport.Response, error) {
			return tu.TextResponse(http.StatusNotFound, "not found"), nil
		})
		d, sleeper := newTestDownloader(backend, Options{})

		_, err := d.Download(context.Background(), request(3))
		de, ok := AsDownloadError(err)
		if !ok {
			t.Fatalf("expected *DownloadError, got %v", err)
		}
		if !de.Fatal || de.StatusCode != 404 || de.Attempts != 1 {
			t.Errorf("expected fatal 404 after 1 attempt, got %+v", de)
		}
		if de.Retryable() {
			t.Error("404 should not be retryable")
		}
		if backend.CallCount() != 1 {
			t.Errorf("expected a single call, got %d", backend.CallCount())
		}
		if len(sleeper.Delays) != 0 {
			t.Errorf("expected no backoff, got %v", sleeper.Delays)
		}
	})

	t.Run("429 and 408 are retried", func(t *testing.T) {
		for _, status := range []int{http.StatusTooManyRequests, http.StatusRequestTimeout} {
			backend := tu.NewFakeBackend(transport.KindNative, func(int, transport.Request) (*transport.Response, error) {
				return tu.AbsentResponse(status), nil
			})
			d, _ := newTestDownloader(backend, Options{})

			_, err := d.Download(context.Background(), request(1))
			de, _ := AsDownloadError(err)
			if de == nil || de.Fatal || de.Attempts != 2 || de.StatusCode != status {
				t.Errorf("status %d: expected 2 non-fatal attempts, got %+v", status, de)
			}
		}
	})

	t.Run("RetryClientErrors restores uniform retry", func(t *testing.T) {
		backend := tu.NewFakeBackend(transport.KindNative, func(int, transport.Request) (*transport.Response, error) {
			return tu.AbsentResponse(http.StatusNotFound), nil
		})
		d, _ := newTestDownloader(backend, Options{RetryClientErrors: true})

		_, err := d.Download(context.Background(), request(2))
		de, _ := AsDownloadError(err)
		if de == nil || de.Fatal || de.Attempts != 3 || de.StatusCode != 404 {
			t.Errorf("expected 3 attempts surfacing 404, got %+v", de)
		}
		if backend.CallCount() != 6 {
			t.Errorf("expected 6 calls, got %d", backend.CallCount())
		}
	})

	t.Run("cancelled context stops the loop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		backend := tu.NewFakeBackend(transport.KindNative, func(int, transport.Request) (*transport.Response, error) {
			cancel()
			return tu.AbsentResponse(200), nil
		})
		d, _ := newTestDownloader(backend, Options{})

		_, err := d.Download(ctx, request(5))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if backend.CallCount() != 2 {
			t.Errorf("expected one attempt pair, got %d calls", backend.CallCount())
		}
	})

	t.Run("result data is not shared with the backend", func(t *testing.T) {
		buf := []byte{1, 2, 3}
		backend := tu.NewFakeBackend(transport.KindNative, func(int, transport.Request) (*transport.Response, error) {
			return tu.BytesResponse(200, buf), nil
		})
		d, _ := newTestDownloader(backend, Options{})

		result, _ := d.Download(context.Background(), request(0))
		result.Data[0] = 9
		if buf[0] != 1 {
			t.Error("mutating the result changed the backend's buffer")
		}
	})
}

func TestDownloadWeb(t *testing.T) {
	t.Run("single binary request", func(t *testing.T) {
		backend := tu.NewFakeBackend(transport.KindWeb, func(int, transport.Request) (*transport.Response, error) {
			return tu.BytesResponse(200, audio), nil
		})
		d, _ := newTestDownloader(backend, Options{})

		result, err := d.Download(context.Background(), request(3))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SizeBytes != len(audio) {
			t.Errorf("expected %d bytes, got %d", len(audio), result.SizeBytes)
		}
		if backend.CallCount() != 1 {
			t.Errorf("expected 1 call, got %d", backend.CallCount())
		}
	})

	t.Run("server error is fatal without retry", func(t *testing.T) {
		backend := tu.NewFakeBackend(transport.KindWeb, func(int, transport.Request) (*transport.Response, error) {
			return tu.BytesResponse(500, nil), nil
		})
		d, sleeper := newTestDownloader(backend, Options{})

		_, err := d.Download(context.Background(), request(3))
		de, ok := AsDownloadError(err)
		if !ok || !de.Fatal || de.StatusCode != 500 || de.Attempts != 1 {
			t.Fatalf("expected fatal 500 after one attempt, got %v", err)
		}
		if backend.CallCount() != 1 || len(sleeper.Delays) != 0 {
			t.Errorf("web path must not retry: %d calls, %d backoffs", backend.CallCount(), len(sleeper.Delays))
		}
	})

	t.Run("transport error is fatal", func(t *testing.T) {
		backend := tu.NewFakeBackend(transport.KindWeb, func(_ int, req transport.Request) (*transport.Response, error) {
			return nil, &transport.Error{Kind: transport.KindTimeout, Backend: transport.KindWeb, URL: req.URL}
		})
		d, _ := newTestDownloader(backend, Options{})

		_, err := d.Download(context.Background(), request(3))
		if !errors.Is(err, transport.ErrTimeout) {
			t.Fatalf("expected ErrTimeout in chain, got %v", err)
		}
	})
}

func TestDownloadValidation(t *testing.T) {
	backend := tu.NewFakeBackend(transport.KindWeb, nil)
	d, _ := newTestDownloader(backend, Options{})

	_, err := d.Download(context.Background(), DownloadRequest{})
	if !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}
