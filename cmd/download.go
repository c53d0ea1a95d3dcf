package main

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/desertthunder/omf/internal/download"
	"github.com/desertthunder/omf/internal/library"
	"github.com/desertthunder/omf/internal/shared"
	"github.com/urfave/cli/v3"
)

type downloadReport struct {
	URL      string `json:"url"`
	Path     string `json:"path,omitempty"`
	URI      string `json:"uri,omitempty"`
	TrackID  string `json:"track_id,omitempty"`
	Bytes    int64  `json:"bytes"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Download fetches each URL argument and stores it in the library.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	urls := cmd.Args().Slice()
	if len(urls) == 0 {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}
	name := cmd.String("name")
	if name != "" && len(urls) > 1 {
		return fmt.Errorf("%w: --name can only be used with a single url", shared.ErrInvalidArgument)
	}

	if retries := int(cmd.Int("retries")); retries >= 0 {
		r.config.Download.MaxRetries = retries
	}
	if timeout := cmd.Duration("timeout"); timeout > 0 {
		r.config.Download.Timeout = shared.Duration{Duration: timeout}
	}

	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	names := make(map[string]string, len(urls))
	for _, u := range urls {
		n := name
		if n == "" {
			n = fileNameFromURL(u)
		}
		names[u] = n
	}

	start := time.Now()
	var reports []downloadReport
	if cmd.Bool("track") {
		reports = r.downloadTracks(ctx, d, urls, names, int(cmd.Int("concurrency")))
	} else {
		reports = r.downloadFiles(ctx, d, urls, names, int(cmd.Int("concurrency")))
	}

	failed := 0
	for _, rep := range reports {
		if rep.Error != "" {
			failed++
		}
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(reports, cmd.Bool("pretty")); err != nil {
			return err
		}
	} else {
		for _, rep := range reports {
			if rep.Error != "" {
				r.writePlain("✗ %s\n  %s\n", rep.URL, rep.Error)
				continue
			}
			r.writePlain("✓ %s\n  → %s (%d bytes)\n", rep.URL, rep.Path, rep.Bytes)
		}
		r.writePlainln("%d/%d downloaded in %s", len(reports)-failed, len(reports), time.Since(start).Round(time.Millisecond))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d downloads failed", shared.ErrDownloadFailed, failed, len(reports))
	}
	return nil
}

func (r *Runner) downloadFiles(ctx context.Context, d *deps, urls []string, names map[string]string, limit int) []downloadReport {
	reqs := make([]download.DownloadRequest, 0, len(urls))
	for _, u := range urls {
		reqs = append(reqs, r.downloadRequest(u))
	}

	results := d.downloader.DownloadAll(ctx, reqs, limit)

	reports := make([]downloadReport, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true

		rep := downloadReport{URL: u}
		res := results[u]
		if res.Err != nil {
			rep.Error = res.Err.Error()
			if de, ok := download.AsDownloadError(res.Err); ok {
				rep.Attempts = de.Attempts
			}
			reports = append(reports, rep)
			continue
		}

		loc, err := d.writer.SaveBytes(ctx, res.Value.Data, names[u])
		if err != nil {
			rep.Error = err.Error()
		} else {
			rep.Path, rep.URI, rep.Bytes = loc.Path, loc.URI, int64(res.Value.SizeBytes)
		}
		reports = append(reports, rep)
	}
	return reports
}

func (r *Runner) downloadTracks(ctx context.Context, d *deps, urls []string, names map[string]string, limit int) []downloadReport {
	results := download.Batch(ctx, limit, urls, func(ctx context.Context, u string) (downloadReport, error) {
		track, err := d.library.DownloadTrack(ctx, u, names[u])
		if err != nil {
			return downloadReport{}, err
		}
		return downloadReport{URL: u, Path: track.FilePath(), URI: track.URI(), TrackID: track.ID(), Bytes: track.SizeBytes()}, nil
	})

	reports := make([]downloadReport, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true

		res := results[u]
		if res.Err != nil {
			rep := downloadReport{URL: u, Error: res.Err.Error()}
			if de, ok := download.AsDownloadError(res.Err); ok {
				rep.Attempts = de.Attempts
			}
			reports = append(reports, rep)
			continue
		}
		reports = append(reports, res.Value)
	}
	return reports
}

// fileNameFromURL returns the sanitized last path segment of raw, or "download" when it has none.
func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "download"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || strings.TrimSpace(base) == "" {
		return "download"
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return library.SanitizeFileName(base)
}
