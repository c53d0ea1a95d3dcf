package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/omf/internal/covers"
	"github.com/desertthunder/omf/internal/download"
	"github.com/desertthunder/omf/internal/library"
	"github.com/desertthunder/omf/internal/repositories"
	"github.com/desertthunder/omf/internal/services"
	"github.com/desertthunder/omf/internal/shared"
	"github.com/desertthunder/omf/internal/storage"
	"github.com/desertthunder/omf/internal/transport"
	"golang.org/x/time/rate"
)

// deps is the object graph behind one command invocation.
type deps struct {
	db         *sql.DB
	backend    transport.Backend
	downloader *download.Downloader
	writer     *storage.Writer
	tracks     *repositories.TrackRepository
	auth       *services.OsuAuthService
	session    *services.Session
	covers     *covers.Service
	library    *library.Service
}

func (d *deps) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (r *Runner) timeouts() transport.Timeouts {
	return transport.Timeouts{
		Connect: r.config.Transport.ConnectTimeout.Duration,
		Read:    r.config.Transport.ReadTimeout.Duration,
	}
}

// transport returns the injected backend or detects one from the configured preference.
func (r *Runner) transport() (transport.Backend, error) {
	if r.backend != nil {
		return r.backend, nil
	}

	pref, err := transport.ParsePreference(r.config.Transport.Backend)
	if err != nil {
		return nil, err
	}

	client := r.httpClient
	if client == nil {
		client = transport.NewHTTPClient(r.timeouts())
	}
	backend, err := transport.Detect(transport.NewHTTPBridge(client), pref, r.timeouts(), r.logger)
	if err != nil {
		return nil, err
	}
	r.backend = backend
	return backend, nil
}

// downloadRequest is the template for requests built from the [download] config section.
func (r *Runner) downloadRequest(url string) download.DownloadRequest {
	return download.DownloadRequest{
		URL:        url,
		MaxRetries: r.config.Download.MaxRetries,
		Timeout:    r.config.Download.Timeout.Duration,
	}
}

// open builds every service against the configured database and library root.
func (r *Runner) open() (*deps, error) {
	backend, err := r.transport()
	if err != nil {
		return nil, err
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &deps{db: db, backend: backend}
	if err := r.wire(d); err != nil {
		return nil, errors.Join(err, d.Close())
	}
	return d, nil
}

func (r *Runner) wire(d *deps) error {
	cfg := r.config

	local, err := storage.NewLocalBackend(cfg.Library.Root, storage.EncodingBase64)
	if err != nil {
		return err
	}
	d.writer = storage.NewWriter(local, r.logger)

	d.downloader = download.New(d.backend, download.Options{
		BaseDelay:         cfg.Download.BaseDelay.Duration,
		RetryClientErrors: cfg.Download.RetryClientErrors,
		SniffBinaryText:   cfg.Download.SniffBinaryText,
		Logger:            r.logger,
	})

	d.auth = services.NewOsuAuthService(d.backend, services.WithLogger(r.logger))
	d.session = services.NewSession(
		d.auth,
		repositories.NewCredentialRepository(d.db, repositories.ProviderOsu),
		services.ClientCredentials{
			ClientID:     cfg.Credentials.Osu.ClientID,
			ClientSecret: cfg.Credentials.Osu.ClientSecret,
			RedirectURI:  cfg.Credentials.Osu.RedirectURI,
		},
		r.logger,
	)

	var limiter *rate.Limiter
	if cfg.Covers.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Covers.RateLimit), 1)
	}
	d.covers = covers.NewService(d.downloader, d.writer, covers.Options{
		Dir:         cfg.Library.CoversDir,
		Concurrency: cfg.Covers.Concurrency,
		Limiter:     limiter,
		Request:     r.downloadRequest(""),
		Logger:      r.logger,
	})

	d.tracks = repositories.NewTrackRepository(d.db)
	d.library = library.NewService(d.downloader, d.writer, d.tracks, library.Options{
		MusicDir: cfg.Library.MusicDir,
		Request:  r.downloadRequest(""),
		Covers:   d.covers,
		Logger:   r.logger,
	})
	return nil
}
