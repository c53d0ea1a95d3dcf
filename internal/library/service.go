package library

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/omf/internal/covers"
	"github.com/desertthunder/omf/internal/download"
	"github.com/desertthunder/omf/internal/models"
	"github.com/desertthunder/omf/internal/shared"
	"github.com/desertthunder/omf/internal/storage"
)

// TrackStore is the track index. It is satisfied by [*repositories.TrackRepository].
type TrackStore interface {
	models.Repository[*models.Track]
	Upsert(track *models.Track) error
	DeleteAll() (int64, error)
}

// CoverResolver turns a beatmapset into a usable cover location. It is satisfied by [*covers.Service].
type CoverResolver interface {
	Cover(ctx context.Context, beatmapsetID int, size covers.Size) (string, error)
}

// Options configures a [Service].
type Options struct {
	MusicDir string                   // backend directory holding audio files
	Request  download.DownloadRequest // retry budget and timeout for track downloads; URL is ignored
	Covers   CoverResolver            // optional; resolves covers for new tracks
	Logger   *log.Logger
}

// SyncReport summarises a [Service.Sync] run.
type SyncReport struct {
	Removed int             `json:"removed"`
	Added   []*models.Track `json:"added"`
}

// Service downloads tracks into the music directory and keeps the index in step with it.
type Service struct {
	fetcher  covers.Fetcher
	writer   *storage.Writer
	tracks   TrackStore
	covers   CoverResolver
	musicDir string
	template download.DownloadRequest
	logger   *log.Logger
}

// NewService creates a library Service.
func NewService(fetcher covers.Fetcher, writer *storage.Writer, tracks TrackStore, opts Options) *Service {
	tmpl := opts.Request
	if tmpl.Timeout <= 0 {
		tmpl = download.NewRequest("")
	}
	return &Service{
		fetcher:  fetcher,
		writer:   writer,
		tracks:   tracks,
		covers:   opts.Covers,
		musicDir: opts.MusicDir,
		template: tmpl,
		logger:   shared.WithLogger(opts.Logger, "component", "library"),
	}
}

// MusicDir returns the backend directory audio files are stored in.
func (s *Service) MusicDir() string { return s.musicDir }

// DownloadTrack fetches url, stores it in the music directory under the sanitized filename and indexes it.
// An existing file with the same name is replaced.
func (s *Service) DownloadTrack(ctx context.Context, url, filename string) (*models.Track, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}
	name := SanitizeFileName(strings.TrimSpace(filename))
	if name == "" {
		return nil, fmt.Errorf("%w: filename", shared.ErrMissingArgument)
	}

	logger := s.logger.With("file", name)

	req := s.template
	req.URL = url
	res, err := s.fetcher.Download(ctx, req)
	if err != nil {
		return nil, err
	}

	target := path.Join(s.musicDir, name)
	loc, err := s.writer.SaveBytes(ctx, res.Data, target)
	if err != nil {
		return nil, err
	}

	track := s.newTrack(name, loc)
	track.SetSizeBytes(int64(res.SizeBytes))
	if err := s.tracks.Upsert(track); err != nil {
		return nil, fmt.Errorf("failed to index track: %w", err)
	}

	logger.Info("track downloaded", "id", track.ID(), "bytes", res.SizeBytes)
	s.loadCovers(ctx, []*models.Track{track})
	return track, nil
}

// Sync drops index entries whose file is gone, then indexes audio files in the music directory that are not
// yet known. Covers are resolved for the new tracks when a [CoverResolver] is configured.
func (s *Service) Sync(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{Added: []*models.Track{}}

	removed, err := s.cleanup(ctx)
	if err != nil {
		return nil, err
	}
	report.Removed = removed

	existing, err := s.tracks.List(nil)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		known[t.FilePath()] = struct{}{}
	}

	files, err := s.writer.Backend().ListDirectory(ctx, s.musicDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan music directory: %w", err)
	}

	for _, f := range files {
		if f.IsDir || !IsAudioFile(f.Name) {
			continue
		}
		target := path.Join(s.musicDir, f.Name)
		if _, ok := known[target]; ok {
			continue
		}

		track := s.newTrack(f.Name, s.writer.Locate(target))
		track.SetSizeBytes(f.Size)
		if err := s.tracks.Upsert(track); err != nil {
			s.logger.Warn("failed to index file", "file", f.Name, "error", err)
			continue
		}
		report.Added = append(report.Added, track)
	}

	s.loadCovers(ctx, report.Added)
	s.logger.Info("library synced", "removed", report.Removed, "added", len(report.Added))
	return report, nil
}

// Delete removes a track's file and its index entry.
func (s *Service) Delete(ctx context.Context, trackID string) error {
	track, err := s.tracks.Get(trackID)
	if err != nil {
		return err
	}

	if err := s.writer.Backend().DeleteFile(ctx, track.FilePath()); err != nil {
		return &storage.WriteError{Kind: storage.BackendRejected, Path: track.FilePath(), Err: err}
	}
	if err := s.tracks.Delete(trackID); err != nil {
		return err
	}

	s.logger.Info("track deleted", "id", trackID, "file", track.FileName())
	return nil
}

// Tracks lists the index ordered by artist and title.
func (s *Service) Tracks() ([]*models.Track, error) {
	return s.tracks.List(nil)
}

// Search lists tracks whose title or artist contains query.
func (s *Service) Search(query string) ([]*models.Track, error) {
	return s.tracks.List(map[string]any{"query": query})
}

// Reset empties the index. Audio files are left in place and return on the next [Service.Sync].
func (s *Service) Reset() (int64, error) {
	n, err := s.tracks.DeleteAll()
	if err != nil {
		return 0, err
	}
	s.logger.Info("library reset", "removed", n)
	return n, nil
}

// cleanup deletes index entries whose file no longer exists.
func (s *Service) cleanup(ctx context.Context) (int, error) {
	tracks, err := s.tracks.List(nil)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, t := range tracks {
		ok, err := s.writer.Backend().Exists(ctx, t.FilePath())
		if err != nil {
			s.logger.Warn("failed to check file", "file", t.FilePath(), "error", err)
			continue
		}
		if ok {
			continue
		}
		if err := s.tracks.Delete(t.ID()); err != nil && !errors.Is(err, shared.ErrTrackNotFound) {
			return removed, err
		}
		s.logger.Debug("removed missing track", "file", t.FilePath())
		removed++
	}
	return removed, nil
}

func (s *Service) newTrack(name string, loc storage.Location) *models.Track {
	meta := MetadataFor(name)
	track := models.NewTrack(meta.BeatmapsetID, meta.Title, meta.Artist, name, loc.Path)
	track.SetAlbum(meta.Album)
	track.SetCoverURL(meta.CoverURL)
	track.SetURI(loc.URI)
	return track
}

// loadCovers replaces the remote cover URL of each beatmap track with its resolved location.
func (s *Service) loadCovers(ctx context.Context, tracks []*models.Track) {
	if s.covers == nil {
		return
	}

	byID := make(map[int][]*models.Track)
	ids := make([]int, 0, len(tracks))
	for _, t := range tracks {
		if t.BeatmapsetID() == 0 {
			continue
		}
		if _, ok := byID[t.BeatmapsetID()]; !ok {
			ids = append(ids, t.BeatmapsetID())
		}
		byID[t.BeatmapsetID()] = append(byID[t.BeatmapsetID()], t)
	}

	results := download.Batch(ctx, download.DefaultConcurrency, ids, func(ctx context.Context, id int) (string, error) {
		return s.covers.Cover(ctx, id, covers.DefaultSize)
	})

	for id, res := range results {
		if res.Err != nil {
			s.logger.Warn("failed to load cover", "beatmapset", id, "error", res.Err)
			continue
		}
		for _, t := range byID[id] {
			t.SetCoverURL(res.Value)
			if err := s.tracks.Update(t); err != nil {
				s.logger.Warn("failed to store cover", "track", t.ID(), "error", err)
			}
		}
	}
}
