package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/omf/internal/shared"
)

// Track is an audio file in the local library.
//
// BeatmapsetID is zero when the filename did not follow the beatmapset naming convention.
type Track struct {
	id           string
	beatmapsetID int
	title        string
	artist       string
	album        string
	fileName     string
	filePath     string
	uri          string
	coverURL     string
	sizeBytes    int64
	createdAt    time.Time
	updatedAt    time.Time
}

// NewTrack creates a Track; the ID is assigned when it is stored.
func NewTrack(beatmapsetID int, title, artist, fileName, filePath string) *Track {
	now := time.Now()
	return &Track{
		beatmapsetID: beatmapsetID,
		title:        title,
		artist:       artist,
		fileName:     fileName,
		filePath:     filePath,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (t *Track) ID() string           { return t.id }
func (t *Track) BeatmapsetID() int    { return t.beatmapsetID }
func (t *Track) Title() string        { return t.title }
func (t *Track) Artist() string       { return t.artist }
func (t *Track) Album() string        { return t.album }
func (t *Track) FileName() string     { return t.fileName }
func (t *Track) FilePath() string     { return t.filePath }
func (t *Track) URI() string          { return t.uri }
func (t *Track) CoverURL() string     { return t.coverURL }
func (t *Track) SizeBytes() int64     { return t.sizeBytes }
func (t *Track) CreatedAt() time.Time { return t.createdAt }
func (t *Track) UpdatedAt() time.Time { return t.updatedAt }

func (t *Track) SetID(id string)           { t.id = id }
func (t *Track) SetURI(uri string)         { t.uri = uri }
func (t *Track) SetAlbum(album string)     { t.album = album }
func (t *Track) SetCoverURL(url string)    { t.coverURL = url }
func (t *Track) SetSizeBytes(n int64)      { t.sizeBytes = n }
func (t *Track) SetCreatedAt(ts time.Time) { t.createdAt = ts }
func (t *Track) SetUpdatedAt(ts time.Time) { t.updatedAt = ts }
func (t *Track) SetMetadata(title, artist string) {
	t.title = title
	t.artist = artist
}

// DisplayTitle is "Artist - Title", or just the title when the artist is unknown.
func (t *Track) DisplayTitle() string {
	if t.artist == "" || t.artist == UnknownArtist {
		return t.title
	}
	return t.artist + " - " + t.title
}

// UnknownArtist is the artist recorded for files without artist information.
const UnknownArtist = "Unknown Artist"

// Validate implements [Model].
func (t *Track) Validate() error {
	switch {
	case strings.TrimSpace(t.title) == "":
		return fmt.Errorf("%w: track title is required", shared.ErrInvalidInput)
	case strings.TrimSpace(t.artist) == "":
		return fmt.Errorf("%w: track artist is required", shared.ErrInvalidInput)
	case strings.TrimSpace(t.fileName) == "":
		return fmt.Errorf("%w: track file name is required", shared.ErrInvalidInput)
	case t.beatmapsetID < 0:
		return fmt.Errorf("%w: beatmapset id must not be negative", shared.ErrInvalidInput)
	}
	return nil
}

type trackJSON struct {
	ID           string    `json:"id"`
	BeatmapsetID int       `json:"beatmapset_id,omitempty"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	Album        string    `json:"album,omitempty"`
	FileName     string    `json:"file_name"`
	FilePath     string    `json:"file_path"`
	URI          string    `json:"uri,omitempty"`
	CoverURL     string    `json:"cover_url,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

// MarshalJSON implements [json.Marshaler].
func (t *Track) MarshalJSON() ([]byte, error) {
	return json.Marshal(trackJSON{
		ID:           t.id,
		BeatmapsetID: t.beatmapsetID,
		Title:        t.title,
		Artist:       t.artist,
		Album:        t.album,
		FileName:     t.fileName,
		FilePath:     t.filePath,
		URI:          t.uri,
		CoverURL:     t.coverURL,
		SizeBytes:    t.sizeBytes,
		CreatedAt:    t.createdAt,
	})
}
