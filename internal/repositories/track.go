package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/omf/internal/models"
	"github.com/desertthunder/omf/internal/shared"
)

// TrackRepository implements models.Repository[*models.Track] for the library index.
type TrackRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Track] = (*TrackRepository)(nil)

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

const trackColumns = `id, beatmapset_id, title, artist, album, file_name, file_path, uri, cover_url, size_bytes, created_at, updated_at`

// Create inserts a new [models.Track] with a generated ID
func (r *TrackRepository) Create(track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()

	query := `INSERT INTO tracks (` + trackColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		id,
		track.BeatmapsetID(),
		track.Title(),
		track.Artist(),
		track.Album(),
		track.FileName(),
		track.FilePath(),
		track.URI(),
		track.CoverURL(),
		track.SizeBytes(),
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	track.SetID(id)
	return nil
}

// Upsert stores track, replacing any existing record for the same file name. The stored ID is kept.
func (r *TrackRepository) Upsert(track *models.Track) error {
	existing, err := r.GetByFileName(track.FileName())
	switch {
	case err == nil:
		track.SetID(existing.ID())
		track.SetCreatedAt(existing.CreatedAt())
		return r.Update(track)
	case isTrackNotFound(err):
		return r.Create(track)
	default:
		return err
	}
}

// Get retrieves a track by ID
func (r *TrackRepository) Get(id string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// GetByFileName retrieves a track by its file name
func (r *TrackRepository) GetByFileName(fileName string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE file_name = ?`
	return r.scan(r.db.QueryRow(query, fileName))
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	query := `
		UPDATE tracks
		SET beatmapset_id = ?, title = ?, artist = ?, album = ?, file_name = ?, file_path = ?, uri = ?, cover_url = ?, size_bytes = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		track.BeatmapsetID(),
		track.Title(),
		track.Artist(),
		track.Album(),
		track.FileName(),
		track.FilePath(),
		track.URI(),
		track.CoverURL(),
		track.SizeBytes(),
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	return rowsAffected(result, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, track.ID()))
}

// Delete removes a track by ID
func (r *TrackRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM tracks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return rowsAffected(result, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id))
}

// DeleteAll removes every track and returns how many were removed
func (r *TrackRepository) DeleteAll() (int64, error) {
	result, err := r.db.Exec("DELETE FROM tracks")
	if err != nil {
		return 0, fmt.Errorf("failed to delete tracks: %w", err)
	}
	return result.RowsAffected()
}

// List retrieves all tracks matching the given criteria, ordered by artist then title.
//
// Supported criteria: "beatmapset_id" (int), "artist" (string), "query" (string, matched against title and artist).
func (r *TrackRepository) List(criteria map[string]any) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE 1 = 1`
	args := []any{}

	if id, ok := criteria["beatmapset_id"].(int); ok && id > 0 {
		query += " AND beatmapset_id = ?"
		args = append(args, id)
	}

	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		query += " AND artist = ?"
		args = append(args, artist)
	}

	if q, ok := criteria["query"].(string); ok && q != "" {
		query += " AND (title LIKE ? OR artist LIKE ?)"
		like := "%" + q + "%"
		args = append(args, like, like)
	}

	query += " ORDER BY artist COLLATE NOCASE ASC, title COLLATE NOCASE ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := []*models.Track{}
	for rows.Next() {
		track, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one row into a [models.Track]
func (r *TrackRepository) scan(row scanner) (*models.Track, error) {
	var (
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
	)

	err := row.Scan(&id, &beatmapsetID, &title, &artist, &album, &fileName, &filePath, &uri, &coverURL, &sizeBytes, &createdAt, &updatedAt)
	if isNoRows(err) {
		return nil, shared.ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	track := models.NewTrack(beatmapsetID, title, artist, fileName, filePath)
	track.SetID(id)
	track.SetAlbum(album)
	track.SetURI(uri)
	track.SetCoverURL(coverURL)
	track.SetSizeBytes(sizeBytes)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	return track, nil
}

func isTrackNotFound(err error) bool {
	return errors.Is(err, shared.ErrTrackNotFound)
}
