// package formatter exports library tracks to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/omf/internal/library"
	"github.com/desertthunder/omf/internal/models"
	"github.com/desertthunder/omf/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name, case-insensitively. "md" and "txt" are aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

// Export renders tracks in format f. title heads the Markdown and text outputs.
func Export(f Format, title string, tracks []*models.Track) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportToCSV(tracks)
	case FormatMarkdown:
		return ExportToMarkdown(title, tracks)
	case FormatText:
		return ExportToText(title, tracks)
	case FormatJSON:
		return shared.MarshalJSON(tracks, true)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, f)
	}
}

// ExportToCSV writes one row per track with columns: ID, Beatmapset, Title, Artist, Album, File, Size
func ExportToCSV(tracks []*models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Beatmapset", "Title", "Artist", "Album", "File", "Size"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		beatmapset := ""
		if track.BeatmapsetID() > 0 {
			beatmapset = strconv.Itoa(track.BeatmapsetID())
		}
		record := []string{
			track.ID(),
			beatmapset,
			track.Title(),
			track.Artist(),
			track.Album(),
			track.FileName(),
			strconv.FormatInt(track.SizeBytes(), 10),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a numbered track list, linking covers and beatmapsets when known
func ExportToMarkdown(title string, tracks []*models.Track) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(tracks)))
	buf.WriteString("## Tracks\n\n")

	for i, track := range tracks {
		albumPart := ""
		if track.Album() != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album())
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s", i+1, track.Artist(), track.Title(), albumPart))
		if id := track.BeatmapsetID(); id > 0 {
			buf.WriteString(fmt.Sprintf(" [#%d](%s)", id, library.BeatmapsetURL(id)))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText renders a plain numbered track list
func ExportToText(title string, tracks []*models.Track) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s\n", title))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(tracks)))

	for i, track := range tracks {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, track.DisplayTitle()))
	}

	return buf.Bytes(), nil
}

// WriteExport writes data to path, refusing to replace an existing file unless force is set.
func WriteExport(data []byte, path string, force bool) error {
	if path == "" {
		return fmt.Errorf("%w: output path", shared.ErrMissingArgument)
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s already exists", shared.ErrInvalidArgument, path)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
