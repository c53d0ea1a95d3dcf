package library

import (
	"fmt"
	"html"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/omf/internal/covers"
	"github.com/desertthunder/omf/internal/models"
)

// BeatmapsetBaseURL is the public page for a beatmapset.
const BeatmapsetBaseURL = "https://osu.ppy.sh/beatmapsets"

// AudioExtensions are the file types picked up by [Service.Sync].
var AudioExtensions = []string{".mp3", ".wav", ".flac", ".ogg", ".m4a"}

var (
	extPattern      = regexp.MustCompile(`\.[^/.]+$`)
	beatmapPattern  = regexp.MustCompile(`^(\d+)-(.+)-(.+)$`)
	unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
)

// ParsedFileName is the metadata encoded in a beatmap audio file name.
type ParsedFileName struct {
	BeatmapsetID int    `json:"beatmapset_id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Extension    string `json:"extension"`
	FileName     string `json:"file_name"`
}

// DisplayTitle formats the parsed name as "title - artist".
func (p ParsedFileName) DisplayTitle() string {
	return DisplayTitle(p.Title, p.Artist)
}

// ParseFileName splits name into beatmapset ID, title and artist. The title match is greedy, so the artist
// is everything after the last hyphen. ok is false for names that do not follow the convention.
func ParseFileName(name string) (ParsedFileName, bool) {
	stem := extPattern.ReplaceAllString(name, "")
	ext := name[len(stem):]

	m := beatmapPattern.FindStringSubmatch(stem)
	if m == nil {
		return ParsedFileName{}, false
	}

	id, err := strconv.Atoi(m[1])
	if err != nil {
		return ParsedFileName{}, false
	}

	title, artist := unescape(m[2]), unescape(m[3])
	if title == "" || artist == "" {
		return ParsedFileName{}, false
	}

	return ParsedFileName{
		BeatmapsetID: id,
		Title:        title,
		Artist:       artist,
		Extension:    ext,
		FileName:     name,
	}, true
}

// IsBeatmapAudioFile reports whether name follows the beatmap naming convention.
func IsBeatmapAudioFile(name string) bool {
	_, ok := ParseFileName(name)
	return ok
}

// IsAudioFile reports whether name has one of [AudioExtensions], ignoring case.
func IsAudioFile(name string) bool {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return false
	}
	return slices.Contains(AudioExtensions, strings.ToLower(name[i:]))
}

func DisplayTitle(title, artist string) string {
	return fmt.Sprintf("%s - %s", title, artist)
}

// CoverURL returns the default-size cover for a beatmapset.
func CoverURL(beatmapsetID int) string {
	return covers.URL(beatmapsetID, covers.DefaultSize)
}

func BeatmapsetURL(beatmapsetID int) string {
	return fmt.Sprintf("%s/%d", BeatmapsetBaseURL, beatmapsetID)
}

// SanitizeFileName replaces every character outside [A-Za-z0-9.-] with an underscore.
func SanitizeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}

// Metadata is what the library knows about a file from its name alone.
type Metadata struct {
	BeatmapsetID int
	Title        string
	Artist       string
	Album        string
	CoverURL     string
}

// MetadataFor parses name, falling back to the bare name and [models.UnknownArtist].
func MetadataFor(name string) Metadata {
	if p, ok := ParseFileName(name); ok {
		return Metadata{
			BeatmapsetID: p.BeatmapsetID,
			Title:        p.Title,
			Artist:       p.Artist,
			Album:        fmt.Sprintf("osu! Beatmap #%d", p.BeatmapsetID),
			CoverURL:     CoverURL(p.BeatmapsetID),
		}
	}

	title := strings.ReplaceAll(extPattern.ReplaceAllString(name, ""), "_", " ")
	if strings.TrimSpace(title) == "" {
		title = name
	}
	return Metadata{Title: title, Artist: models.UnknownArtist}
}

func unescape(s string) string {
	return strings.TrimSpace(html.UnescapeString(strings.ReplaceAll(s, "_", " ")))
}
