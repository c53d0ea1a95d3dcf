package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/omf/internal/formatter"
	"github.com/desertthunder/omf/internal/library"
	"github.com/desertthunder/omf/internal/models"
	"github.com/desertthunder/omf/internal/shared"
	"github.com/urfave/cli/v3"
)

// LibrarySync reconciles the index with the music directory.
func (r *Runner) LibrarySync(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	report, err := d.library.Sync(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, cmd.Bool("pretty"))
	}

	for _, t := range report.Added {
		r.writePlain("+ %s\n", t.DisplayTitle())
	}
	return r.writePlain("✓ Sync complete: %d added, %d removed\n", len(report.Added), report.Removed)
}

// LibraryList prints the indexed tracks.
func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	var tracks []*models.Track
	if q := strings.TrimSpace(cmd.String("query")); q != "" {
		tracks, err = d.library.Search(q)
	} else {
		tracks, err = d.library.Tracks()
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	if len(tracks) == 0 {
		return r.writePlain("No tracks. Run 'omf library sync' or 'omf download --track <url>'.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Library (%d tracks)", len(tracks)))
	for i, t := range tracks {
		r.writePlain("%d. %s\n", i+1, t.DisplayTitle())
		r.writePlain("   ID: %s\n", t.ID())
		if t.BeatmapsetID() > 0 {
			r.writePlain("   Beatmapset: %s\n", library.BeatmapsetURL(t.BeatmapsetID()))
		}
		r.writePlain("   File: %s\n", t.FilePath())
	}
	return nil
}

// LibraryDelete removes a track and its file.
func (r *Runner) LibraryDelete(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.library.Delete(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted %s\n", id)
}

// LibraryReset empties the index.
func (r *Runner) LibraryReset(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	n, err := d.library.Reset()
	if err != nil {
		return err
	}
	return r.writePlain("✓ Removed %d tracks from the index\n", n)
}

// LibraryExport renders the index in the requested format.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	tracks, err := d.library.Tracks()
	if err != nil {
		return err
	}

	data, err := formatter.Export(format, "osu! music library", tracks)
	if err != nil {
		return err
	}

	if out := cmd.String("output"); out != "" {
		if err := formatter.WriteExport(data, out, cmd.Bool("force")); err != nil {
			return err
		}
		return r.writePlain("✓ Exported %d tracks to %s\n", len(tracks), out)
	}

	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

type parseReport struct {
	FileName     string `json:"file_name"`
	Beatmap      bool   `json:"beatmap"`
	Audio        bool   `json:"audio"`
	BeatmapsetID int    `json:"beatmapset_id,omitempty"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Album        string `json:"album,omitempty"`
	CoverURL     string `json:"cover_url,omitempty"`
	Beatmapset   string `json:"beatmapset_url,omitempty"`
}

// LibraryParse shows what the library would record for a file name.
func (r *Runner) LibraryParse(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: file name", shared.ErrMissingArgument)
	}

	meta := library.MetadataFor(name)
	rep := parseReport{
		FileName:     name,
		Beatmap:      library.IsBeatmapAudioFile(name),
		Audio:        library.IsAudioFile(name),
		BeatmapsetID: meta.BeatmapsetID,
		Title:        meta.Title,
		Artist:       meta.Artist,
		Album:        meta.Album,
		CoverURL:     meta.CoverURL,
	}
	if rep.Beatmap {
		rep.Beatmapset = library.BeatmapsetURL(meta.BeatmapsetID)
	}

	if cmd.Bool("json") {
		return r.writeJSON(rep, cmd.Bool("pretty"))
	}

	r.writePlain("Title: %s\n", rep.Title)
	r.writePlain("Artist: %s\n", rep.Artist)
	if rep.Beatmap {
		r.writePlain("Beatmapset: %d (%s)\n", rep.BeatmapsetID, rep.Beatmapset)
		r.writePlain("Cover: %s\n", rep.CoverURL)
	}
	r.writePlain("Audio file: %v\n", rep.Audio)
	return nil
}

func isNotAuthenticated(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated)
}
