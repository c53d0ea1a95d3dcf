package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/omf/internal/covers"
	"github.com/desertthunder/omf/internal/shared"
	"github.com/urfave/cli/v3"
)

type coverReport struct {
	BeatmapsetID int         `json:"beatmapset_id"`
	Size         covers.Size `json:"size"`
	Location     string      `json:"location,omitempty"`
	Source       string      `json:"source"`
}

// CoversFetch downloads the covers for every ID argument.
func (r *Runner) CoversFetch(ctx context.Context, cmd *cli.Command) error {
	ids, err := parseIDs(cmd.Args().Slice())
	if err != nil {
		return err
	}
	size, err := r.coverSize(cmd)
	if err != nil {
		return err
	}

	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	reqs := make([]covers.Request, 0, len(ids))
	for _, id := range ids {
		reqs = append(reqs, covers.Request{BeatmapsetID: id, Size: size})
	}
	locations := d.covers.Covers(ctx, reqs)

	reports := make([]coverReport, 0, len(reqs))
	for _, req := range reqs {
		reports = append(reports, coverReport{
			BeatmapsetID: req.BeatmapsetID,
			Size:         req.Size,
			Location:     locations[req],
			Source:       covers.URL(req.BeatmapsetID, req.Size),
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(reports, cmd.Bool("pretty"))
	}
	for _, rep := range reports {
		if rep.Location == "" {
			r.writePlain("✗ %d: failed\n", rep.BeatmapsetID)
			continue
		}
		r.writePlain("✓ %d → %s\n", rep.BeatmapsetID, rep.Location)
	}
	return nil
}

// CoversURL prints the asset URL of a cover without downloading it.
func (r *Runner) CoversURL(ctx context.Context, cmd *cli.Command) error {
	ids, err := parseIDs([]string{cmd.StringArg("id")})
	if err != nil {
		return err
	}
	size, err := r.coverSize(cmd)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", covers.URL(ids[0], size))
}

func (r *Runner) coverSize(cmd *cli.Command) (covers.Size, error) {
	s := cmd.String("size")
	if s == "" {
		s = r.config.Covers.Size
	}
	return covers.ParseSize(s)
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		if a == "" {
			continue
		}
		id, err := strconv.Atoi(a)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: beatmapset id %q", shared.ErrInvalidArgument, a)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: beatmapset id", shared.ErrMissingArgument)
	}
	return ids, nil
}
