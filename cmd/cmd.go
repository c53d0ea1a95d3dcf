// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// withJSON appends fresh --json and --pretty flags to flags.
func withJSON(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	)
}

// setupCommand initialises local state
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example configuration file to --config",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"}},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles osu! OAuth
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with osu!",
		Commands: []*cli.Command{
			{
				Name:   "url",
				Usage:  "Print the authorization URL",
				Action: r.AuthURL,
			},
			{
				Name:  "login",
				Usage: "Authorize in the browser and store the credential",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: 2 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:      "exchange",
				Usage:     "Exchange an authorization code copied from the redirect",
				Arguments: []cli.Argument{&cli.StringArg{Name: "code"}},
				Action:    r.AuthExchange,
			},
			{
				Name:   "refresh",
				Usage:  "Refresh the stored access token",
				Action: r.AuthRefresh,
			},
			{
				Name:   "status",
				Usage:  "Show the stored credential",
				Flags:  withJSON(),
				Action: r.AuthStatus,
			},
			{
				Name:   "me",
				Usage:  "Show the signed-in osu! profile",
				Flags:  withJSON(),
				Action: r.AuthMe,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored credential",
				Action: r.AuthLogout,
			},
		},
	}
}

// downloadCommand fetches binary files
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download one or more files into the library",
		ArgsUsage: "<url> [url...]",
		Flags: withJSON(
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "File name for a single download (defaults to the last URL path segment)",
			},
			&cli.BoolFlag{
				Name:    "track",
				Aliases: []string{"t"},
				Usage:   "Save into the music directory and add to the library index",
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "Retries after the first attempt (overrides config)",
				Value: -1,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-attempt timeout (overrides config)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Downloads in flight for multiple URLs",
				Value: 5,
			},
		),
		Action: r.Download,
	}
}

// coversCommand resolves beatmapset covers
func coversCommand(r *Runner) *cli.Command {
	sizeFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "size",
			Aliases: []string{"s"},
			Usage:   "Cover size (cover, card, list, slimcover)",
		}
	}

	return &cli.Command{
		Name:  "covers",
		Usage: "Beatmapset cover images",
		Commands: []*cli.Command{
			{
				Name:      "fetch",
				Usage:     "Download covers for beatmapset IDs",
				ArgsUsage: "<id> [id...]",
				Flags:     withJSON(sizeFlag()),
				Action:    r.CoversFetch,
			},
			{
				Name:      "url",
				Usage:     "Print the cover URL for a beatmapset",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{sizeFlag()},
				Action:    r.CoversURL,
			},
		},
	}
}

// libraryCommand manages the local library
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Local music library",
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Index new audio files and drop entries whose file is gone",
				Flags:  withJSON(),
				Action: r.LibrarySync,
			},
			{
				Name:  "list",
				Usage: "List indexed tracks",
				Flags: withJSON(
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Only tracks whose title or artist contains this text",
					},
				),
				Action: r.LibraryList,
			},
			{
				Name:      "delete",
				Usage:     "Delete a track and its file",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.LibraryDelete,
			},
			{
				Name:   "reset",
				Usage:  "Empty the index (files are kept)",
				Action: r.LibraryReset,
			},
			{
				Name:  "export",
				Usage: "Export the track list as csv, markdown, text or json",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, markdown, text, json)",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to this file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing output file",
					},
				},
				Action: r.LibraryExport,
			},
			{
				Name:      "parse",
				Usage:     "Show the metadata derived from a file name",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags:     withJSON(),
				Action:    r.LibraryParse,
			},
		},
	}
}
