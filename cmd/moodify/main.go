package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "moodify:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "moodify",
		Usage: "Build a weekly discovery playlist from your Spotify listening",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error"},
			&cli.StringFlag{Name: "client-id", Usage: "Spotify application client id"},
			&cli.StringFlag{Name: "client-secret", Usage: "Spotify application client secret"},
			&cli.StringFlag{Name: "refresh-token", Usage: "Spotify user refresh token"},
		},
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate this week's discovery playlist",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "tracks", Aliases: []string{"n"}, Usage: "number of tracks (default from config)"},
					&cli.StringFlag{Name: "name", Usage: "playlist name (default: dated name)"},
					&cli.BoolFlag{Name: "public", Usage: "make the playlist public"},
					&cli.BoolFlag{Name: "dry-run", Usage: "report the playlist without creating it"},
				},
				Action: generateAction,
			},
			{
				Name:   "auth",
				Usage:  "Authorize moodify against your Spotify account and cache the token",
				Action: authAction,
			},
			{
				Name:  "history",
				Usage: "List recently generated playlists",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Value: 5, Usage: "number of records to show"},
				},
				Action: historyAction,
			},
		},
	}
}
