package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:    "swarmhost",
		Version: Version,
		Usage:   "Multi-instance scripted chat bot host",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "settings",
				Usage:   "Path to TOML settings file",
				Aliases: []string{"s"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (trace, debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (text or json)",
			},
			&cli.StringFlag{
				Name:  "log-output",
				Usage: "Log destination (stdout, stderr or a file path)",
			},
		},
		Commands: []*cli.Command{
			serverCmd,
			instanceCmd,
			literalCmd,
			mediaCmd,
			versionCmd,
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
