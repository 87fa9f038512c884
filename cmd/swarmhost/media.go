package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

var mediaCmd = &cli.Command{
	Name:  "media",
	Usage: "Manage media attached to literals",
	Commands: []*cli.Command{
		{
			Name:  "add",
			Usage: "Attach an uploaded media file to a literal key",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "instance",
					Usage:    "Instance name",
					Aliases:  []string{"n"},
					Required: true,
				},
				&cli.StringFlag{
					Name:     "key",
					Usage:    "Literal key",
					Aliases:  []string{"k"},
					Required: true,
				},
				&cli.StringFlag{
					Name:  "kind",
					Usage: "Media kind (photo or video)",
					Value: "photo",
				},
				&cli.StringFlag{
					Name:     "file-id",
					Usage:    "Platform file id of the uploaded media",
					Required: true,
				},
			},
			Action: mediaAddAction,
		},
		{
			Name:  "clear",
			Usage: "Remove every attachment of a literal key",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "instance",
					Usage:    "Instance name",
					Aliases:  []string{"n"},
					Required: true,
				},
				&cli.StringFlag{
					Name:     "key",
					Usage:    "Literal key",
					Aliases:  []string{"k"},
					Required: true,
				},
			},
			Action: mediaClearAction,
		},
	},
}

func mediaAddAction(ctx context.Context, cmd *cli.Command) error {
	kind := cmd.String("kind")
	if kind != "photo" && kind != "video" {
		return cli.Exit(fmt.Sprintf("unknown media kind %q (want photo or video)", kind), 1)
	}

	st, err := openStore(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer st.Close()

	inst := st.Instance(cmd.String("instance"))
	key := cmd.String("key")
	if err := inst.AddMedia(ctx, key, kind, cmd.String("file-id")); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Printf("Media attached to %q for %q\n", key, inst.Name())
	return nil
}

func mediaClearAction(ctx context.Context, cmd *cli.Command) error {
	st, err := openStore(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer st.Close()

	inst := st.Instance(cmd.String("instance"))
	key := cmd.String("key")
	if err := inst.ClearMedia(ctx, key); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Printf("Media cleared from %q for %q\n", key, inst.Name())
	return nil
}
