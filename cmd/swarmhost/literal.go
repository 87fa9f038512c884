package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

var literalCmd = &cli.Command{
	Name:  "literal",
	Usage: "Manage the display texts referenced by bot scripts",
	Commands: []*cli.Command{
		{
			Name:  "set",
			Usage: "Set the display text for a literal key",
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
					Name:     "value",
					Usage:    "Display text",
					Aliases:  []string{"v"},
					Required: true,
				},
				&cli.StringFlag{
					Name:  "variant",
					Usage: "Variant name for per-variant text (for example a language code)",
				},
			},
			Action: literalSetAction,
		},
	},
}

func literalSetAction(ctx context.Context, cmd *cli.Command) error {
	st, err := openStore(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer st.Close()

	inst := st.Instance(cmd.String("instance"))
	key := cmd.String("key")
	value := cmd.String("value")

	if variant := cmd.String("variant"); variant != "" {
		if err := inst.SetLiteralVariant(ctx, key, variant, value); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		fmt.Printf("Literal %q (%s) set for %q\n", key, variant, inst.Name())
		return nil
	}
	if err := inst.SetLiteral(ctx, key, value); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Printf("Literal %q set for %q\n", key, inst.Name())
	return nil
}
