package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/swarmhost/swarmhost/examples"
	"github.com/swarmhost/swarmhost/internal/fancy"
	"github.com/swarmhost/swarmhost/internal/store"
)

var instanceCmd = &cli.Command{
	Name:  "instance",
	Usage: "Manage deployed bot instances",
	Commands: []*cli.Command{
		{
			Name:  "deploy",
			Usage: "Register a bot instance or replace an existing one",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "name",
					Usage:    "Instance name",
					Aliases:  []string{"n"},
					Required: true,
				},
				&cli.StringFlag{
					Name:     "token",
					Usage:    "Platform bot token",
					Aliases:  []string{"t"},
					Required: true,
				},
				&cli.StringFlag{
					Name:    "script",
					Usage:   "Path to the bot script (defaults to the bundled welcome script)",
					Aliases: []string{"f"},
				},
			},
			Action: instanceDeployAction,
		},
		{
			Name:  "push",
			Usage: "Push a new script to a running instance and schedule its restart",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "name",
					Usage:    "Instance name",
					Aliases:  []string{"n"},
					Required: true,
				},
				&cli.StringFlag{
					Name:     "script",
					Usage:    "Path to the bot script",
					Aliases:  []string{"f"},
					Required: true,
				},
			},
			Action: instancePushAction,
		},
		{
			Name:   "list",
			Usage:  "List deployed instances",
			Action: instanceListAction,
		},
	},
}

func openStore(cmd *cli.Command) (*store.Store, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	if err := setupLogger(cmd, s); err != nil {
		return nil, err
	}
	return store.Open(s.DatabasePath)
}

func instanceDeployAction(ctx context.Context, cmd *cli.Command) error {
	script := examples.WelcomeScript
	if path := cmd.String("script"); path != "" {
		var err error
		script, err = os.ReadFile(path)
		if err != nil {
			return cli.Exit(fmt.Errorf("read script: %w", err), 1)
		}
	}

	st, err := openStore(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer st.Close()

	name := cmd.String("name")
	bot := store.NewBotInstance(name, cmd.String("token"), string(script))
	if err := st.UpsertBot(ctx, bot); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Instance %q deployed\n", name)
	return nil
}

func instancePushAction(ctx context.Context, cmd *cli.Command) error {
	script, err := os.ReadFile(cmd.String("script"))
	if err != nil {
		return cli.Exit(fmt.Errorf("read script: %w", err), 1)
	}

	st, err := openStore(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer st.Close()

	name := cmd.String("name")
	if err := st.PushScript(ctx, name, string(script)); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Instance %q updated, restart scheduled\n", name)
	return nil
}

func instanceListAction(ctx context.Context, cmd *cli.Command) error {
	st, err := openStore(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer st.Close()

	bots, err := st.Bots(ctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	root := fancy.Tree().Root(fancy.RootStyle.Render("instances"))
	for _, bot := range bots {
		status := fancy.OKStyle.Render("deployed")
		if bot.Restart {
			status = fancy.PendingStyle.Render("restart pending")
		}
		node := fancy.BranchNode(bot.Name, status)
		node.Child(fancy.InfoStyle.Render("created " + bot.CreatedAt.Format("2006-01-02 15:04:05")))
		node.Child(fancy.InfoStyle.Render(fmt.Sprintf("script %d bytes", len(bot.Script))))
		root.Child(node)
	}
	fmt.Println(root)
	return nil
}
