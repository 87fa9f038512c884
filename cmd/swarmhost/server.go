package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robbyt/go-supervisor/supervisor"
	"github.com/urfave/cli/v3"

	"github.com/swarmhost/swarmhost/internal/server/runnables/botpool"
	"github.com/swarmhost/swarmhost/internal/store"
	"github.com/swarmhost/swarmhost/internal/transport"
)

var serverCmd = &cli.Command{
	Name:  "server",
	Usage: "Run the bot host",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if err := setupLogger(cmd, s); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		logger := slog.Default()

		st, err := store.Open(s.DatabasePath,
			store.WithLogger(logger.With("component", "store")),
		)
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to open store: %w", err), 1)
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Error("Failed to close store", "error", err)
			}
		}()

		pool, err := botpool.NewRunner(st, transport.NewTelegram,
			botpool.WithLogger(logger.With("component", "botpool")),
			botpool.WithInterval(s.Pool.ReconcileInterval.Std()),
			botpool.WithIdlePoll(s.Pool.IdlePoll.Std()),
			botpool.WithContext(ctx),
		)
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to create bot pool: %w", err), 1)
		}

		super, err := supervisor.New(
			supervisor.WithRunnables(pool),
			supervisor.WithLogHandler(logger.Handler()),
			supervisor.WithContext(ctx),
		)
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to create supervisor: %w", err), 1)
		}
		if err := super.Run(); err != nil {
			return cli.Exit(fmt.Errorf("failed to run host: %w", err), 1)
		}

		logger.Info("Host shutdown complete")
		return nil
	},
}
