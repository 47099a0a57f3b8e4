package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	likebank "github.com/likebank/likebank"
	"github.com/likebank/likebank/internal/api"
	"github.com/likebank/likebank/internal/clock"
	"github.com/likebank/likebank/internal/config"
	"github.com/likebank/likebank/internal/engine"
	"github.com/likebank/likebank/internal/instagram"
	"github.com/likebank/likebank/internal/storage/postgres"
	"github.com/likebank/likebank/internal/sweeper"
)

func main() {
	root := &cobra.Command{
		Use:   "likebank",
		Short: "Coin-earning engagement exchange backend",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	root.AddCommand(apiCmd())
	root.AddCommand(sweepCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func apiCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := setup()
			if err != nil {
				return err
			}
			defer app.store.Close()

			if port == 0 {
				port = app.cfg.Port
			}
			server := api.NewServer(app.engine, app.cfg, app.log)
			return server.Run(ctx, port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (defaults to PORT)")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the assignment-expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := setup()
			if err != nil {
				return err
			}
			defer app.store.Close()

			app.log.Info().Dur("interval", app.cfg.SweepInterval).Msg("sweeper starting")
			err = sweeper.New(app.engine, app.cfg.SweepInterval, app.log).Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

type app struct {
	cfg    *config.Config
	store  *postgres.Store
	engine *engine.Engine
	log    zerolog.Logger
}

func setup() (context.Context, *app, error) {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	_ = stop // released on process exit

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	migrationsFS, err := fs.Sub(likebank.MigrationsFS, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	if err := postgres.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		return nil, nil, err
	}

	store := postgres.New(pool)
	adapter := instagram.NewClient(cfg.InstagramBaseURL, cfg.InstagramSessionID, cfg.InstagramTimeout)
	eng := engine.New(store, adapter, clock.System{}, engine.Config{
		UnitCost:             cfg.UnitCost,
		RewardAmount:         cfg.RewardAmount,
		AssignmentWindow:     cfg.AssignmentWindow,
		MaxRetries:           cfg.MaxRetries,
		MaxCandidatesPerTake: cfg.MaxCandidatesPerTake,
		ClaimAttempts:        config.ClaimAttempts,
		TxAttempts:           config.TxAttempts,
	})

	return ctx, &app{cfg: cfg, store: store, engine: eng, log: logger}, nil
}
