package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/checkout/cmd/app/commands"
	"github.com/allisson/checkout/internal/app"
	"github.com/allisson/checkout/internal/config"
	"github.com/allisson/checkout/internal/keeper"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP API, outbox publisher and reservation sweeper",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "worker",
			Usage: "Run the outbox publisher and reservation sweeper without the HTTP API",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunWorker(ctx, version)
			},
		},
		{
			Name:  "consume",
			Usage: "Consume bus messages and dispatch them to the inventory and order handlers",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunConsume(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if err := keeper.ResolveConfig(ctx, cfg); err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "seal-secret",
			Usage: "Encrypt a configuration value with SECRETS_KEEPER_URI",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "value",
					Aliases:  []string{"v"},
					Required: true,
					Usage:    "Plaintext value to seal",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if cfg.SecretsKeeperURI == "" {
					return keeper.ErrKeeperNotConfigured
				}

				k, err := keeper.Open(ctx, cfg.SecretsKeeperURI)
				if err != nil {
					return err
				}
				defer func() { _ = k.Close() }()

				return commands.RunSealSecret(ctx, k, commands.DefaultIO().Writer, cmd.String("value"))
			},
		},
	}
}
