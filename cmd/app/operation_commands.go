package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/allisson/checkout/cmd/app/commands"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func getOperationCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "publish-outbox",
			Usage: "Run one outbox publish cycle",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := commands.NewContainer(ctx, version)
				if err != nil {
					return err
				}
				defer commands.CloseContainer(container)

				outbox, err := container.OutboxUseCase()
				if err != nil {
					return fmt.Errorf("failed to initialize outbox use case: %w", err)
				}

				return commands.RunPublishOutbox(
					ctx,
					outbox,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "outbox-stats",
			Usage: "Show the unpublished outbox backlog",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := commands.NewContainer(ctx, version)
				if err != nil {
					return err
				}
				defer commands.CloseContainer(container)

				outbox, err := container.OutboxUseCase()
				if err != nil {
					return fmt.Errorf("failed to initialize outbox use case: %w", err)
				}

				return commands.RunOutboxStats(ctx, outbox, commands.DefaultIO().Writer, cmd.String("format"))
			},
		},
		{
			Name:  "expire-reservations",
			Usage: "Release reservations whose hold has expired",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Value:   100,
					Usage:   "Maximum number of reservations to expire",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := commands.NewContainer(ctx, version)
				if err != nil {
					return err
				}
				defer commands.CloseContainer(container)

				reservations, err := container.ReservationUseCase()
				if err != nil {
					return fmt.Errorf("failed to initialize reservation use case: %w", err)
				}

				return commands.RunExpireReservations(
					ctx,
					reservations,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("limit")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "restock",
			Usage: "Add units to a product variant's stock",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "variant-id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Product variant ID (UUID)",
				},
				&cli.IntFlag{
					Name:     "quantity",
					Aliases:  []string{"q"},
					Required: true,
					Usage:    "Number of units to add",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := commands.NewContainer(ctx, version)
				if err != nil {
					return err
				}
				defer commands.CloseContainer(container)

				reservations, err := container.ReservationUseCase()
				if err != nil {
					return fmt.Errorf("failed to initialize reservation use case: %w", err)
				}

				return commands.RunRestock(
					ctx,
					reservations,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("variant-id"),
					int(cmd.Int("quantity")),
					cmd.String("format"),
				)
			},
		},
	}
}
