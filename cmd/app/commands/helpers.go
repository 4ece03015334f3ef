// Package commands contains CLI command implementations for the application.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"

	"github.com/allisson/checkout/internal/app"
	"github.com/allisson/checkout/internal/config"
	"github.com/allisson/checkout/internal/keeper"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// NewContainer loads configuration, opens any keeper: sealed values and
// installs tracing. The caller owns the returned container and must shut it down.
func NewContainer(ctx context.Context, version string) (*app.Container, error) {
	cfg := config.Load()
	if err := keeper.ResolveConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to resolve sealed configuration: %w", err)
	}

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg).WithVersion(version)
	if err := container.SetupTracing(ctx); err != nil {
		closeContainer(container, container.Logger())
		return nil, fmt.Errorf("failed to setup tracing: %w", err)
	}
	return container, nil
}

// CloseContainer shuts the container down and logs any error.
func CloseContainer(container *app.Container) {
	closeContainer(container, container.Logger())
}

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(migrate *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := migrate.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonBytes))
	return err
}
