package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	inventoryDomain "github.com/allisson/checkout/internal/inventory/domain"
)

// Restocker adds units to a variant's total stock.
type Restocker interface {
	Restock(ctx context.Context, variantID uuid.UUID, qty int) (*inventoryDomain.Stock, error)
}

// RunRestock adds quantity units to the stock of variantID and prints the
// resulting levels.
func RunRestock(
	ctx context.Context,
	restocker Restocker,
	logger *slog.Logger,
	writer io.Writer,
	variantID string,
	quantity int,
	format string,
) error {
	id, err := uuid.Parse(variantID)
	if err != nil {
		return fmt.Errorf("invalid variant id: %w", err)
	}

	stock, err := restocker.Restock(ctx, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to restock variant: %w", err)
	}

	logger.Info("variant restocked",
		slog.String("variant_id", id.String()),
		slog.Int("quantity", quantity),
		slog.Int("total_stock", stock.TotalStock),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"variant_id":  stock.VariantID.String(),
			"total_stock": stock.TotalStock,
			"reserved":    stock.Reserved,
			"available":   stock.Available(),
		})
	}

	_, err = fmt.Fprintf(writer, "Variant %s: total %d, reserved %d, available %d\n",
		stock.VariantID, stock.TotalStock, stock.Reserved, stock.Available())
	return err
}
