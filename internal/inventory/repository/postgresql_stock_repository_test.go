package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/inventory/domain"
	"github.com/allisson/checkout/internal/testutil"
)

// tryReserveSQL is the guard of the conditional update: the row only changes
// when the remaining capacity covers the requested quantity.
const tryReserveSQL = `WHERE variant_id = $3 AND total_stock - reserved >= $1`

func TestPostgreSQLStockRepository_TryReserve(t *testing.T) {
	variantID := uuid.Must(uuid.NewV7())

	t.Run("capacity available", func(t *testing.T) {
		db, mock := testutil.NewSQLMock(t)
		repo := NewPostgreSQLStockRepository(db)

		mock.ExpectExec(testutil.Query(tryReserveSQL)).
			WithArgs(3, sqlmock.AnyArg(), variantID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.TryReserve(context.Background(), variantID, 3)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("insufficient capacity updates nothing", func(t *testing.T) {
		db, mock := testutil.NewSQLMock(t)
		repo := NewPostgreSQLStockRepository(db)

		mock.ExpectExec(testutil.Query(tryReserveSQL)).
			WithArgs(3, sqlmock.AnyArg(), variantID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.TryReserve(context.Background(), variantID, 3)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("database error", func(t *testing.T) {
		db, mock := testutil.NewSQLMock(t)
		repo := NewPostgreSQLStockRepository(db)

		mock.ExpectExec(testutil.Query(tryReserveSQL)).WillReturnError(errors.New("db down"))

		ok, err := repo.TryReserve(context.Background(), variantID, 3)
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestPostgreSQLStockRepository_ReleaseAndCommit(t *testing.T) {
	variantID := uuid.Must(uuid.NewV7())
	db, mock := testutil.NewSQLMock(t)
	repo := NewPostgreSQLStockRepository(db)

	mock.ExpectExec(testutil.Query("SET reserved = reserved - $1, updated_at = $2")).
		WithArgs(2, sqlmock.AnyArg(), variantID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(testutil.Query("SET total_stock = total_stock - $1, reserved = reserved - $1")).
		WithArgs(2, sqlmock.AnyArg(), variantID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(testutil.Query("SET reserved = reserved - $1, updated_at = $2")).
		WithArgs(9, sqlmock.AnyArg(), variantID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.ReleaseReserved(context.Background(), variantID, 2))
	assert.NoError(t, repo.CommitReserved(context.Background(), variantID, 2))

	err := repo.ReleaseReserved(context.Background(), variantID, 9)
	assert.ErrorIs(t, err, domain.ErrStockNotReserved)
	assert.ErrorIs(t, err, apperrors.ErrDomainState)
}

func TestPostgreSQLStockRepository_Restock(t *testing.T) {
	variantID := uuid.Must(uuid.NewV7())
	db, mock := testutil.NewSQLMock(t)
	repo := NewPostgreSQLStockRepository(db)

	mock.ExpectExec(testutil.Query("ON CONFLICT (variant_id) DO UPDATE")).
		WithArgs(variantID, 5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Restock(context.Background(), variantID, 5))
}

func TestPostgreSQLStockRepository_Get(t *testing.T) {
	variantID := uuid.Must(uuid.NewV7())
	updatedAt := time.Now().UTC()
	db, mock := testutil.NewSQLMock(t)
	repo := NewPostgreSQLStockRepository(db)

	mock.ExpectQuery(testutil.Query("FROM inventory_stock WHERE variant_id = $1")).
		WithArgs(variantID).
		WillReturnRows(sqlmock.NewRows([]string{"variant_id", "total_stock", "reserved", "updated_at"}).
			AddRow(variantID.String(), 5, 3, updatedAt))
	mock.ExpectQuery(testutil.Query("FROM inventory_stock WHERE variant_id = $1")).
		WithArgs(variantID).
		WillReturnRows(sqlmock.NewRows([]string{"variant_id", "total_stock", "reserved", "updated_at"}))

	stock, err := repo.Get(context.Background(), variantID)
	require.NoError(t, err)
	assert.Equal(t, variantID, stock.VariantID)
	assert.Equal(t, 2, stock.Available())

	_, err = repo.Get(context.Background(), variantID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMySQLStockRepository_TryReserve(t *testing.T) {
	variantID := uuid.Must(uuid.NewV7())
	id, err := variantID.MarshalBinary()
	require.NoError(t, err)

	db, mock := testutil.NewSQLMock(t)
	repo := NewMySQLStockRepository(db)

	mock.ExpectExec(testutil.Query("WHERE variant_id = ? AND total_stock - reserved >= ?")).
		WithArgs(3, sqlmock.AnyArg(), id, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(testutil.Query("WHERE variant_id = ? AND total_stock - reserved >= ?")).
		WithArgs(3, sqlmock.AnyArg(), id, 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.TryReserve(context.Background(), variantID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TryReserve(context.Background(), variantID, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMySQLStockRepository_CommitAndRestock(t *testing.T) {
	variantID := uuid.Must(uuid.NewV7())
	id, err := variantID.MarshalBinary()
	require.NoError(t, err)

	db, mock := testutil.NewSQLMock(t)
	repo := NewMySQLStockRepository(db)

	mock.ExpectExec(testutil.Query("SET total_stock = total_stock - ?, reserved = reserved - ?")).
		WithArgs(2, 2, sqlmock.AnyArg(), id, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(testutil.Query("ON DUPLICATE KEY UPDATE")).
		WithArgs(id, 10, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.CommitReserved(context.Background(), variantID, 2))
	assert.NoError(t, repo.Restock(context.Background(), variantID, 10))
}
