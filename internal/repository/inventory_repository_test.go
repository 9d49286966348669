package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averon/venue-reservation/internal/model"
)

func TestInventoryReleaseRestocksHeldAndCommitted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, product_id, quantity, status FROM inventory_holds").
		WithArgs(uint64(7), model.HoldHeld, model.HoldCommitted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "quantity", "status"}).
			AddRow(1, 10, 2, string(model.HoldHeld)).
			AddRow(2, 11, 1, string(model.HoldCommitted)))
	mock.ExpectExec("UPDATE inventory_holds SET status").
		WithArgs(model.HoldReleased, uint64(1), model.HoldHeld).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products SET stock").
		WithArgs(uint32(2), uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE inventory_holds SET status").
		WithArgs(model.HoldReleased, uint64(2), model.HoldCommitted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products SET stock").
		WithArgs(uint32(1), uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewInventoryRepo(db)
	err = repo.Release(context.Background(), db, 7)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryReleaseSkipsRestockWhenFlipLosesRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, product_id, quantity, status FROM inventory_holds").
		WithArgs(uint64(7), model.HoldHeld, model.HoldCommitted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "quantity", "status"}).
			AddRow(1, 10, 2, string(model.HoldHeld)))
	// another settle path flipped the hold first; no restock must follow
	mock.ExpectExec("UPDATE inventory_holds SET status").
		WithArgs(model.HoldReleased, uint64(1), model.HoldHeld).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewInventoryRepo(db)
	err = repo.Release(context.Background(), db, 7)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryReleaseSurfacesIterationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// the second row vanishes behind a driver error; a silent truncation
	// here would restock only part of the order and still report success
	mock.ExpectQuery("SELECT id, product_id, quantity, status FROM inventory_holds").
		WithArgs(uint64(7), model.HoldHeld, model.HoldCommitted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "quantity", "status"}).
			AddRow(1, 10, 2, string(model.HoldHeld)).
			AddRow(2, 11, 1, string(model.HoldCommitted)).
			RowError(1, errors.New("driver: bad connection")))

	repo := NewInventoryRepo(db)
	err = repo.Release(context.Background(), db, 7)

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
