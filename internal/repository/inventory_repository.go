package repository

import (
	"context"
	"database/sql"

	"github.com/averon/venue-reservation/internal/model"
)

// InventoryRepo manages product stock and the inventory_holds rows that
// tie a provisional stock decrement to one shop-order reservation.  Stock
// is decremented at lock time; commit only flips the hold status while
// release flips it and restores the quantity.  The guarded HELD->terminal
// flips make both directions idempotent.
type InventoryRepo struct {
	db *sql.DB
}

// NewInventoryRepo returns an InventoryRepo bound to the given database.
func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// GetProduct loads one product.
func (r *InventoryRepo) GetProduct(ctx context.Context, id uint64) (*model.Product, error) {
	const sel = `SELECT id, name, price_cents, stock FROM products WHERE id = ?`
	var p model.Product
	err := r.db.QueryRowContext(ctx, sel, id).Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InStock reports whether every order line can currently be satisfied.
// Best-effort pre-check; Hold re-checks under the stock guard.
func (r *InventoryRepo) InStock(ctx context.Context, lines []model.OrderLine) (bool, error) {
	for _, l := range lines {
		const sel = `SELECT stock >= ? FROM products WHERE id = ?`
		var ok bool
		err := r.db.QueryRowContext(ctx, sel, l.Quantity, l.ProductID).Scan(&ok)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Hold provisionally decrements stock for every line and records a HELD
// row per product against the reservation.  Any line whose stock guard
// fails aborts with ErrResourceUnavailable so the caller's transaction
// rolls the whole batch back.
func (r *InventoryRepo) Hold(ctx context.Context, q DBTX, reservationID uint64, lines []model.OrderLine) error {
	for _, l := range lines {
		const upd = `UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`
		result, err := q.ExecContext(ctx, upd, l.Quantity, l.ProductID, l.Quantity)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrResourceUnavailable
		}
		const ins = `INSERT INTO inventory_holds (reservation_id, product_id, quantity, status) VALUES (?, ?, ?, ?)`
		if _, err := q.ExecContext(ctx, ins, reservationID, l.ProductID, l.Quantity, model.HoldHeld); err != nil {
			return err
		}
	}
	return nil
}

// Commit flips the reservation's holds to COMMITTED.  The quantity was
// already taken at lock time, so commit is a status flip only.
func (r *InventoryRepo) Commit(ctx context.Context, q DBTX, reservationID uint64) error {
	const upd = `UPDATE inventory_holds SET status = ? WHERE reservation_id = ? AND status = ?`
	_, err := q.ExecContext(ctx, upd, model.HoldCommitted, reservationID, model.HoldHeld)
	return err
}

// Release undoes the stock decrement: every non-released hold (HELD for
// a failed payment, COMMITTED for a cancelled confirmed order) is flipped
// to RELEASED and its quantity added back to product stock.  The per-row
// guarded flip means a second release finds nothing to flip and restores
// nothing.
func (r *InventoryRepo) Release(ctx context.Context, q DBTX, reservationID uint64) error {
	const sel = `SELECT id, product_id, quantity, status FROM inventory_holds WHERE reservation_id = ? AND status IN (?, ?)`
	rows, err := q.QueryContext(ctx, sel, reservationID, model.HoldHeld, model.HoldCommitted)
	if err != nil {
		return err
	}
	type hold struct {
		id, productID uint64
		qty           uint32
		status        model.HoldStatus
	}
	var holds []hold
	for rows.Next() {
		var h hold
		if err := rows.Scan(&h.id, &h.productID, &h.qty, &h.status); err != nil {
			rows.Close()
			return err
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, h := range holds {
		const flip = `UPDATE inventory_holds SET status = ? WHERE id = ? AND status = ?`
		result, err := q.ExecContext(ctx, flip, model.HoldReleased, h.id, h.status)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			continue // another settle path already released this hold
		}
		const restock = `UPDATE products SET stock = stock + ? WHERE id = ?`
		if _, err := q.ExecContext(ctx, restock, h.qty, h.productID); err != nil {
			return err
		}
	}
	return nil
}

// ListProducts returns the catalog, in-stock items first.
func (r *InventoryRepo) ListProducts(ctx context.Context) ([]model.Product, error) {
	const sel = `SELECT id, name, price_cents, stock FROM products ORDER BY stock > 0 DESC, name`
	rows, err := r.db.QueryContext(ctx, sel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
