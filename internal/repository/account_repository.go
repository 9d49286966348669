package repository

import (
	"context"
	"database/sql"
)

// AccountRepo backs the wallet debit/credit contract with a balance
// column and guarded arithmetic.  Insufficient balance is a boolean
// outcome, not an error: the debit UPDATE simply matches no row.  The
// wallet's own double-entry bookkeeping lives outside this core.
type AccountRepo struct {
	db *sql.DB
}

// NewAccountRepo returns an AccountRepo bound to the given database.
func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

// Debit withdraws amountCents from the user's wallet.  It returns false
// when the balance guard rejects the withdrawal.
func (r *AccountRepo) Debit(ctx context.Context, userID uint64, amountCents uint32) (bool, error) {
	const upd = `UPDATE accounts SET balance_cents = balance_cents - ?
	             WHERE user_id = ? AND balance_cents >= ?`
	result, err := r.db.ExecContext(ctx, upd, amountCents, userID, amountCents)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Credit returns amountCents to the user's wallet.  It reports false only
// when no account row exists.
func (r *AccountRepo) Credit(ctx context.Context, userID uint64, amountCents uint32) (bool, error) {
	const upd = `UPDATE accounts SET balance_cents = balance_cents + ? WHERE user_id = ?`
	result, err := r.db.ExecContext(ctx, upd, amountCents, userID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Balance reads the current wallet balance.
func (r *AccountRepo) Balance(ctx context.Context, userID uint64) (uint32, error) {
	const sel = `SELECT balance_cents FROM accounts WHERE user_id = ?`
	var b uint32
	err := r.db.QueryRowContext(ctx, sel, userID).Scan(&b)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return b, err
}
