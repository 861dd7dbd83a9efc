package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errInsufficientFunds = errors.New("insufficient funds")

// ErrInsufficientFunds is returned when the sender's balance is below the transfer amount.
var ErrInsufficientFunds = errInsufficientFunds

// Repository stores token balances and the transfer journal.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Balance returns holder's balance of token, zero when the holder has none.
func (r *Repository) Balance(ctx context.Context, tx pgx.Tx, token, holder string) (int64, error) {
	var bal int64
	err := tx.QueryRow(ctx, `
		SELECT balance FROM token_balances WHERE token = $1 AND holder = $2
	`, token, holder).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return bal, err
}

// Transfer runs inside the caller's transaction. It:
// a) Debits `from` via a conditional UPDATE that fails when balance < amount
// b) Credits `to`, creating its balance row if needed
// c) Inserts a record into token_transfers
func (r *Repository) Transfer(ctx context.Context, tx pgx.Tx, token, from, to string, amount int64) (uuid.UUID, error) {
	result, err := tx.Exec(ctx, `
		UPDATE token_balances
		SET balance = balance - $1
		WHERE token = $2 AND holder = $3 AND balance >= $1
	`, amount, token, from)
	if err != nil {
		return uuid.Nil, err
	}
	if result.RowsAffected() == 0 {
		return uuid.Nil, errInsufficientFunds
	}
	if err := credit(ctx, tx, token, to, amount); err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO token_transfers (token, from_holder, to_holder, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, token, from, to, amount).Scan(&id)
	return id, err
}

// Mint creates amount of token for holder in its own transaction.
func (r *Repository) Mint(ctx context.Context, token, holder string, amount int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := credit(ctx, tx, token, holder, amount); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO token_transfers (token, from_holder, to_holder, amount)
		VALUES ($1, NULL, $2, $3)
	`, token, holder, amount)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func credit(ctx context.Context, tx pgx.Tx, token, holder string, amount int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO token_balances (token, holder, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (token, holder) DO UPDATE SET balance = token_balances.balance + EXCLUDED.balance
	`, token, holder, amount)
	return err
}
