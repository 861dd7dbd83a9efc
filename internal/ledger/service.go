package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/devasign/task-escrow/internal/escrow"
)

// Token is one token contract seen through a single transaction.
type Token struct {
	repo *Repository
	tx   pgx.Tx
	addr escrow.Address
}

// Bind returns the token at addr operating inside tx.
func Bind(repo *Repository, tx pgx.Tx, addr escrow.Address) *Token {
	return &Token{repo: repo, tx: tx, addr: addr}
}

var _ escrow.Token = (*Token)(nil)

func (t *Token) Balance(ctx context.Context, holder escrow.Address) (int64, error) {
	return t.repo.Balance(ctx, t.tx, string(t.addr), string(holder))
}

func (t *Token) Transfer(ctx context.Context, from, to escrow.Address, amount int64) error {
	_, err := t.repo.Transfer(ctx, t.tx, string(t.addr), string(from), string(to), amount)
	if errors.Is(err, ErrInsufficientFunds) {
		return escrow.ErrInsufficientBalance
	}
	return err
}
