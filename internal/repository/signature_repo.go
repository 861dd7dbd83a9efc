package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/devasign/task-escrow/internal/escrow"
)

// SignatureRepo records spent signature ids so each signed intent
// authorizes one committed call.
type SignatureRepo struct {
	now func() time.Time
}

func NewSignatureRepo() *SignatureRepo {
	return &SignatureRepo{now: time.Now}
}

// Consume inserts id and returns escrow.ErrSignatureReused when it is
// already present. Rows whose tokens have expired are pruned first; an
// expired token fails verification before reaching here.
func (r *SignatureRepo) Consume(ctx context.Context, tx pgx.Tx, id string, expiresAt uint64) error {
	if _, err := tx.Exec(ctx, `
		DELETE FROM used_signatures WHERE expires_at < $1
	`, r.now().Unix()); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO used_signatures (id, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, id, int64(expiresAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return escrow.ErrSignatureReused
	}
	return nil
}
