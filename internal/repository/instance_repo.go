package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/devasign/task-escrow/internal/escrow"
)

// InstanceRepo persists the single contract_instance row.
type InstanceRepo struct{}

func NewInstanceRepo() *InstanceRepo {
	return &InstanceRepo{}
}

// Load returns ok=false when the contract has not been initialized.
func (r *InstanceRepo) Load(ctx context.Context, tx pgx.Tx) (escrow.State, bool, error) {
	var (
		st           escrow.State
		admin, token string
		count        int64
	)
	err := tx.QueryRow(ctx, `
		SELECT admin, token, task_count, paused, code_hash FROM contract_instance WHERE id = 1
	`).Scan(&admin, &token, &count, &st.Paused, &st.CodeHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return escrow.State{}, false, nil
	}
	if err != nil {
		return escrow.State{}, false, err
	}
	st.Admin = escrow.Address(admin)
	st.Token = escrow.Address(token)
	st.TaskCount = uint64(count)
	return st, true, nil
}

func (r *InstanceRepo) Save(ctx context.Context, tx pgx.Tx, st escrow.State) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO contract_instance (id, admin, token, task_count, paused, code_hash)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET admin = $1, token = $2, task_count = $3, paused = $4, code_hash = $5, updated_at = now()
	`, string(st.Admin), string(st.Token), int64(st.TaskCount), st.Paused, st.CodeHash)
	return err
}
