package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/devasign/task-escrow/internal/escrow"
)

// DisputeRepo persists dispute records, one per task.
type DisputeRepo struct{}

func NewDisputeRepo() *DisputeRepo {
	return &DisputeRepo{}
}

// Get returns escrow.ErrTaskNotDisputed when the task has no dispute.
func (r *DisputeRepo) Get(ctx context.Context, tx pgx.Tx, taskID string) (*escrow.DisputeInfo, error) {
	var (
		d         escrow.DisputeInfo
		party     string
		initiated int64
	)
	err := tx.QueryRow(ctx, `
		SELECT task_id, disputing_party, reason, initiated_at FROM disputes WHERE task_id = $1
	`, taskID).Scan(&d.TaskID, &party, &d.Reason, &initiated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, escrow.ErrTaskNotDisputed
	}
	if err != nil {
		return nil, err
	}
	d.DisputingParty = escrow.Address(party)
	d.InitiatedAt = uint64(initiated)
	return &d, nil
}

func (r *DisputeRepo) Create(ctx context.Context, tx pgx.Tx, d *escrow.DisputeInfo) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO disputes (task_id, disputing_party, reason, initiated_at)
		VALUES ($1, $2, $3, $4)
	`, d.TaskID, string(d.DisputingParty), d.Reason, int64(d.InitiatedAt))
	return err
}
