package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/devasign/task-escrow/internal/escrow"
)

// EscrowRepo persists task escrows.
type EscrowRepo struct{}

func NewEscrowRepo() *EscrowRepo {
	return &EscrowRepo{}
}

// Get returns escrow.ErrTaskNotFound for an unknown id.
func (r *EscrowRepo) Get(ctx context.Context, tx pgx.Tx, taskID string) (*escrow.TaskEscrow, error) {
	var (
		e           escrow.TaskEscrow
		creator     string
		contributor *string
		status      string
		created     int64
		completed   int64
		disputed    int64
	)
	err := tx.QueryRow(ctx, `
		SELECT task_id, issue_url, creator, contributor, bounty_amount, status, created_at, completed_at, disputed_at
		FROM escrows WHERE task_id = $1
	`, taskID).Scan(&e.TaskID, &e.IssueURL, &creator, &contributor, &e.BountyAmount, &status, &created, &completed, &disputed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, escrow.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Creator = escrow.Address(creator)
	if contributor != nil {
		c := escrow.Address(*contributor)
		e.Contributor = &c
	}
	e.Status = escrow.Status(status)
	e.CreatedAt = uint64(created)
	e.CompletedAt = uint64(completed)
	e.DisputedAt = uint64(disputed)
	return &e, nil
}

func (r *EscrowRepo) Exists(ctx context.Context, tx pgx.Tx, taskID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM escrows WHERE task_id = $1)`, taskID).Scan(&exists)
	return exists, err
}

// Save inserts or fully replaces the row for e.TaskID.
func (r *EscrowRepo) Save(ctx context.Context, tx pgx.Tx, e *escrow.TaskEscrow) error {
	var contributor *string
	if e.Contributor != nil {
		c := string(*e.Contributor)
		contributor = &c
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO escrows (task_id, issue_url, creator, contributor, bounty_amount, status, created_at, completed_at, disputed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (task_id) DO UPDATE SET
			issue_url = $2, creator = $3, contributor = $4, bounty_amount = $5, status = $6,
			created_at = $7, completed_at = $8, disputed_at = $9, updated_at = now()
	`, e.TaskID, e.IssueURL, string(e.Creator), contributor, e.BountyAmount, string(e.Status),
		int64(e.CreatedAt), int64(e.CompletedAt), int64(e.DisputedAt))
	return err
}
