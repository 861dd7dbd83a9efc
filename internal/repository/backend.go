package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/devasign/task-escrow/internal/escrow"
	"github.com/devasign/task-escrow/internal/ledger"
)

// advisoryLockKey serializes escrow calls across every API replica.
const advisoryLockKey int64 = 0x65736372_6f770001

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PublishEventFunc hands a committed-with-the-tx event to downstream
// delivery, e.g. by inserting a River job with the same tx.
type PublishEventFunc func(ctx context.Context, tx pgx.Tx, seq int64, ev escrow.Event) error

// Backend implements escrow.Backend on PostgreSQL.
type Backend struct {
	pool     TxBeginner
	instance *InstanceRepo
	escrows  *EscrowRepo
	disputes *DisputeRepo
	spent    *SignatureRepo
	events   *EventRepo
	ledger   *ledger.Repository
	publish  PublishEventFunc
}

func NewBackend(pool TxBeginner, events *EventRepo, ledgerRepo *ledger.Repository, publish PublishEventFunc) *Backend {
	return &Backend{
		pool:     pool,
		instance: NewInstanceRepo(),
		escrows:  NewEscrowRepo(),
		disputes: NewDisputeRepo(),
		spent:    NewSignatureRepo(),
		events:   events,
		ledger:   ledgerRepo,
		publish:  publish,
	}
}

var _ escrow.Backend = (*Backend)(nil)

// Atomic runs fn in one transaction holding a transaction-scoped advisory
// lock, so calls execute one at a time.
func (b *Backend) Atomic(ctx context.Context, fn func(ctx context.Context, tx escrow.Tx) error) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
		return fmt.Errorf("acquire escrow lock: %w", err)
	}
	if err := fn(ctx, &pgTx{b: b, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct {
	b  *Backend
	tx pgx.Tx
}

func (t *pgTx) LoadState(ctx context.Context) (escrow.State, bool, error) {
	return t.b.instance.Load(ctx, t.tx)
}

func (t *pgTx) SaveState(ctx context.Context, st escrow.State) error {
	return t.b.instance.Save(ctx, t.tx, st)
}

func (t *pgTx) LoadEscrow(ctx context.Context, taskID string) (*escrow.TaskEscrow, error) {
	return t.b.escrows.Get(ctx, t.tx, taskID)
}

func (t *pgTx) HasEscrow(ctx context.Context, taskID string) (bool, error) {
	return t.b.escrows.Exists(ctx, t.tx, taskID)
}

func (t *pgTx) SaveEscrow(ctx context.Context, e *escrow.TaskEscrow) error {
	return t.b.escrows.Save(ctx, t.tx, e)
}

func (t *pgTx) LoadDispute(ctx context.Context, taskID string) (*escrow.DisputeInfo, error) {
	return t.b.disputes.Get(ctx, t.tx, taskID)
}

func (t *pgTx) SaveDispute(ctx context.Context, d *escrow.DisputeInfo) error {
	return t.b.disputes.Create(ctx, t.tx, d)
}

func (t *pgTx) Token(addr escrow.Address) escrow.Token {
	return ledger.Bind(t.b.ledger, t.tx, addr)
}

func (t *pgTx) ConsumeSignature(ctx context.Context, id string, expiresAt uint64) error {
	return t.b.spent.Consume(ctx, t.tx, id, expiresAt)
}

func (t *pgTx) Emit(ctx context.Context, ev escrow.Event) error {
	seq, err := t.b.events.Insert(ctx, t.tx, ev)
	if err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	if t.b.publish == nil {
		return nil
	}
	if err := t.b.publish(ctx, t.tx, seq, ev); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
