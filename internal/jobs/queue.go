package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"

	"github.com/devasign/task-escrow/internal/escrow"
	"github.com/devasign/task-escrow/internal/execution"
	"github.com/devasign/task-escrow/internal/repository"
)

// Migrate applies River's schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	return nil
}

// ClientConfig configures the River client that delivers escrow events.
type ClientConfig struct {
	// Worker is registered when non-nil. A nil worker gives an insert-only
	// client: events are queued but not delivered by this process.
	Worker     *execution.DeliverEventWorker
	MaxWorkers int
	Logger     *slog.Logger
}

// NewClient creates a River client over pool.
func NewClient(pool *pgxpool.Pool, cfg ClientConfig) (*river.Client[pgx.Tx], error) {
	rc := &river.Config{Logger: cfg.Logger}
	if cfg.Worker != nil {
		workers := river.NewWorkers()
		river.AddWorker(workers, cfg.Worker)
		maxWorkers := cfg.MaxWorkers
		if maxWorkers <= 0 {
			maxWorkers = 10
		}
		rc.Workers = workers
		rc.Queues = map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		}
	}
	client, err := river.NewClient(riverpgxv5.New(pool), rc)
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return client, nil
}

// Inserter enqueues jobs within a caller's transaction. *river.Client[pgx.Tx]
// satisfies it.
type Inserter interface {
	InsertTx(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Publisher returns a repository.PublishEventFunc that queues a delivery job
// in the same transaction that stored the event, so a rolled back call never
// reaches the indexer.
func Publisher(ins Inserter) repository.PublishEventFunc {
	return func(ctx context.Context, tx pgx.Tx, seq int64, ev escrow.Event) error {
		args, err := execution.NewDeliverEventArgs(seq, ev)
		if err != nil {
			return err
		}
		if _, err := ins.InsertTx(ctx, tx, args, &river.InsertOpts{MaxAttempts: 25}); err != nil {
			return fmt.Errorf("enqueue %s delivery: %w", ev.Topic, err)
		}
		return nil
	}
}
