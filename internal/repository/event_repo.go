package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devasign/task-escrow/internal/escrow"
)

// EventRepo is the outbox of emitted events.
type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// StoredEvent is an outbox row.
type StoredEvent struct {
	Seq       int64           `json:"seq"`
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	TaskID    string          `json:"task_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt uint64          `json:"emitted_at"`
}

// Insert appends ev inside the caller's transaction and returns its sequence number.
func (r *EventRepo) Insert(ctx context.Context, tx pgx.Tx, ev escrow.Event) (int64, error) {
	payload, err := ev.MarshalData()
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", ev.Topic, err)
	}
	var seq int64
	err = tx.QueryRow(ctx, `
		INSERT INTO escrow_events (id, topic, task_id, payload, emitted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`, ev.ID, string(ev.Topic), ev.TaskID, payload, int64(ev.Timestamp)).Scan(&seq)
	return seq, err
}

// ListByTask returns the events of one task in emission order.
func (r *EventRepo) ListByTask(ctx context.Context, taskID string) ([]StoredEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seq, id::text, topic, task_id, payload, emitted_at
		FROM escrow_events WHERE task_id = $1 ORDER BY seq
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredEvent
	for rows.Next() {
		var (
			e       StoredEvent
			emitted int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Topic, &e.TaskID, &e.Payload, &emitted); err != nil {
			return nil, err
		}
		e.EmittedAt = uint64(emitted)
		out = append(out, e)
	}
	return out, rows.Err()
}
