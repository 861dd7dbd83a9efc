package main

import (
	"context"

	"github.com/devasign/task-escrow/internal/escrow"
	"github.com/devasign/task-escrow/internal/ledger"
	"github.com/devasign/task-escrow/internal/memstore"
	"github.com/devasign/task-escrow/internal/repository"
)

// memoryEvents serves event history from the in-memory store's log.
type memoryEvents struct{ store *memstore.Store }

func (m memoryEvents) ListByTask(_ context.Context, taskID string) ([]repository.StoredEvent, error) {
	var out []repository.StoredEvent
	for i, ev := range m.store.Events() {
		if ev.TaskID != taskID {
			continue
		}
		payload, err := ev.MarshalData()
		if err != nil {
			return nil, err
		}
		out = append(out, repository.StoredEvent{
			Seq:       int64(i + 1),
			ID:        ev.ID.String(),
			Topic:     string(ev.Topic),
			TaskID:    ev.TaskID,
			Payload:   payload,
			EmittedAt: ev.Timestamp,
		})
	}
	return out, nil
}

type memoryFaucet struct{ store *memstore.Store }

func (m memoryFaucet) Mint(_ context.Context, token, holder escrow.Address, amount int64) error {
	m.store.Mint(token, holder, amount)
	return nil
}

type ledgerFaucet struct{ repo *ledger.Repository }

func (l ledgerFaucet) Mint(ctx context.Context, token, holder escrow.Address, amount int64) error {
	return l.repo.Mint(ctx, string(token), string(holder), amount)
}
