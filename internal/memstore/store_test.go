package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devasign/task-escrow/internal/escrow"
)

func TestAtomicCommits(t *testing.T) {
	s := New()
	s.Mint("tok", "alice", 100)
	var seen []escrow.Topic
	s.Subscribe(func(ev escrow.Event) { seen = append(seen, ev.Topic) })

	err := s.Atomic(context.Background(), func(ctx context.Context, tx escrow.Tx) error {
		require.NoError(t, tx.SaveState(ctx, escrow.State{Admin: "a", Token: "tok"}))
		require.NoError(t, tx.SaveEscrow(ctx, &escrow.TaskEscrow{TaskID: "t1", Status: escrow.StatusOpen}))
		require.NoError(t, tx.Token("tok").Transfer(ctx, "alice", "vault", 40))
		return tx.Emit(ctx, escrow.Event{Topic: escrow.TopicEscrowCreated})
	})
	require.NoError(t, err)

	assert.Equal(t, int64(60), s.Balance("tok", "alice"))
	assert.Equal(t, int64(40), s.Balance("tok", "vault"))
	assert.Equal(t, []escrow.Topic{escrow.TopicEscrowCreated}, seen)

	err = s.Atomic(context.Background(), func(ctx context.Context, tx escrow.Tx) error {
		st, ok, err := tx.LoadState(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, escrow.Address("a"), st.Admin)
		e, err := tx.LoadEscrow(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, escrow.StatusOpen, e.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestAtomicRollsBack(t *testing.T) {
	s := New()
	s.Mint("tok", "alice", 100)
	boom := errors.New("boom")

	err := s.Atomic(context.Background(), func(ctx context.Context, tx escrow.Tx) error {
		require.NoError(t, tx.SaveEscrow(ctx, &escrow.TaskEscrow{TaskID: "t1"}))
		require.NoError(t, tx.SaveDispute(ctx, &escrow.DisputeInfo{TaskID: "t1"}))
		require.NoError(t, tx.Token("tok").Transfer(ctx, "alice", "vault", 100))
		require.NoError(t, tx.Emit(ctx, escrow.Event{Topic: escrow.TopicEscrowCreated}))

		// Writes are visible inside the unit.
		bal, err := tx.Token("tok").Balance(ctx, "vault")
		require.NoError(t, err)
		assert.Equal(t, int64(100), bal)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, int64(100), s.Balance("tok", "alice"))
	assert.Zero(t, s.Balance("tok", "vault"))
	assert.Empty(t, s.Events())

	_ = s.Atomic(context.Background(), func(ctx context.Context, tx escrow.Tx) error {
		_, err := tx.LoadEscrow(ctx, "t1")
		assert.ErrorIs(t, err, escrow.ErrTaskNotFound)
		_, err = tx.LoadDispute(ctx, "t1")
		assert.ErrorIs(t, err, escrow.ErrTaskNotDisputed)
		_, ok, _ := tx.LoadState(ctx)
		assert.False(t, ok)
		return nil
	})
}

func TestTransferInsufficient(t *testing.T) {
	s := New()
	s.Mint("tok", "alice", 5)
	err := s.Atomic(context.Background(), func(ctx context.Context, tx escrow.Tx) error {
		return tx.Token("tok").Transfer(ctx, "alice", "bob", 6)
	})
	assert.ErrorIs(t, err, escrow.ErrInsufficientBalance)
}

func TestAtomicHonoursCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.Atomic(ctx, func(context.Context, escrow.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestConsumeSignatureOnce(t *testing.T) {
	s := New()
	spend := func(id string) error {
		return s.Atomic(context.Background(), func(ctx context.Context, tx escrow.Tx) error {
			return tx.ConsumeSignature(ctx, id, 1_700_000_300)
		})
	}

	require.NoError(t, spend("sig-1"))
	assert.ErrorIs(t, spend("sig-1"), escrow.ErrSignatureReused)
	assert.NoError(t, spend("sig-2"))
}

func TestConsumeSignatureRollsBack(t *testing.T) {
	s := New()
	boom := errors.New("boom")

	err := s.Atomic(context.Background(), func(ctx context.Context, tx escrow.Tx) error {
		require.NoError(t, tx.ConsumeSignature(ctx, "sig-1", 0))
		assert.ErrorIs(t, tx.ConsumeSignature(ctx, "sig-1", 0), escrow.ErrSignatureReused)
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.Atomic(context.Background(), func(ctx context.Context, tx escrow.Tx) error {
		return tx.ConsumeSignature(ctx, "sig-1", 0)
	})
	assert.NoError(t, err)
}
