package escrow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devasign/task-escrow/internal/escrow"
)

func TestDisputeSplitSixtyForty(t *testing.T) {
	h := newHarness(t)
	h.create(taskID)
	h.assign(taskID)
	h.dispute(taskID, creator)

	e, err := h.svc.ResolveDispute(as(context.Background(), admin), taskID, escrow.PartialPayment{Amount: 600_0000000})
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusResolved, e.Status)
	assert.Equal(t, int64(600_0000000), h.balance(contributor))
	assert.Equal(t, funding-bounty+400_0000000, h.balance(creator))
	assert.Zero(t, h.balance(contract))

	events := h.store.Events()
	last := events[len(events)-1]
	assert.Equal(t, escrow.TopicDisputeResolved, last.Topic)
	assert.Equal(t, escrow.DisputeResolved{
		TaskID:            taskID,
		Resolution:        "partial_payment",
		ContributorAmount: 600_0000000,
		CreatorAmount:     400_0000000,
		ResolvedBy:        admin,
		Timestamp:         1_700_000_000,
	}, last.Data)
}

func TestResolveFullPolicies(t *testing.T) {
	tests := []struct {
		name            string
		res             escrow.Resolution
		wantContributor int64
		wantCreator     int64
	}{
		{"pay contributor", escrow.PayContributor{}, bounty, funding - bounty},
		{"refund creator", escrow.RefundCreator{}, 0, funding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.create(taskID)
			h.assign(taskID)
			h.complete(taskID)
			h.dispute(taskID, contributor)

			_, err := h.svc.ResolveDispute(as(context.Background(), admin), taskID, tt.res)
			require.NoError(t, err)
			assert.Equal(t, tt.wantContributor, h.balance(contributor))
			assert.Equal(t, tt.wantCreator, h.balance(creator))
			assert.Zero(t, h.balance(contract))
		})
	}
}

func TestDisputeTaskRecordsInfo(t *testing.T) {
	h := newHarness(t)
	h.create(taskID)
	h.assign(taskID)

	e, err := h.svc.DisputeTask(as(context.Background(), contributor), contributor, taskID, "creator stopped responding")
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusDisputed, e.Status)
	assert.Equal(t, uint64(1_700_000_000), e.DisputedAt)

	d, err := h.svc.GetDisputeInfo(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, &escrow.DisputeInfo{
		TaskID:         taskID,
		DisputingParty: contributor,
		Reason:         "creator stopped responding",
		InitiatedAt:    1_700_000_000,
	}, d)
}

func TestDisputeTaskFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no contributor", func(t *testing.T) {
		h := newHarness(t)
		h.create(taskID)
		_, err := h.svc.DisputeTask(as(ctx, creator), creator, taskID, "nobody picked this up")
		assert.ErrorIs(t, err, escrow.ErrNoContributorAssigned)
	})

	t.Run("outsider", func(t *testing.T) {
		h := newHarness(t)
		h.create(taskID)
		h.assign(taskID)
		_, err := h.svc.DisputeTask(as(ctx, stranger), stranger, taskID, "i have opinions here")
		assert.ErrorIs(t, err, escrow.ErrOnlyCreatorOrContributor)
	})

	t.Run("short reason", func(t *testing.T) {
		h := newHarness(t)
		h.create(taskID)
		h.assign(taskID)
		_, err := h.svc.DisputeTask(as(ctx, creator), creator, taskID, "bad")
		assert.ErrorIs(t, err, escrow.ErrInvalidDisputeReason)
	})

	t.Run("already disputed", func(t *testing.T) {
		h := newHarness(t)
		h.create(taskID)
		h.assign(taskID)
		h.dispute(taskID, creator)
		_, err := h.svc.DisputeTask(as(ctx, contributor), contributor, taskID, "second opinion here")
		assert.ErrorIs(t, err, escrow.ErrTaskAlreadyResolved)

		d, err := h.svc.GetDisputeInfo(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, creator, d.DisputingParty)
	})

	t.Run("after payout", func(t *testing.T) {
		h := newHarness(t)
		h.create(taskID)
		h.assign(taskID)
		h.complete(taskID)
		_, err := h.svc.ApproveCompletion(as(ctx, creator), taskID)
		require.NoError(t, err)
		_, err = h.svc.DisputeTask(as(ctx, creator), creator, taskID, "changed my mind now")
		assert.ErrorIs(t, err, escrow.ErrTaskAlreadyResolved)
	})
}

func TestResolveDisputeFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("not disputed", func(t *testing.T) {
		h := newHarness(t)
		h.create(taskID)
		h.assign(taskID)
		_, err := h.svc.ResolveDispute(as(ctx, admin), taskID, escrow.PayContributor{})
		assert.ErrorIs(t, err, escrow.ErrTaskNotDisputed)
	})

	t.Run("missing resolution", func(t *testing.T) {
		h := newHarness(t)
		h.create(taskID)
		h.assign(taskID)
		h.dispute(taskID, creator)
		_, err := h.svc.ResolveDispute(as(ctx, admin), taskID, nil)
		assert.ErrorIs(t, err, escrow.ErrInvalidResolution)
		assert.NotErrorIs(t, err, escrow.ErrInvalidAmount)
		assert.Equal(t, bounty, h.balance(contract))
	})

	t.Run("partial over total", func(t *testing.T) {
		h := newHarness(t)
		h.create(taskID)
		h.assign(taskID)
		h.dispute(taskID, creator)
		_, err := h.svc.ResolveDispute(as(ctx, admin), taskID, escrow.PartialPayment{Amount: bounty + 1})
		assert.ErrorIs(t, err, escrow.ErrInvalidTokenAmount)
	})

	t.Run("partial leaves dust", func(t *testing.T) {
		h := newHarness(t)
		h.create(taskID)
		h.assign(taskID)
		h.dispute(taskID, creator)
		_, err := h.svc.ResolveDispute(as(ctx, admin), taskID, escrow.PartialPayment{Amount: bounty - 1_000})
		assert.ErrorIs(t, err, escrow.ErrInvalidTokenAmount)
		assert.Equal(t, bounty, h.balance(contract))
	})
}

// A failure on the creator's share must roll back the contributor's share too.
func TestPartialPaymentIsAtomic(t *testing.T) {
	h := newHarness(t)
	h.create(taskID)
	h.assign(taskID)
	h.dispute(taskID, creator)
	events := len(h.store.Events())

	h.store.SetTransferHook(func(_, _, to escrow.Address, _ int64) error {
		if to == creator {
			return errors.New("recipient frozen")
		}
		return nil
	})

	_, err := h.svc.ResolveDispute(as(context.Background(), admin), taskID, escrow.PartialPayment{Amount: 600_0000000})
	assert.ErrorIs(t, err, escrow.ErrTokenTransferFailed)

	assert.Zero(t, h.balance(contributor))
	assert.Equal(t, bounty, h.balance(contract))
	e, err := h.svc.GetEscrow(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusDisputed, e.Status)
	assert.Len(t, h.store.Events(), events)

	h.store.SetTransferHook(nil)
	_, err = h.svc.ResolveDispute(as(context.Background(), admin), taskID, escrow.PartialPayment{Amount: 600_0000000})
	require.NoError(t, err)
	assert.Equal(t, int64(600_0000000), h.balance(contributor))
}

func TestGetDisputeInfoFailures(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.GetDisputeInfo(context.Background(), taskID)
	assert.ErrorIs(t, err, escrow.ErrTaskNotFound)

	h.create(taskID)
	_, err = h.svc.GetDisputeInfo(context.Background(), taskID)
	assert.ErrorIs(t, err, escrow.ErrTaskNotDisputed)

	_, err = h.svc.GetDisputeInfo(context.Background(), "short")
	assert.ErrorIs(t, err, escrow.ErrInvalidTaskID)
}

func TestParseResolution(t *testing.T) {
	r, ok := escrow.ParseResolution("partial_payment", 42)
	require.True(t, ok)
	assert.Equal(t, escrow.PartialPayment{Amount: 42}, r)

	r, ok = escrow.ParseResolution("PAY_CONTRIBUTOR", 0)
	require.True(t, ok)
	assert.Equal(t, escrow.PayContributor{}, r)

	_, ok = escrow.ParseResolution("split_evenly", 0)
	assert.False(t, ok)
}
