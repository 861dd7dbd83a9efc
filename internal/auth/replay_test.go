package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devasign/task-escrow/internal/escrow"
	"github.com/devasign/task-escrow/internal/memstore"
)

const (
	replayToken    escrow.Address = "token"
	replayContract escrow.Address = "contract"
	replayBounty   int64          = 1_000_0000000
)

// signedService wires the real verifier to an initialized escrow over memstore.
func signedService(t *testing.T) (*escrow.Service, *memstore.Store, *Signer, *Signer) {
	t.Helper()
	admin := newTestSigner(t)
	creator := newTestSigner(t)
	store := memstore.New()
	svc := escrow.NewService(store, NewVerifier(0), replayContract, escrow.Options{})

	tok, err := admin.Sign(escrow.InitializeIntent(admin.Address(), replayToken))
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(WithSignatures(context.Background(), tok), admin.Address(), replayToken))
	store.Mint(replayToken, creator.Address(), 10*replayBounty)
	return svc, store, admin, creator
}

func signed(t *testing.T, s *Signer, intent escrow.Intent) context.Context {
	t.Helper()
	tok, err := s.Sign(intent)
	require.NoError(t, err)
	return WithSignatures(context.Background(), tok)
}

func TestSignatureSpentOnce(t *testing.T) {
	svc, store, _, creator := signedService(t)
	id := strings.Repeat("r", escrow.TaskIDLength)
	const url = "https://github.com/devasign/app/issues/7"

	ctx := signed(t, creator, escrow.CreateEscrowIntent(creator.Address(), id, url, replayBounty))
	_, err := svc.CreateEscrow(ctx, creator.Address(), id, url, replayBounty)
	require.NoError(t, err)

	inc := signed(t, creator, escrow.BountyIntent(escrow.OpIncreaseBounty, creator.Address(), id, replayBounty))
	_, err = svc.IncreaseBounty(inc, creator.Address(), id, replayBounty)
	require.NoError(t, err)

	// The same token cannot be submitted again.
	_, err = svc.IncreaseBounty(inc, creator.Address(), id, replayBounty)
	assert.ErrorIs(t, err, escrow.ErrSignatureReused)
	_, err = svc.IncreaseBounty(inc, creator.Address(), id, replayBounty)
	assert.ErrorIs(t, err, escrow.ErrSignatureReused)

	e, err := svc.GetEscrow(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2*replayBounty, e.BountyAmount)
	assert.Equal(t, 8*replayBounty, store.Balance(replayToken, creator.Address()))
}

func TestSignatureBindsAmount(t *testing.T) {
	svc, _, _, creator := signedService(t)
	id := strings.Repeat("s", escrow.TaskIDLength)
	const url = "https://github.com/devasign/app/issues/8"

	ctx := signed(t, creator, escrow.CreateEscrowIntent(creator.Address(), id, url, replayBounty))
	_, err := svc.CreateEscrow(ctx, creator.Address(), id, url, 5*replayBounty)
	assert.ErrorIs(t, err, escrow.ErrUnauthorized)

	_, err = svc.CreateEscrow(ctx, creator.Address(), id, url, replayBounty)
	require.NoError(t, err)

	dec := signed(t, creator, escrow.BountyIntent(escrow.OpDecreaseBounty, creator.Address(), id, 100_000))
	_, err = svc.DecreaseBounty(dec, creator.Address(), id, 500_000)
	assert.ErrorIs(t, err, escrow.ErrUnauthorized)
	_, err = svc.IncreaseBounty(dec, creator.Address(), id, 100_000)
	assert.ErrorIs(t, err, escrow.ErrUnauthorized)
}

func TestSignatureBindsResolution(t *testing.T) {
	svc, store, admin, creator := signedService(t)
	worker := newTestSigner(t)
	id := strings.Repeat("u", escrow.TaskIDLength)
	const url = "https://github.com/devasign/app/issues/9"

	_, err := svc.CreateEscrow(signed(t, creator, escrow.CreateEscrowIntent(creator.Address(), id, url, replayBounty)), creator.Address(), id, url, replayBounty)
	require.NoError(t, err)
	_, err = svc.AssignContributor(signed(t, creator, escrow.AssignContributorIntent(id, worker.Address())), id, worker.Address())
	require.NoError(t, err)
	const reason = "the work was never delivered"
	_, err = svc.DisputeTask(signed(t, creator, escrow.DisputeIntent(creator.Address(), id, reason)), creator.Address(), id, reason)
	require.NoError(t, err)

	refund := signed(t, admin, escrow.ResolveIntent(id, escrow.RefundCreator{}))
	_, err = svc.ResolveDispute(refund, id, escrow.PayContributor{})
	assert.ErrorIs(t, err, escrow.ErrNotAdmin)
	_, err = svc.ResolveDispute(refund, id, escrow.PartialPayment{Amount: replayBounty / 2})
	assert.ErrorIs(t, err, escrow.ErrNotAdmin)

	e, err := svc.ResolveDispute(refund, id, escrow.RefundCreator{})
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusResolved, e.Status)
	assert.Zero(t, store.Balance(replayToken, worker.Address()))
}

func TestFailedCallDoesNotSpendSignature(t *testing.T) {
	svc, store, _, creator := signedService(t)
	id := strings.Repeat("v", escrow.TaskIDLength)
	const url = "https://github.com/devasign/app/issues/10"

	_, err := svc.CreateEscrow(signed(t, creator, escrow.CreateEscrowIntent(creator.Address(), id, url, replayBounty)), creator.Address(), id, url, replayBounty)
	require.NoError(t, err)

	// The creator holds 9 bounties, so the transfer fails after the
	// signature was accepted and the whole call rolls back.
	ctx := signed(t, creator, escrow.BountyIntent(escrow.OpIncreaseBounty, creator.Address(), id, 20*replayBounty))
	_, err = svc.IncreaseBounty(ctx, creator.Address(), id, 20*replayBounty)
	assert.ErrorIs(t, err, escrow.ErrInsufficientBalance)

	store.Mint(replayToken, creator.Address(), 20*replayBounty)
	e, err := svc.IncreaseBounty(ctx, creator.Address(), id, 20*replayBounty)
	require.NoError(t, err)
	assert.Equal(t, 21*replayBounty, e.BountyAmount)
}
