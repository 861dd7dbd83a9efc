package escrow_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devasign/task-escrow/internal/escrow"
	"github.com/devasign/task-escrow/internal/memstore"
)

const (
	admin       escrow.Address = "admin"
	token       escrow.Address = "token"
	contract    escrow.Address = "contract"
	creator     escrow.Address = "creator"
	contributor escrow.Address = "contributor"
	stranger    escrow.Address = "stranger"

	bounty  int64 = 1_000_0000000
	funding int64 = 10 * bounty
	issue         = "https://github.com/devasign/app/issues/42"
)

var taskID = strings.Repeat("t", escrow.TaskIDLength)

// ---------------------------------------------------------------------------
// fakeAuth accepts an address when the context lists it as a signer. A
// context carrying a signature id hands it back in the grant.
// ---------------------------------------------------------------------------

type (
	signersKey struct{}
	sigIDKey   struct{}
)

func as(ctx context.Context, addrs ...escrow.Address) context.Context {
	return context.WithValue(ctx, signersKey{}, addrs)
}

func withSigID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sigIDKey{}, id)
}

type fakeAuth struct {
	intents []escrow.Intent
}

func (f *fakeAuth) RequireAuth(ctx context.Context, addr escrow.Address, intent escrow.Intent) (escrow.Grant, error) {
	f.intents = append(f.intents, intent)
	signers, _ := ctx.Value(signersKey{}).([]escrow.Address)
	for _, s := range signers {
		if s == addr {
			id, _ := ctx.Value(sigIDKey{}).(string)
			return escrow.Grant{ID: id, ExpiresAt: 1_700_000_300}, nil
		}
	}
	return escrow.Grant{}, escrow.ErrUnauthorized
}

type fixedClock uint64

func (c fixedClock) Now() uint64 { return uint64(c) }

// ---------------------------------------------------------------------------
// harness wires a Service over a fresh memstore, initialized and funded.
// ---------------------------------------------------------------------------

type harness struct {
	t     *testing.T
	store *memstore.Store
	auth  *fakeAuth
	svc   *escrow.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := newBareHarness(t)
	require.NoError(t, h.svc.Initialize(as(context.Background(), admin), admin, token))
	h.store.Mint(token, creator, funding)
	return h
}

func newBareHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.New()
	auth := &fakeAuth{}
	svc := escrow.NewService(store, auth, contract, escrow.Options{Clock: fixedClock(1_700_000_000)})
	return &harness{t: t, store: store, auth: auth, svc: svc}
}

func (h *harness) balance(addr escrow.Address) int64 {
	return h.store.Balance(token, addr)
}

func (h *harness) create(id string) *escrow.TaskEscrow {
	h.t.Helper()
	e, err := h.svc.CreateEscrow(as(context.Background(), creator), creator, id, issue, bounty)
	require.NoError(h.t, err)
	return e
}

func (h *harness) assign(id string) {
	h.t.Helper()
	_, err := h.svc.AssignContributor(as(context.Background(), creator), id, contributor)
	require.NoError(h.t, err)
}

func (h *harness) complete(id string) {
	h.t.Helper()
	_, err := h.svc.CompleteTask(as(context.Background(), contributor), id)
	require.NoError(h.t, err)
}

func (h *harness) dispute(id string, party escrow.Address) {
	h.t.Helper()
	_, err := h.svc.DisputeTask(as(context.Background(), party), party, id, "work does not match the issue")
	require.NoError(h.t, err)
}

func (h *harness) topics() []escrow.Topic {
	var out []escrow.Topic
	for _, ev := range h.store.Events() {
		out = append(out, ev.Topic)
	}
	return out
}
