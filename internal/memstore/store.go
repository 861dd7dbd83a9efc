// Package memstore is an in-memory escrow.Backend with a built-in token
// ledger. It backs tests and the single-process dev mode.
package memstore

import (
	"context"
	"sync"

	"github.com/devasign/task-escrow/internal/escrow"
)

type balanceKey struct {
	token  escrow.Address
	holder escrow.Address
}

// TransferHook is consulted before every transfer; a non-nil error fails it.
type TransferHook func(token, from, to escrow.Address, amount int64) error

// Store keeps all escrow state in maps guarded by one mutex, so calls run
// one at a time.
type Store struct {
	mu          sync.Mutex
	state       *escrow.State
	escrows     map[string]*escrow.TaskEscrow
	disputes    map[string]*escrow.DisputeInfo
	balances    map[balanceKey]int64
	spent       map[string]uint64
	events      []escrow.Event
	subscribers []func(escrow.Event)
	hook        TransferHook
}

func New() *Store {
	return &Store{
		escrows:  make(map[string]*escrow.TaskEscrow),
		disputes: make(map[string]*escrow.DisputeInfo),
		balances: make(map[balanceKey]int64),
		spent:    make(map[string]uint64),
	}
}

var _ escrow.Backend = (*Store)(nil)

// Atomic runs fn against a write overlay that is merged only when fn
// succeeds. Subscribers see the call's events after the merge.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx escrow.Tx) error) error {
	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}
	t := newTx(s)
	if err := fn(ctx, t); err != nil {
		s.mu.Unlock()
		return err
	}
	t.commit()
	published := append([]escrow.Event(nil), t.events...)
	subs := append([]func(escrow.Event){}, s.subscribers...)
	s.mu.Unlock()

	for _, ev := range published {
		for _, sub := range subs {
			sub(ev)
		}
	}
	return nil
}

// Subscribe registers fn to receive every committed event.
func (s *Store) Subscribe(fn func(escrow.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// SetTransferHook installs h; nil removes it.
func (s *Store) SetTransferHook(h TransferHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// Mint credits amount of token to holder outside any call.
func (s *Store) Mint(token, holder escrow.Address, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balanceKey{token, holder}] += amount
}

// Balance returns holder's committed balance of token.
func (s *Store) Balance(token, holder escrow.Address) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[balanceKey{token, holder}]
}

// Events returns every committed event in emission order.
func (s *Store) Events() []escrow.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]escrow.Event(nil), s.events...)
}

type tx struct {
	store    *Store
	state    *escrow.State
	escrows  map[string]*escrow.TaskEscrow
	disputes map[string]*escrow.DisputeInfo
	balances map[balanceKey]int64
	spent    map[string]uint64
	events   []escrow.Event
}

func newTx(s *Store) *tx {
	return &tx{
		store:    s,
		escrows:  make(map[string]*escrow.TaskEscrow),
		disputes: make(map[string]*escrow.DisputeInfo),
		balances: make(map[balanceKey]int64),
		spent:    make(map[string]uint64),
	}
}

func (t *tx) commit() {
	s := t.store
	if t.state != nil {
		st := *t.state
		s.state = &st
	}
	for id, e := range t.escrows {
		s.escrows[id] = e
	}
	for id, d := range t.disputes {
		s.disputes[id] = d
	}
	for k, v := range t.balances {
		s.balances[k] = v
	}
	for id, exp := range t.spent {
		s.spent[id] = exp
	}
	s.events = append(s.events, t.events...)
}

func (t *tx) LoadState(_ context.Context) (escrow.State, bool, error) {
	if t.state != nil {
		return *t.state, true, nil
	}
	if t.store.state == nil {
		return escrow.State{}, false, nil
	}
	return *t.store.state, true, nil
}

func (t *tx) SaveState(_ context.Context, st escrow.State) error {
	t.state = &st
	return nil
}

func (t *tx) LoadEscrow(_ context.Context, taskID string) (*escrow.TaskEscrow, error) {
	if e, ok := t.escrows[taskID]; ok {
		return e.Clone(), nil
	}
	if e, ok := t.store.escrows[taskID]; ok {
		return e.Clone(), nil
	}
	return nil, escrow.ErrTaskNotFound
}

func (t *tx) HasEscrow(_ context.Context, taskID string) (bool, error) {
	if _, ok := t.escrows[taskID]; ok {
		return true, nil
	}
	_, ok := t.store.escrows[taskID]
	return ok, nil
}

func (t *tx) SaveEscrow(_ context.Context, e *escrow.TaskEscrow) error {
	t.escrows[e.TaskID] = e.Clone()
	return nil
}

func (t *tx) LoadDispute(_ context.Context, taskID string) (*escrow.DisputeInfo, error) {
	if d, ok := t.disputes[taskID]; ok {
		cp := *d
		return &cp, nil
	}
	if d, ok := t.store.disputes[taskID]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, escrow.ErrTaskNotDisputed
}

func (t *tx) SaveDispute(_ context.Context, d *escrow.DisputeInfo) error {
	cp := *d
	t.disputes[d.TaskID] = &cp
	return nil
}

func (t *tx) Token(addr escrow.Address) escrow.Token {
	return &token{tx: t, addr: addr}
}

func (t *tx) Emit(_ context.Context, ev escrow.Event) error {
	t.events = append(t.events, ev)
	return nil
}

func (t *tx) ConsumeSignature(_ context.Context, id string, expiresAt uint64) error {
	if _, ok := t.spent[id]; ok {
		return escrow.ErrSignatureReused
	}
	if _, ok := t.store.spent[id]; ok {
		return escrow.ErrSignatureReused
	}
	t.spent[id] = expiresAt
	return nil
}

func (t *tx) balance(k balanceKey) int64 {
	if v, ok := t.balances[k]; ok {
		return v
	}
	return t.store.balances[k]
}

type token struct {
	tx   *tx
	addr escrow.Address
}

func (k *token) Balance(_ context.Context, holder escrow.Address) (int64, error) {
	return k.tx.balance(balanceKey{k.addr, holder}), nil
}

func (k *token) Transfer(_ context.Context, from, to escrow.Address, amount int64) error {
	if h := k.tx.store.hook; h != nil {
		if err := h(k.addr, from, to, amount); err != nil {
			return err
		}
	}
	src := balanceKey{k.addr, from}
	dst := balanceKey{k.addr, to}
	if k.tx.balance(src) < amount {
		return escrow.ErrInsufficientBalance
	}
	k.tx.balances[src] = k.tx.balance(src) - amount
	k.tx.balances[dst] = k.tx.balance(dst) + amount
	return nil
}
