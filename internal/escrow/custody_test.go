package escrow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubToken struct {
	balances    map[Address]int64
	balanceErr  error
	transferErr error
	transfers   int
}

func (s *stubToken) Balance(_ context.Context, holder Address) (int64, error) {
	if s.balanceErr != nil {
		return 0, s.balanceErr
	}
	return s.balances[holder], nil
}

func (s *stubToken) Transfer(_ context.Context, from, to Address, amount int64) error {
	if s.transferErr != nil {
		return s.transferErr
	}
	s.transfers++
	s.balances[from] -= amount
	s.balances[to] += amount
	return nil
}

func TestCustodyMoves(t *testing.T) {
	tok := &stubToken{balances: map[Address]int64{"alice": 500}}
	c := &custody{token: tok, self: "vault"}
	ctx := context.Background()

	require.NoError(t, c.TransferIn(ctx, "alice", 300))
	require.NoError(t, c.TransferOut(ctx, "bob", 100))
	assert.Equal(t, int64(200), tok.balances["alice"])
	assert.Equal(t, int64(200), tok.balances["vault"])
	assert.Equal(t, int64(100), tok.balances["bob"])

	require.NoError(t, c.RequireHeld(ctx, 200))
	assert.ErrorIs(t, c.RequireHeld(ctx, 201), ErrInsufficientBalance)
}

func TestCustodyPrechecksBalance(t *testing.T) {
	tok := &stubToken{balances: map[Address]int64{"alice": 10}}
	c := &custody{token: tok, self: "vault"}

	err := c.TransferIn(context.Background(), "alice", 11)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Zero(t, tok.transfers)

	assert.ErrorIs(t, c.TransferIn(context.Background(), "alice", 0), ErrInvalidAmount)
}

func TestCustodyWrapsTokenFailures(t *testing.T) {
	tok := &stubToken{balances: map[Address]int64{"alice": 10}, transferErr: errors.New("trap")}
	c := &custody{token: tok, self: "vault"}

	err := c.TransferIn(context.Background(), "alice", 5)
	assert.ErrorIs(t, err, ErrTokenTransferFailed)
	assert.Contains(t, err.Error(), "trap")

	tok.balanceErr = errors.New("unreachable")
	_, err = c.HasSufficient(context.Background(), "alice", 1)
	assert.ErrorIs(t, err, ErrTokenTransferFailed)
}

func TestNewCustodyRequiresToken(t *testing.T) {
	_, err := newCustody(nil, State{}, "vault")
	assert.ErrorIs(t, err, ErrTokenContractNotSet)
}
