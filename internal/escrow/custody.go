package escrow

import (
	"context"
	"errors"
	"fmt"
)

// custody moves tokens between participants and the contract's own address.
type custody struct {
	token Token
	self  Address
}

func newCustody(tx Tx, state State, self Address) (*custody, error) {
	if state.Token == "" {
		return nil, ErrTokenContractNotSet
	}
	return &custody{token: tx.Token(state.Token), self: self}, nil
}

// TransferIn pulls amount from `from` into custody.
func (c *custody) TransferIn(ctx context.Context, from Address, amount int64) error {
	return c.move(ctx, from, c.self, amount)
}

// TransferOut pays amount from custody to `to`.
func (c *custody) TransferOut(ctx context.Context, to Address, amount int64) error {
	return c.move(ctx, c.self, to, amount)
}

func (c *custody) move(ctx context.Context, from, to Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	bal, err := c.token.Balance(ctx, from)
	if err != nil {
		return fmt.Errorf("%w: balance of %s: %v", ErrTokenTransferFailed, from, err)
	}
	if bal < amount {
		return ErrInsufficientBalance
	}
	if err := c.token.Transfer(ctx, from, to, amount); err != nil {
		var code Error
		if errors.As(err, &code) && code == ErrInsufficientBalance {
			return ErrInsufficientBalance
		}
		return fmt.Errorf("%w: %v", ErrTokenTransferFailed, err)
	}
	return nil
}

// Balance reads holder's token balance.
func (c *custody) Balance(ctx context.Context, holder Address) (int64, error) {
	bal, err := c.token.Balance(ctx, holder)
	if err != nil {
		return 0, fmt.Errorf("%w: balance of %s: %v", ErrTokenTransferFailed, holder, err)
	}
	return bal, nil
}

// HasSufficient reports whether holder owns at least amount.
func (c *custody) HasSufficient(ctx context.Context, holder Address, amount int64) (bool, error) {
	bal, err := c.Balance(ctx, holder)
	if err != nil {
		return false, err
	}
	return bal >= amount, nil
}

// RequireHeld fails unless the contract holds at least amount.
func (c *custody) RequireHeld(ctx context.Context, amount int64) error {
	ok, err := c.HasSufficient(ctx, c.self, amount)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientBalance
	}
	return nil
}
