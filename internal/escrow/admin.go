package escrow

import (
	"context"
	"encoding/hex"
	"errors"
)

// requireAdmin demands the stored admin's signature. A missing or wrong
// signature is reported as ErrNotAdmin.
func (s *Service) requireAdmin(ctx context.Context, tx Tx, st State, intent Intent) error {
	if err := s.require(ctx, tx, st.Admin, intent); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return ErrNotAdmin
		}
		return err
	}
	return nil
}

// Initialize sets the admin and token contract once. The named admin must
// sign the call, so nobody else can claim a fresh instance for them.
func (s *Service) Initialize(ctx context.Context, admin, token Address) error {
	return s.run(ctx, OpInitialize, "", func(ctx context.Context, tx Tx) error {
		if err := ValidateAddress(admin); err != nil {
			return err
		}
		if err := ValidateAddress(token); err != nil {
			return err
		}
		_, ok, err := tx.LoadState(ctx)
		if err != nil {
			return err
		}
		if ok {
			return ErrAlreadyInitialized
		}
		if err := s.require(ctx, tx, admin, InitializeIntent(admin, token)); err != nil {
			return err
		}
		if err := tx.SaveState(ctx, State{Admin: admin, Token: token}); err != nil {
			return err
		}
		now := s.clock.Now()
		return tx.Emit(ctx, newEvent(TopicContractInitialized, "", now, ContractInitialized{
			Admin: admin, Token: token, Timestamp: now,
		}))
	})
}

// admin runs an admin-gated mutation of the instance state. Admin
// operations ignore the pause flag.
func (s *Service) admin(ctx context.Context, intent Intent, check func() error, apply func(st *State, now uint64) Event) error {
	return s.run(ctx, intent.Op, "", func(ctx context.Context, tx Tx) error {
		st, err := loadInitialized(ctx, tx)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(); err != nil {
				return err
			}
		}
		if err := s.requireAdmin(ctx, tx, st, intent); err != nil {
			return err
		}
		ev := apply(&st, s.clock.Now())
		if err := tx.SaveState(ctx, st); err != nil {
			return err
		}
		return tx.Emit(ctx, ev)
	})
}

// SetAdmin hands administration to newAdmin.
func (s *Service) SetAdmin(ctx context.Context, newAdmin Address) error {
	check := func() error { return ValidateAddress(newAdmin) }
	return s.admin(ctx, SetAdminIntent(newAdmin), check, func(st *State, now uint64) Event {
		old := st.Admin
		st.Admin = newAdmin
		return newEvent(TopicAdminChanged, "", now, AdminChanged{OldAdmin: old, NewAdmin: newAdmin, Timestamp: now})
	})
}

// UpdateToken points custody at a new token contract.
func (s *Service) UpdateToken(ctx context.Context, newToken Address) error {
	check := func() error { return ValidateAddress(newToken) }
	return s.admin(ctx, UpdateTokenIntent(newToken), check, func(st *State, now uint64) Event {
		old := st.Token
		st.Token = newToken
		return newEvent(TopicTokenUpdated, "", now, TokenUpdated{OldToken: old, NewToken: newToken, Admin: st.Admin, Timestamp: now})
	})
}

// SetPaused toggles the kill switch.
func (s *Service) SetPaused(ctx context.Context, paused bool) error {
	return s.admin(ctx, SetPausedIntent(paused), nil, func(st *State, now uint64) Event {
		st.Paused = paused
		return newEvent(TopicPauseChanged, "", now, PauseChanged{Paused: paused, Admin: st.Admin, Timestamp: now})
	})
}

// Upgrade records a new code hash. Persistent state is untouched.
func (s *Service) Upgrade(ctx context.Context, codeHash [32]byte) error {
	h := hex.EncodeToString(codeHash[:])
	return s.admin(ctx, UpgradeIntent(codeHash), nil, func(st *State, now uint64) Event {
		st.CodeHash = h
		return newEvent(TopicContractUpgraded, "", now, ContractUpgraded{CodeHash: h, Admin: st.Admin, Timestamp: now})
	})
}

// GetAdmin returns the current admin.
func (s *Service) GetAdmin(ctx context.Context) (Address, error) {
	st, err := s.State(ctx)
	return st.Admin, err
}

// GetToken returns the token contract address.
func (s *Service) GetToken(ctx context.Context) (Address, error) {
	st, err := s.State(ctx)
	return st.Token, err
}

// State returns the instance state, failing before initialization.
func (s *Service) State(ctx context.Context) (State, error) {
	var st State
	err := s.read(ctx, "get_state", func(ctx context.Context, tx Tx) error {
		var err error
		st, err = loadInitialized(ctx, tx)
		return err
	})
	return st, err
}

// Version returns the running contract version.
func (s *Service) Version() uint32 { return Version }

// GetBalance returns addr's token balance.
func (s *Service) GetBalance(ctx context.Context, addr Address) (int64, error) {
	if err := ValidateAddress(addr); err != nil {
		return 0, err
	}
	return s.balance(ctx, "get_balance", addr)
}

// HasSufficientBalance reports whether addr holds at least amount.
func (s *Service) HasSufficientBalance(ctx context.Context, addr Address, amount int64) (bool, error) {
	if err := ValidateAddress(addr); err != nil {
		return false, err
	}
	if err := ValidateAmount(amount); err != nil {
		return false, err
	}
	bal, err := s.balance(ctx, "has_sufficient_balance", addr)
	if err != nil {
		return false, err
	}
	return bal >= amount, nil
}

// ContractBalance returns the tokens currently held in custody.
func (s *Service) ContractBalance(ctx context.Context) (int64, error) {
	return s.balance(ctx, "get_contract_balance", s.self)
}

func (s *Service) balance(ctx context.Context, op string, addr Address) (int64, error) {
	var bal int64
	err := s.read(ctx, op, func(ctx context.Context, tx Tx) error {
		st, err := loadInitialized(ctx, tx)
		if err != nil {
			return err
		}
		c, err := newCustody(tx, st, s.self)
		if err != nil {
			return err
		}
		bal, err = c.Balance(ctx, addr)
		return err
	})
	return bal, err
}
