package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Operation names, used as signature intents and metric labels.
const (
	OpInitialize        = "initialize"
	OpSetAdmin          = "set_admin"
	OpUpdateToken       = "update_token"
	OpSetPaused         = "set_paused"
	OpUpgrade           = "upgrade"
	OpCreateEscrow      = "create_escrow"
	OpAssignContributor = "assign_contributor"
	OpCompleteTask      = "complete_task"
	OpApproveCompletion = "approve_completion"
	OpDisputeTask       = "dispute_task"
	OpResolveDispute    = "resolve_dispute"
	OpRefund            = "refund"
	OpIncreaseBounty    = "increase_bounty"
	OpDecreaseBounty    = "decrease_bounty"
)

// Version is reported by the version operation.
const Version uint32 = 2

// Service runs escrow operations against a Backend. Each exported method is
// one atomic call.
type Service struct {
	backend Backend
	authz   Authorizer
	self    Address
	clock   Clock
	log     *slog.Logger
	obs     Observer
}

// NewService returns a Service custodying funds at self, the contract's own
// token address.
func NewService(backend Backend, authz Authorizer, self Address, opts Options) *Service {
	s := &Service{
		backend: backend,
		authz:   authz,
		self:    self,
		clock:   opts.Clock,
		log:     opts.Logger,
		obs:     opts.Observer,
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.obs == nil {
		s.obs = nopObserver{}
	}
	return s
}

// Address returns the contract's custody address.
func (s *Service) Address() Address { return s.self }

func (s *Service) run(ctx context.Context, op, taskID string, fn func(ctx context.Context, tx Tx) error) error {
	start := time.Now()
	err := s.backend.Atomic(ctx, fn)
	s.obs.ObserveOperation(op, err, time.Since(start))
	if err != nil {
		code, _ := AsError(err)
		s.log.WarnContext(ctx, "escrow operation failed", "operation", op, "task_id", taskID, "error", err, "error_code", code.Code())
		return err
	}
	s.log.InfoContext(ctx, "escrow operation", "operation", op, "task_id", taskID)
	return nil
}

func (s *Service) read(ctx context.Context, op string, fn func(ctx context.Context, tx Tx) error) error {
	start := time.Now()
	err := s.backend.Atomic(ctx, fn)
	s.obs.ObserveOperation(op, err, time.Since(start))
	return err
}

func loadInitialized(ctx context.Context, tx Tx) (State, error) {
	st, ok, err := tx.LoadState(ctx)
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{}, ErrContractNotInitialized
	}
	return st, nil
}

// loadLive additionally rejects calls while paused.
func loadLive(ctx context.Context, tx Tx) (State, error) {
	st, err := loadInitialized(ctx, tx)
	if err != nil {
		return State{}, err
	}
	if st.Paused {
		return State{}, ErrContractPaused
	}
	return st, nil
}

// require demands addr's signature over intent and spends it in tx.
func (s *Service) require(ctx context.Context, tx Tx, addr Address, intent Intent) error {
	if s.authz == nil {
		return ErrUnauthorized
	}
	g, err := s.authz.RequireAuth(ctx, addr, intent)
	if err != nil {
		if _, ok := AsError(err); ok {
			return err
		}
		return errors.Join(ErrUnauthorized, err)
	}
	if g.ID == "" {
		return nil
	}
	return tx.ConsumeSignature(ctx, g.ID, g.ExpiresAt)
}

// validateParty rejects malformed addresses and the custody address, which
// can never be a creator, contributor or disputing party.
func (s *Service) validateParty(addr Address) error {
	if err := ValidateAddress(addr); err != nil {
		return err
	}
	if addr == s.self {
		return fmt.Errorf("%w: %s is the custody address", ErrInvalidAddress, addr)
	}
	return nil
}

// CreateEscrow locks amount from creator against taskID.
func (s *Service) CreateEscrow(ctx context.Context, creator Address, taskID, issueURL string, amount int64) (*TaskEscrow, error) {
	var created *TaskEscrow
	err := s.run(ctx, OpCreateEscrow, taskID, func(ctx context.Context, tx Tx) error {
		st, err := loadLive(ctx, tx)
		if err != nil {
			return err
		}
		if err := s.validateParty(creator); err != nil {
			return err
		}
		if err := ValidateTaskID(taskID); err != nil {
			return err
		}
		if err := ValidateIssueURL(issueURL); err != nil {
			return err
		}
		if err := ValidateAmount(amount); err != nil {
			return err
		}
		if err := s.require(ctx, tx, creator, CreateEscrowIntent(creator, taskID, issueURL, amount)); err != nil {
			return err
		}
		exists, err := tx.HasEscrow(ctx, taskID)
		if err != nil {
			return err
		}
		if exists {
			return ErrTaskAlreadyExists
		}
		c, err := newCustody(tx, st, s.self)
		if err != nil {
			return err
		}
		if err := c.TransferIn(ctx, creator, amount); err != nil {
			return err
		}
		now := s.clock.Now()
		e := &TaskEscrow{
			TaskID:       taskID,
			IssueURL:     issueURL,
			Creator:      creator,
			BountyAmount: amount,
			Status:       StatusOpen,
			CreatedAt:    now,
		}
		if err := tx.SaveEscrow(ctx, e); err != nil {
			return err
		}
		st.TaskCount++
		if err := tx.SaveState(ctx, st); err != nil {
			return err
		}
		created = e
		return tx.Emit(ctx, newEvent(TopicEscrowCreated, taskID, now, EscrowCreated{
			TaskID: taskID, Creator: creator, BountyAmount: amount, Timestamp: now,
		}))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetEscrow returns the record for taskID.
func (s *Service) GetEscrow(ctx context.Context, taskID string) (*TaskEscrow, error) {
	if err := ValidateTaskID(taskID); err != nil {
		return nil, err
	}
	var out *TaskEscrow
	err := s.read(ctx, "get_escrow", func(ctx context.Context, tx Tx) error {
		e, err := tx.LoadEscrow(ctx, taskID)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// TaskCount returns the number of escrows ever created.
func (s *Service) TaskCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.read(ctx, "get_task_count", func(ctx context.Context, tx Tx) error {
		st, _, err := tx.LoadState(ctx)
		n = st.TaskCount
		return err
	})
	return n, err
}

// AssignContributor moves an open task to in_progress.
func (s *Service) AssignContributor(ctx context.Context, taskID string, contributor Address) (*TaskEscrow, error) {
	check := func() error { return s.validateParty(contributor) }
	return s.transition(ctx, OpAssignContributor, taskID, check, func(ctx context.Context, tx Tx, st State, e *TaskEscrow) (Event, error) {
		if err := s.require(ctx, tx, e.Creator, AssignContributorIntent(taskID, contributor)); err != nil {
			return Event{}, err
		}
		if e.HasContributor() {
			return Event{}, ErrContributorAlreadyAssigned
		}
		if e.Status != StatusOpen {
			return Event{}, ErrInvalidTaskStatus
		}
		c := contributor
		e.Contributor = &c
		e.Status = StatusInProgress
		now := s.clock.Now()
		return newEvent(TopicContributorAssigned, taskID, now, ContributorAssigned{
			TaskID: taskID, Contributor: contributor, Timestamp: now,
		}), nil
	})
}

// CompleteTask marks work as submitted by the contributor.
func (s *Service) CompleteTask(ctx context.Context, taskID string) (*TaskEscrow, error) {
	return s.transition(ctx, OpCompleteTask, taskID, nil, func(ctx context.Context, tx Tx, st State, e *TaskEscrow) (Event, error) {
		if e.Status != StatusInProgress {
			return Event{}, ErrInvalidTaskStatus
		}
		if !e.HasContributor() {
			return Event{}, ErrNoContributorAssigned
		}
		if err := s.require(ctx, tx, *e.Contributor, TaskIntent(OpCompleteTask, taskID)); err != nil {
			return Event{}, err
		}
		now := s.clock.Now()
		e.Status = StatusCompleted
		e.CompletedAt = now
		return newEvent(TopicTaskCompleted, taskID, now, TaskCompleted{
			TaskID: taskID, Contributor: *e.Contributor, Timestamp: now,
		}), nil
	})
}

// ApproveCompletion pays the full bounty to the contributor and resolves the task.
func (s *Service) ApproveCompletion(ctx context.Context, taskID string) (*TaskEscrow, error) {
	return s.transition(ctx, OpApproveCompletion, taskID, nil, func(ctx context.Context, tx Tx, st State, e *TaskEscrow) (Event, error) {
		if err := s.require(ctx, tx, e.Creator, TaskIntent(OpApproveCompletion, taskID)); err != nil {
			return Event{}, err
		}
		if e.Status != StatusCompleted {
			return Event{}, ErrTaskNotCompleted
		}
		if !e.HasContributor() {
			return Event{}, ErrNoContributorAssigned
		}
		c, err := newCustody(tx, st, s.self)
		if err != nil {
			return Event{}, err
		}
		if err := c.TransferOut(ctx, *e.Contributor, e.BountyAmount); err != nil {
			return Event{}, err
		}
		e.Status = StatusResolved
		now := s.clock.Now()
		return newEvent(TopicFundsReleased, taskID, now, FundsReleased{
			TaskID: taskID, Contributor: *e.Contributor, Amount: e.BountyAmount, Timestamp: now,
		}), nil
	})
}

// Refund returns the bounty of an unassigned task to its creator.
func (s *Service) Refund(ctx context.Context, taskID string) (*TaskEscrow, error) {
	return s.transition(ctx, OpRefund, taskID, nil, func(ctx context.Context, tx Tx, st State, e *TaskEscrow) (Event, error) {
		if err := s.require(ctx, tx, e.Creator, TaskIntent(OpRefund, taskID)); err != nil {
			return Event{}, err
		}
		if e.HasContributor() {
			return Event{}, ErrContributorAlreadyAssigned
		}
		if e.Status != StatusOpen {
			return Event{}, ErrInvalidTaskStatus
		}
		c, err := newCustody(tx, st, s.self)
		if err != nil {
			return Event{}, err
		}
		if err := c.TransferOut(ctx, e.Creator, e.BountyAmount); err != nil {
			return Event{}, err
		}
		e.Status = StatusCancelled
		now := s.clock.Now()
		return newEvent(TopicRefundProcessed, taskID, now, RefundProcessed{
			TaskID: taskID, Creator: e.Creator, Amount: e.BountyAmount, Timestamp: now,
		}), nil
	})
}

// IncreaseBounty adds amount from the creator to an open task's bounty.
func (s *Service) IncreaseBounty(ctx context.Context, creator Address, taskID string, amount int64) (*TaskEscrow, error) {
	return s.changeBounty(ctx, OpIncreaseBounty, creator, taskID, amount)
}

// DecreaseBounty returns amount of an open task's bounty to the creator.
// The remaining bounty must stay at or above MinAmount.
func (s *Service) DecreaseBounty(ctx context.Context, creator Address, taskID string, amount int64) (*TaskEscrow, error) {
	return s.changeBounty(ctx, OpDecreaseBounty, creator, taskID, amount)
}

func (s *Service) changeBounty(ctx context.Context, op string, creator Address, taskID string, amount int64) (*TaskEscrow, error) {
	check := func() error { return ValidateAmount(amount) }
	return s.transition(ctx, op, taskID, check, func(ctx context.Context, tx Tx, st State, e *TaskEscrow) (Event, error) {
		if e.Creator != creator {
			return Event{}, ErrNotTaskCreator
		}
		if err := s.require(ctx, tx, creator, BountyIntent(op, creator, taskID, amount)); err != nil {
			return Event{}, err
		}
		if e.Status != StatusOpen {
			return Event{}, ErrInvalidTaskStatus
		}
		c, err := newCustody(tx, st, s.self)
		if err != nil {
			return Event{}, err
		}
		topic := TopicBountyIncreased
		if op == OpIncreaseBounty {
			total, err := addChecked(e.BountyAmount, amount)
			if err != nil {
				return Event{}, err
			}
			if total > MaxAmount {
				return Event{}, ErrInvalidTokenAmount
			}
			if err := c.TransferIn(ctx, creator, amount); err != nil {
				return Event{}, err
			}
			e.BountyAmount = total
		} else {
			topic = TopicBountyDecreased
			if amount >= e.BountyAmount || e.BountyAmount-amount < MinAmount {
				return Event{}, ErrInvalidAmount
			}
			if err := c.TransferOut(ctx, creator, amount); err != nil {
				return Event{}, err
			}
			e.BountyAmount -= amount
		}
		now := s.clock.Now()
		return newEvent(topic, taskID, now, BountyChanged{
			TaskID: taskID, Delta: amount, NewAmount: e.BountyAmount, Timestamp: now,
		}), nil
	})
}

// transitionFunc mutates e in place and returns the event to emit.
type transitionFunc func(ctx context.Context, tx Tx, st State, e *TaskEscrow) (Event, error)

// transition runs the shared skeleton of a per-task mutation: guards,
// input checks, load, apply, persist, emit. check may be nil.
func (s *Service) transition(ctx context.Context, op, taskID string, check func() error, apply transitionFunc) (*TaskEscrow, error) {
	var out *TaskEscrow
	err := s.run(ctx, op, taskID, func(ctx context.Context, tx Tx) error {
		st, err := loadLive(ctx, tx)
		if err != nil {
			return err
		}
		if err := ValidateTaskID(taskID); err != nil {
			return err
		}
		if check != nil {
			if err := check(); err != nil {
				return err
			}
		}
		e, err := tx.LoadEscrow(ctx, taskID)
		if err != nil {
			return err
		}
		ev, err := apply(ctx, tx, st, e)
		if err != nil {
			return err
		}
		if err := tx.SaveEscrow(ctx, e); err != nil {
			return err
		}
		out = e
		return tx.Emit(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
