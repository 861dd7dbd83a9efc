package escrow

import (
	"context"
	"fmt"
)

// DisputeTask flags an in-progress or completed task for admin resolution.
// party must be the creator or the assigned contributor.
func (s *Service) DisputeTask(ctx context.Context, party Address, taskID, reason string) (*TaskEscrow, error) {
	check := func() error {
		if err := s.validateParty(party); err != nil {
			return err
		}
		return ValidateDisputeReason(reason)
	}
	return s.transition(ctx, OpDisputeTask, taskID, check, func(ctx context.Context, tx Tx, st State, e *TaskEscrow) (Event, error) {
		if !e.HasContributor() {
			return Event{}, ErrNoContributorAssigned
		}
		switch e.Status {
		case StatusResolved, StatusDisputed, StatusCancelled:
			return Event{}, ErrTaskAlreadyResolved
		case StatusInProgress, StatusCompleted:
		default:
			return Event{}, ErrInvalidTaskStatus
		}
		if party != e.Creator && party != *e.Contributor {
			return Event{}, ErrOnlyCreatorOrContributor
		}
		if err := s.require(ctx, tx, party, DisputeIntent(party, taskID, reason)); err != nil {
			return Event{}, err
		}
		now := s.clock.Now()
		if err := tx.SaveDispute(ctx, &DisputeInfo{
			TaskID:         taskID,
			DisputingParty: party,
			Reason:         reason,
			InitiatedAt:    now,
		}); err != nil {
			return Event{}, err
		}
		e.Status = StatusDisputed
		e.DisputedAt = now
		return newEvent(TopicDisputeInitiated, taskID, now, DisputeInitiated{
			TaskID: taskID, DisputingParty: party, Reason: reason, Timestamp: now,
		}), nil
	})
}

// ResolveDispute settles a disputed task according to res. Every payout of
// one resolution happens in the same atomic call, after checking the
// contract holds the whole bounty.
func (s *Service) ResolveDispute(ctx context.Context, taskID string, res Resolution) (*TaskEscrow, error) {
	check := func() error {
		if res == nil {
			return ErrInvalidResolution
		}
		return nil
	}
	return s.transition(ctx, OpResolveDispute, taskID, check, func(ctx context.Context, tx Tx, st State, e *TaskEscrow) (Event, error) {
		if err := s.requireAdmin(ctx, tx, st, ResolveIntent(taskID, res)); err != nil {
			return Event{}, err
		}
		if e.Status != StatusDisputed {
			return Event{}, ErrTaskNotDisputed
		}
		if !e.HasContributor() {
			return Event{}, ErrNoContributorAssigned
		}
		toContributor, toCreator, err := split(res, e.BountyAmount)
		if err != nil {
			return Event{}, err
		}
		c, err := newCustody(tx, st, s.self)
		if err != nil {
			return Event{}, err
		}
		if err := c.RequireHeld(ctx, e.BountyAmount); err != nil {
			return Event{}, err
		}
		if toContributor > 0 {
			if err := c.TransferOut(ctx, *e.Contributor, toContributor); err != nil {
				return Event{}, err
			}
		}
		if toCreator > 0 {
			if err := c.TransferOut(ctx, e.Creator, toCreator); err != nil {
				return Event{}, err
			}
		}
		e.Status = StatusResolved
		now := s.clock.Now()
		return newEvent(TopicDisputeResolved, taskID, now, DisputeResolved{
			TaskID:            taskID,
			Resolution:        res.Name(),
			ContributorAmount: toContributor,
			CreatorAmount:     toCreator,
			ResolvedBy:        st.Admin,
			Timestamp:         now,
		}), nil
	})
}

// split returns the contributor's and creator's shares of total under res.
func split(res Resolution, total int64) (toContributor, toCreator int64, err error) {
	switch r := res.(type) {
	case PayContributor:
		return total, 0, nil
	case RefundCreator:
		return 0, total, nil
	case PartialPayment:
		if err := ValidatePartialPayment(r.Amount, total); err != nil {
			return 0, 0, err
		}
		return r.Amount, total - r.Amount, nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown resolution %T", ErrInvalidResolution, res)
	}
}

// GetDisputeInfo returns the dispute recorded for taskID.
func (s *Service) GetDisputeInfo(ctx context.Context, taskID string) (*DisputeInfo, error) {
	var out *DisputeInfo
	err := s.read(ctx, "get_dispute_info", func(ctx context.Context, tx Tx) error {
		if _, err := loadInitialized(ctx, tx); err != nil {
			return err
		}
		if err := ValidateTaskID(taskID); err != nil {
			return err
		}
		if _, err := tx.LoadEscrow(ctx, taskID); err != nil {
			return err
		}
		d, err := tx.LoadDispute(ctx, taskID)
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}
