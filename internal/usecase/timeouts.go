package usecase

import (
	"context"

	"github.com/beligro/smart-carwash-sub000/internal/domain/actor"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Supervisor entry points. Each pass re-checks its condition under the
// session lock before acting, so a tick racing a user request (or another
// tick) degrades to a no-op instead of a double transition.

// ExpireAssignments times out sessions that sat assigned past the window.
// The box returns to free, the held money goes back in full.
func (c *SessionCommands) ExpireAssignments(ctx context.Context) {
	now := c.clock.Now()
	expired, err := c.sessionRepo.FindExpiredAssigned(ctx, c.cfg.AssignmentTimeout, now)
	if err != nil {
		c.logger.Error("scan for expired assignments failed", "error", err)
		return
	}

	freed := false
	for _, candidate := range expired {
		if err := c.expireAssignment(ctx, candidate.ID()); err != nil {
			c.logger.Error("assignment expiry failed", "session_id", candidate.ID(), "error", err)
			continue
		}
		freed = true
	}
	if freed {
		c.queue.InvalidateStatus(ctx)
		c.Dispatch(ctx)
	}
}

func (c *SessionCommands) expireAssignment(ctx context.Context, sessionID uuid.UUID) error {
	unlock := c.locker.Lock(sessionID)
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		unlock()
		return err
	}
	now := c.clock.Now()
	if s.Status() != session.StatusAssigned || now.Before(s.AssignmentDeadline(c.cfg.AssignmentTimeout)) {
		unlock()
		return nil
	}
	boxNumber := s.BoxNumber()
	if err := s.Expire(now); err != nil {
		unlock()
		return mapSessionErr(err)
	}

	err = c.withTx(ctx, func(tx pgx.Tx) error {
		if err := c.sessionRepo.Update(ctx, tx, s); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		if boxNumber == nil {
			return nil
		}
		box, err := c.loadBox(ctx, *boxNumber)
		if err != nil {
			return err
		}
		prev := box.Status()
		if err := box.Free(now); err != nil {
			return errs.Mark(err, errs.ErrBoxNotFound)
		}
		if err := c.boxRepo.Update(ctx, tx, box); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		c.boxes.RecordStatusChange(ctx, tx, actor.System(), box.Number(), prev, box.Status())
		return nil
	})
	unlock()
	if err != nil {
		return err
	}

	if refundErr := c.payments.RefundSessionPayments(ctx, actor.System(), sessionID); refundErr != nil {
		// Session stays expired; money is retried by staff through the
		// refund endpoint.
		c.logger.Error("refund after assignment expiry failed", "session_id", sessionID, "error", refundErr)
	}
	return nil
}

// CompleteExpiredRentals ends active sessions whose paid time ran out.
func (c *SessionCommands) CompleteExpiredRentals(ctx context.Context) {
	now := c.clock.Now()
	expired, err := c.sessionRepo.FindExpiredActive(ctx, now)
	if err != nil {
		c.logger.Error("scan for expired rentals failed", "error", err)
		return
	}

	for _, candidate := range expired {
		if err := c.completeExpiredRental(ctx, candidate.ID()); err != nil {
			c.logger.Error("rental auto-complete failed", "session_id", candidate.ID(), "error", err)
		}
	}
	if len(expired) > 0 {
		c.queue.InvalidateStatus(ctx)
	}
}

func (c *SessionCommands) completeExpiredRental(ctx context.Context, sessionID uuid.UUID) error {
	unlock := c.locker.Lock(sessionID)
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		unlock()
		return err
	}
	if s.Status() != session.StatusActive || c.clock.Now().Before(s.RentalDeadline()) {
		unlock()
		return nil
	}
	_, box, chemWasOn, err := c.finishActiveLocked(ctx, actor.System(), s)
	unlock()
	if err != nil {
		return err
	}
	c.shutBoxCoils(ctx, actor.System(), box, chemWasOn)
	return nil
}

// DisableExpiredChemistry shuts chemistry coils whose paid window elapsed.
func (c *SessionCommands) DisableExpiredChemistry(ctx context.Context) {
	now := c.clock.Now()
	running, err := c.sessionRepo.FindExpiredChemistry(ctx, now)
	if err != nil {
		c.logger.Error("scan for expired chemistry failed", "error", err)
		return
	}

	for _, candidate := range running {
		if err := c.disableExpiredChemistry(ctx, candidate.ID()); err != nil {
			c.logger.Error("chemistry auto-disable failed", "session_id", candidate.ID(), "error", err)
		}
	}
}

func (c *SessionCommands) disableExpiredChemistry(ctx context.Context, sessionID uuid.UUID) error {
	unlock := c.locker.Lock(sessionID)
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		unlock()
		return err
	}
	deadline, running := s.ChemistryDeadline()
	if !s.ChemistryRunning() || !running || c.clock.Now().Before(deadline) || s.BoxNumber() == nil {
		unlock()
		return nil
	}
	boxNumber := *s.BoxNumber()
	if err := s.DisableChemistry(c.clock.Now()); err != nil {
		unlock()
		return mapSessionErr(err)
	}
	if err := c.sessionRepo.Update(ctx, c.pool, s); err != nil {
		unlock()
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	unlock()

	box, err := c.loadBox(ctx, boxNumber)
	if err != nil {
		return err
	}
	return c.boxes.SetChemistryCoil(ctx, actor.System(), box, false)
}

// FinishExpiredCleanings frees boxes stuck in cleaning past the timeout.
func (c *SessionCommands) FinishExpiredCleanings(ctx context.Context) {
	now := c.clock.Now()
	boxes, err := c.boxRepo.FindCleaningExpired(ctx, c.cfg.CleaningTimeout, now)
	if err != nil {
		c.logger.Error("scan for expired cleanings failed", "error", err)
		return
	}

	freed := false
	for _, box := range boxes {
		prev := box.Status()
		if err := box.FinishCleaning(now); err != nil {
			continue
		}
		err := c.withTx(ctx, func(tx pgx.Tx) error {
			if err := c.boxRepo.Update(ctx, tx, box); err != nil {
				return errs.Mark(err, errs.ErrDatabaseOperationFailed)
			}
			c.boxes.RecordStatusChange(ctx, tx, actor.System(), box.Number(), prev, box.Status())
			return nil
		})
		if err != nil {
			c.logger.Error("cleaning auto-finish failed", "box", box.Number(), "error", err)
			continue
		}
		freed = true
	}
	if freed {
		c.queue.InvalidateStatus(ctx)
		c.Dispatch(ctx)
	}
}

// PurgeIdempotencyKeys drops dedup records past their TTL.
func (c *SessionCommands) PurgeIdempotencyKeys(ctx context.Context) {
	n, err := c.idemRepo.DeleteExpired(ctx, c.clock.Now())
	if err != nil {
		c.logger.Error("idempotency purge failed", "error", err)
		return
	}
	if n > 0 {
		c.logger.Debug("purged idempotency keys", "count", n)
	}
}
