package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/beligro/smart-carwash-sub000/internal/domain/actor"
	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/domain/washbox"
	"github.com/beligro/smart-carwash-sub000/internal/infra"
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"
	"github.com/beligro/smart-carwash-sub000/internal/infra/repository"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/clock"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/config"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const createSessionEndpoint = "POST /sessions"

// SessionCommands is the write side of the engine: every state machine
// transition, the dispatch pass that marries queue heads to free boxes, and
// the supervisor entry points all live here.
//
// Locking discipline: the per-session mutex is taken around load-mutate-store
// and released before any provider or coil call. Hardware and provider
// effects happen after commit; on failure the committed state is compensated
// under a fresh lock.
type SessionCommands struct {
	sessionRepo SessionRepository
	boxRepo     WashBoxRepository
	idemRepo    IdempotencyRepository
	payments    *PaymentOrchestrator
	queue       *QueueService
	boxes       *BoxRegistry
	pool        db.Pool
	locker      SessionLocker
	clock       clock.Clock
	cfg         config.EngineConfig
	logger      *slog.Logger
}

func NewSessionCommands(
	sessionRepo SessionRepository,
	boxRepo WashBoxRepository,
	idemRepo IdempotencyRepository,
	payments *PaymentOrchestrator,
	queueSvc *QueueService,
	boxes *BoxRegistry,
	pool db.Pool,
	locker SessionLocker,
	clk clock.Clock,
	cfg config.EngineConfig,
	logger *slog.Logger,
) *SessionCommands {
	return &SessionCommands{
		sessionRepo: sessionRepo,
		boxRepo:     boxRepo,
		idemRepo:    idemRepo,
		payments:    payments,
		queue:       queueSvc,
		boxes:       boxes,
		pool:        pool,
		locker:      locker,
		clock:       clk,
		cfg:         cfg,
		logger:      logger,
	}
}

type CreateSessionParams struct {
	UserID               uuid.UUID
	ServiceType          session.ServiceType
	RentalTimeMinutes    int
	WithChemistry        bool
	ChemistryTimeMinutes int
	CarNumber            string
	PaymentMethod        payment.Method
	IdempotencyKey       uuid.UUID
	RequestHash          string
}

type CreateSessionResult struct {
	Session  *session.Session
	Payment  *payment.Payment
	Replayed bool
}

// CreateSession opens a session plus its main payment. Behind the
// Idempotency-Key dedup a retried request replays the original result; the
// same key with a different body is rejected. Online payments come back
// pending with a redirect URL, cashier payments enqueue immediately.
func (c *SessionCommands) CreateSession(ctx context.Context, params CreateSessionParams) (*CreateSessionResult, error) {
	if params.IdempotencyKey == uuid.Nil {
		return nil, errs.ErrIdempotencyKeyRequired
	}

	now := c.clock.Now()
	if err := c.idemRepo.TryInsert(ctx, params.IdempotencyKey, params.UserID, createSessionEndpoint, params.RequestHash, now.Add(c.cfg.IdempotencyTTL)); err != nil {
		return nil, errs.Mark(err, errs.ErrIdempotencyCheckFailed)
	}
	rec, err := c.idemRepo.Get(ctx, params.IdempotencyKey, params.UserID)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrIdempotencyCheckFailed)
	}
	if rec.RequestHash != params.RequestHash {
		return nil, errs.ErrIdempotencyConflict
	}
	if rec.Status == repository.IdempotencyCompleted {
		return c.replaySessionCreation(ctx, rec)
	}

	if existing, err := c.sessionRepo.FindNonTerminalByUser(ctx, params.UserID); err == nil && existing != nil {
		return nil, errs.ErrActiveSessionExists
	} else if err != nil && !infra.IsKind(err, infra.KindNotFound) {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	s, err := session.NewSession(params.UserID, params.ServiceType, params.RentalTimeMinutes,
		params.WithChemistry, params.ChemistryTimeMinutes, params.CarNumber, now)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDomainValidation)
	}

	var p *payment.Payment
	err = c.withTx(ctx, func(tx pgx.Tx) error {
		p, err = c.payments.CreateMainPayment(ctx, tx, s, params.PaymentMethod)
		if err != nil {
			return err
		}
		if p.Status() == payment.StatusSucceeded {
			if err := s.Enqueue(c.clock.Now()); err != nil {
				return mapSessionErr(err)
			}
		}
		if err := c.sessionRepo.Create(ctx, tx, s); err != nil {
			if infra.IsKind(err, infra.KindConflict, infra.KindDuplicateKey) {
				return errs.ErrActiveSessionExists
			}
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		if s.Status() == session.StatusInQueue {
			if err := c.queue.Enqueue(ctx, tx, s.ID(), s.ServiceType(), false); err != nil {
				return err
			}
		}
		return c.idemRepo.MarkCompleted(ctx, tx, params.IdempotencyKey, params.UserID, s.ID())
	})
	if err != nil {
		return nil, err
	}

	if authErr := c.payments.Authorize(ctx, p); authErr != nil {
		c.logger.Warn("main payment authorization failed", "session_id", s.ID(), "error", authErr)
		c.markPaymentFailed(ctx, s.ID())
		s, _ = c.loadSession(ctx, s.ID())
		return &CreateSessionResult{Session: s, Payment: p}, nil
	}

	if s.Status() == session.StatusInQueue {
		c.Dispatch(ctx)
	}
	return &CreateSessionResult{Session: s, Payment: p}, nil
}

func (c *SessionCommands) replaySessionCreation(ctx context.Context, rec *repository.IdempotencyRecord) (*CreateSessionResult, error) {
	if rec.ResultSessionID == nil {
		return nil, errs.ErrIdempotencyCheckFailed
	}
	s, err := c.loadSession(ctx, *rec.ResultSessionID)
	if err != nil {
		return nil, err
	}
	p, err := c.payments.LatestOfType(ctx, s.ID(), payment.TypeMain)
	if err != nil {
		return nil, err
	}
	return &CreateSessionResult{Session: s, Payment: p, Replayed: true}, nil
}

// HandlePaymentEvent applies a provider webhook. Settlement is idempotent: a
// repeated delivery changes nothing and triggers no second transition.
func (c *SessionCommands) HandlePaymentEvent(ctx context.Context, paymentID uuid.UUID, succeeded bool) error {
	p, changed, err := c.payments.Settle(ctx, paymentID, succeeded)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	unlock := c.locker.Lock(p.SessionID())
	s, err := c.loadSession(ctx, p.SessionID())
	if err != nil {
		unlock()
		return err
	}

	now := c.clock.Now()
	dispatch := false
	switch p.PaymentType() {
	case payment.TypeMain:
		if succeeded {
			if err := s.Enqueue(now); err != nil {
				status := s.Status()
				unlock()
				// The session died before the provider answered. The money
				// settled, so it has to go back.
				if status.IsTerminal() {
					c.logger.Warn("payment settled for terminal session, refunding", "session_id", s.ID(), "status", status)
					if _, refundErr := c.payments.Refund(ctx, actor.System(), p.ID(), p.RemainingCents()); refundErr != nil {
						return refundErr
					}
					return nil
				}
				c.logger.Warn("payment succeeded for non-enqueueable session", "session_id", s.ID(), "status", status)
				return nil
			}
			err = c.withTx(ctx, func(tx pgx.Tx) error {
				if err := c.sessionRepo.Update(ctx, tx, s); err != nil {
					return errs.Mark(err, errs.ErrDatabaseOperationFailed)
				}
				return c.queue.Enqueue(ctx, tx, s.ID(), s.ServiceType(), false)
			})
			if err != nil {
				unlock()
				return err
			}
			dispatch = true
		} else {
			if err := s.MarkPaymentFailed(now); err == nil {
				if updErr := c.sessionRepo.Update(ctx, c.pool, s); updErr != nil {
					unlock()
					return errs.Mark(updErr, errs.ErrDatabaseOperationFailed)
				}
			}
		}
	case payment.TypeExtension:
		if succeeded {
			if err := s.ApplyExtension(now); err != nil {
				unlock()
				c.logger.Warn("extension payment succeeded but not applicable", "session_id", s.ID(), "error", err)
				return nil
			}
			if updErr := c.sessionRepo.Update(ctx, c.pool, s); updErr != nil {
				unlock()
				return errs.Mark(updErr, errs.ErrDatabaseOperationFailed)
			}
		}
		// A failed extension payment keeps the requested minutes so the user
		// can retry.
	}
	unlock()

	if dispatch {
		c.Dispatch(ctx)
	}
	return nil
}

// Dispatch runs one assignment pass over every service line. It is safe to
// run concurrently: box reservation is a compare-and-swap and losing a race
// just means trying the next box.
func (c *SessionCommands) Dispatch(ctx context.Context) {
	for _, st := range session.ServiceTypes() {
		if err := c.dispatchService(ctx, st); err != nil {
			c.logger.Error("dispatch pass failed", "service_type", st, "error", err)
		}
	}
}

func (c *SessionCommands) dispatchService(ctx context.Context, st session.ServiceType) error {
	for {
		entry, err := c.queue.Head(ctx, st)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}

		s, err := c.loadSession(ctx, entry.SessionID)
		if err != nil {
			if errors.Is(err, errs.ErrSessionNotFound) {
				if dropErr := c.queue.Remove(ctx, c.pool, entry.SessionID); dropErr != nil {
					return dropErr
				}
				continue
			}
			return err
		}

		box, err := c.reserveBoxFor(ctx, s)
		if err != nil {
			return err
		}
		if box == nil {
			// Head of line waits; assigning a later session would break FIFO.
			return nil
		}

		if err := c.assignReservedBox(ctx, s.ID(), box); err != nil {
			return err
		}
	}
}

func (c *SessionCommands) reserveBoxFor(ctx context.Context, s *session.Session) (*washbox.WashBox, error) {
	candidates, err := c.boxRepo.FindFree(ctx, s.ServiceType())
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	for _, candidate := range candidates {
		if s.WithChemistry() && !candidate.ChemistryEnabled() {
			continue
		}
		reserved, err := c.boxRepo.Reserve(ctx, c.pool, candidate.Number(), s.ID(), c.clock.Now())
		if err != nil {
			if infra.IsKind(err, infra.KindConflict, infra.KindNotFound) {
				continue // lost the race, next box
			}
			return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		return reserved, nil
	}
	return nil, nil
}

// assignReservedBox binds an already reserved box to the session. If the
// session escaped the queue in the meantime (canceled), the reservation is
// rolled back.
func (c *SessionCommands) assignReservedBox(ctx context.Context, sessionID uuid.UUID, box *washbox.WashBox) error {
	unlock := c.locker.Lock(sessionID)
	defer unlock()

	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		c.releaseReservation(ctx, box)
		return err
	}
	if err := s.Assign(box.Number(), c.clock.Now()); err != nil {
		c.releaseReservation(ctx, box)
		if dropErr := c.queue.Remove(ctx, c.pool, sessionID); dropErr != nil {
			return dropErr
		}
		return nil
	}

	err = c.withTx(ctx, func(tx pgx.Tx) error {
		if err := c.sessionRepo.Update(ctx, tx, s); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		return c.queue.Remove(ctx, tx, sessionID)
	})
	if err != nil {
		c.releaseReservation(ctx, box)
		return err
	}
	return nil
}

func (c *SessionCommands) releaseReservation(ctx context.Context, box *washbox.WashBox) {
	if err := box.Free(c.clock.Now()); err != nil {
		c.logger.Error("cannot release box reservation", "box", box.Number(), "error", err)
		return
	}
	if err := c.boxRepo.Update(ctx, c.pool, box); err != nil {
		c.logger.Error("failed to release box reservation", "box", box.Number(), "error", err)
	}
}

// StartSession turns the box light on and activates the rental countdown. The
// light is written before the transition commits so a dead coil leaves the
// session assigned and startable again.
func (c *SessionCommands) StartSession(ctx context.Context, act actor.Actor, sessionID uuid.UUID) (*session.Session, error) {
	unlock := c.locker.Lock(sessionID)
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, err
	}
	if s.Status() != session.StatusAssigned || s.BoxNumber() == nil {
		unlock()
		return nil, statusErr(s)
	}
	boxNumber := *s.BoxNumber()
	unlock()

	box, err := c.loadBox(ctx, boxNumber)
	if err != nil {
		return nil, err
	}
	if err := c.boxes.SetLight(ctx, act, box, true); err != nil {
		return nil, err
	}

	unlock = c.locker.Lock(sessionID)
	defer unlock()
	s, err = c.loadSession(ctx, sessionID)
	if err != nil {
		c.compensateLight(ctx, act, box)
		return nil, err
	}
	now := c.clock.Now()
	if err := s.Start(now); err != nil {
		c.compensateLight(ctx, act, box)
		return nil, mapSessionErr(err)
	}
	box, err = c.loadBox(ctx, boxNumber)
	if err != nil {
		c.compensateLight(ctx, act, box)
		return nil, err
	}
	prev := box.Status()
	if err := box.Occupy(now); err != nil {
		c.compensateLight(ctx, act, box)
		return nil, errs.Mark(err, errs.ErrBoxOccupied)
	}

	err = c.withTx(ctx, func(tx pgx.Tx) error {
		if err := c.sessionRepo.Update(ctx, tx, s); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		if err := c.boxRepo.Update(ctx, tx, box); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		c.boxes.RecordStatusChange(ctx, tx, act, box.Number(), prev, box.Status())
		return nil
	})
	if err != nil {
		c.compensateLight(ctx, act, box)
		return nil, err
	}

	c.queue.InvalidateStatus(ctx)
	return s, nil
}

func (c *SessionCommands) compensateLight(ctx context.Context, act actor.Actor, box *washbox.WashBox) {
	if box == nil {
		return
	}
	if err := c.boxes.SetLight(ctx, act, box, false); err != nil {
		c.logger.Error("light compensation failed", "box", box.Number(), "error", err)
	}
}

// CompleteSession ends an active rental: the box goes to cleaning, the light
// goes off, and a still-running chemistry coil is shut with it.
func (c *SessionCommands) CompleteSession(ctx context.Context, act actor.Actor, sessionID uuid.UUID) (*session.Session, error) {
	unlock := c.locker.Lock(sessionID)
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, err
	}
	s, box, chemWasOn, err := c.finishActiveLocked(ctx, act, s)
	unlock()
	if err != nil {
		return nil, err
	}

	c.shutBoxCoils(ctx, act, box, chemWasOn)
	c.queue.InvalidateStatus(ctx)
	return s, nil
}

// finishActiveLocked commits the active-to-complete transition plus the box
// release. Caller holds the session lock; coil writes are left to the caller
// so they happen after unlock.
func (c *SessionCommands) finishActiveLocked(ctx context.Context, act actor.Actor, s *session.Session) (*session.Session, *washbox.WashBox, bool, error) {
	if s.Status() != session.StatusActive || s.BoxNumber() == nil {
		return nil, nil, false, statusErr(s)
	}
	boxNumber := *s.BoxNumber()
	chemWasOn := s.ChemistryRunning()

	now := c.clock.Now()
	if err := s.Complete(now); err != nil {
		return nil, nil, false, mapSessionErr(err)
	}
	box, err := c.loadBox(ctx, boxNumber)
	if err != nil {
		return nil, nil, false, err
	}
	prev := box.Status()
	if err := box.Release(now); err != nil {
		return nil, nil, false, errs.Mark(err, errs.ErrBoxNotFound)
	}

	err = c.withTx(ctx, func(tx pgx.Tx) error {
		if err := c.sessionRepo.Update(ctx, tx, s); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		if err := c.boxRepo.Update(ctx, tx, box); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		c.boxes.RecordStatusChange(ctx, tx, act, box.Number(), prev, box.Status())
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	return s, box, chemWasOn, nil
}

// shutBoxCoils is best effort: the box already sits in cleaning, and every
// attempt lands in the audit log for the hardware crew.
func (c *SessionCommands) shutBoxCoils(ctx context.Context, act actor.Actor, box *washbox.WashBox, chemWasOn bool) {
	if box == nil {
		return
	}
	if err := c.boxes.SetLight(ctx, act, box, false); err != nil {
		c.logger.Error("light off failed after completion", "box", box.Number(), "error", err)
	}
	if chemWasOn {
		if err := c.boxes.SetChemistryCoil(ctx, act, box, false); err != nil {
			c.logger.Error("chemistry off failed after completion", "box", box.Number(), "error", err)
		}
	}
}

// CancelSession tears the session down before it goes active and refunds
// every settled payment in full. The cancellation itself commits first; a
// refund failure is returned so the caller can retry the refund alone.
func (c *SessionCommands) CancelSession(ctx context.Context, act actor.Actor, sessionID uuid.UUID) (*session.Session, error) {
	unlock := c.locker.Lock(sessionID)
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, err
	}

	var boxNumber *int
	if s.Status() == session.StatusAssigned {
		boxNumber = s.BoxNumber()
	}
	now := c.clock.Now()
	if err := s.Cancel(now); err != nil {
		unlock()
		if errors.Is(err, session.ErrTerminal) {
			return nil, errs.ErrSessionTerminal
		}
		return nil, errs.ErrCancellationForbidden
	}

	err = c.withTx(ctx, func(tx pgx.Tx) error {
		if err := c.sessionRepo.Update(ctx, tx, s); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		if err := c.queue.Remove(ctx, tx, sessionID); err != nil {
			return err
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
		c.boxes.RecordStatusChange(ctx, tx, act, box.Number(), prev, box.Status())
		return nil
	})
	unlock()
	if err != nil {
		return nil, err
	}

	if refundErr := c.payments.RefundSessionPayments(ctx, act, sessionID); refundErr != nil {
		c.logger.Error("refund after cancellation failed", "session_id", sessionID, "error", refundErr)
		return s, refundErr
	}

	if boxNumber != nil {
		c.Dispatch(ctx)
	}
	return s, nil
}

// ExtendSession books extra minutes on an active rental. Chemistry minutes
// are rejected once the coil has ever been on. Cashier extensions apply
// immediately; online ones wait for the webhook.
func (c *SessionCommands) ExtendSession(ctx context.Context, sessionID uuid.UUID, minutes, chemistryMinutes int, method payment.Method) (*session.Session, *payment.Payment, error) {
	unlock := c.locker.Lock(sessionID)
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	now := c.clock.Now()
	if err := s.RequestExtension(minutes, chemistryMinutes, now); err != nil {
		unlock()
		return nil, nil, mapSessionErr(err)
	}

	var p *payment.Payment
	err = c.withTx(ctx, func(tx pgx.Tx) error {
		p, err = c.payments.CreateExtensionPayment(ctx, tx, s, method)
		if err != nil {
			return err
		}
		if p.Status() == payment.StatusSucceeded {
			if err := s.ApplyExtension(c.clock.Now()); err != nil {
				return mapSessionErr(err)
			}
		}
		if err := c.sessionRepo.Update(ctx, tx, s); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		return nil
	})
	unlock()
	if err != nil {
		return nil, nil, err
	}

	if authErr := c.payments.Authorize(ctx, p); authErr != nil {
		c.logger.Warn("extension payment authorization failed", "session_id", sessionID, "error", authErr)
	}
	return s, p, nil
}

// RetryMainPayment opens a fresh main payment after a failed one. The failed
// row stays in history untouched.
func (c *SessionCommands) RetryMainPayment(ctx context.Context, sessionID uuid.UUID, method payment.Method) (*session.Session, *payment.Payment, error) {
	unlock := c.locker.Lock(sessionID)
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	if s.Status() != session.StatusCreated && s.Status() != session.StatusPaymentFailed {
		unlock()
		return nil, nil, errs.ErrPaymentNotRetryable
	}
	latest, err := c.payments.LatestOfType(ctx, sessionID, payment.TypeMain)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	if !latest.IsRetryable() {
		unlock()
		return nil, nil, errs.ErrPaymentNotRetryable
	}

	var p *payment.Payment
	err = c.withTx(ctx, func(tx pgx.Tx) error {
		p, err = c.payments.CreateMainPayment(ctx, tx, s, method)
		if err != nil {
			return err
		}
		if p.Status() == payment.StatusSucceeded {
			if err := s.Enqueue(c.clock.Now()); err != nil {
				return mapSessionErr(err)
			}
			if err := c.sessionRepo.Update(ctx, tx, s); err != nil {
				return errs.Mark(err, errs.ErrDatabaseOperationFailed)
			}
			return c.queue.Enqueue(ctx, tx, s.ID(), s.ServiceType(), false)
		}
		return nil
	})
	unlock()
	if err != nil {
		return nil, nil, err
	}

	if authErr := c.payments.Authorize(ctx, p); authErr != nil {
		c.logger.Warn("main payment retry authorization failed", "session_id", sessionID, "error", authErr)
		c.markPaymentFailed(ctx, sessionID)
		return s, p, nil
	}
	if s.Status() == session.StatusInQueue {
		c.Dispatch(ctx)
	}
	return s, p, nil
}

// RetryExtensionPayment re-opens payment for a still-requested extension.
func (c *SessionCommands) RetryExtensionPayment(ctx context.Context, sessionID uuid.UUID, method payment.Method) (*session.Session, *payment.Payment, error) {
	unlock := c.locker.Lock(sessionID)
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	if s.RequestedExtensionTimeMinutes() <= 0 {
		unlock()
		return nil, nil, errs.ErrNoExtensionRequested
	}
	latest, err := c.payments.LatestOfType(ctx, sessionID, payment.TypeExtension)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	if !latest.IsRetryable() {
		unlock()
		return nil, nil, errs.ErrPaymentNotRetryable
	}

	var p *payment.Payment
	err = c.withTx(ctx, func(tx pgx.Tx) error {
		p, err = c.payments.CreateExtensionPayment(ctx, tx, s, method)
		if err != nil {
			return err
		}
		if p.Status() == payment.StatusSucceeded {
			if err := s.ApplyExtension(c.clock.Now()); err != nil {
				return mapSessionErr(err)
			}
		}
		return c.sessionRepo.Update(ctx, tx, s)
	})
	unlock()
	if err != nil {
		return nil, nil, err
	}

	if authErr := c.payments.Authorize(ctx, p); authErr != nil {
		c.logger.Warn("extension retry authorization failed", "session_id", sessionID, "error", authErr)
	}
	return s, p, nil
}

// markPaymentFailed flips a created session aside after a provider failure.
func (c *SessionCommands) markPaymentFailed(ctx context.Context, sessionID uuid.UUID) {
	unlock := c.locker.Lock(sessionID)
	defer unlock()
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		c.logger.Error("cannot load session for payment failure", "session_id", sessionID, "error", err)
		return
	}
	if err := s.MarkPaymentFailed(c.clock.Now()); err != nil {
		return
	}
	if err := c.sessionRepo.Update(ctx, c.pool, s); err != nil {
		c.logger.Error("failed to mark session payment_failed", "session_id", sessionID, "error", err)
	}
}

// EnableChemistry turns the chemistry coil on exactly once per session. The
// coil is written before the commit; a dead coil leaves the session clean and
// the activation retryable.
func (c *SessionCommands) EnableChemistry(ctx context.Context, act actor.Actor, sessionID uuid.UUID) (*session.Session, error) {
	unlock := c.locker.Lock(sessionID)
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, err
	}
	if precheckErr := chemistryPrecheck(s); precheckErr != nil {
		unlock()
		return nil, precheckErr
	}
	boxNumber := *s.BoxNumber()
	unlock()

	box, err := c.loadBox(ctx, boxNumber)
	if err != nil {
		return nil, err
	}
	if !box.ChemistryEnabled() {
		return nil, errs.ErrChemistryUnavailable
	}
	if err := c.boxes.SetChemistryCoil(ctx, act, box, true); err != nil {
		return nil, err
	}

	unlock = c.locker.Lock(sessionID)
	defer unlock()
	s, err = c.loadSession(ctx, sessionID)
	if err != nil {
		c.compensateChemistry(ctx, act, box)
		return nil, err
	}
	if err := s.EnableChemistry(c.clock.Now()); err != nil {
		c.compensateChemistry(ctx, act, box)
		return nil, mapSessionErr(err)
	}
	if err := c.sessionRepo.Update(ctx, c.pool, s); err != nil {
		c.compensateChemistry(ctx, act, box)
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return s, nil
}

func chemistryPrecheck(s *session.Session) error {
	switch {
	case s.Status() != session.StatusActive:
		return statusErr(s)
	case !s.WithChemistry() || s.ServiceType() != session.ServiceWash:
		return errs.ErrChemistryUnavailable
	case s.ChemistryEndedAt() != nil:
		return errs.ErrChemistryFinished
	case s.ChemistryStartedAt() != nil:
		return errs.ErrChemistryAlreadyStarted
	case s.BoxNumber() == nil:
		return errs.ErrChemistryUnavailable
	default:
		return nil
	}
}

func (c *SessionCommands) compensateChemistry(ctx context.Context, act actor.Actor, box *washbox.WashBox) {
	if err := c.boxes.SetChemistryCoil(ctx, act, box, false); err != nil {
		c.logger.Error("chemistry compensation failed", "box", box.Number(), "error", err)
	}
}

// DisableChemistry shuts the coil early on user request. The window closes in
// the database first; if the coil write then fails the attempt is audited and
// the fault reported.
func (c *SessionCommands) DisableChemistry(ctx context.Context, act actor.Actor, sessionID uuid.UUID) (*session.Session, error) {
	unlock := c.locker.Lock(sessionID)
	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, err
	}
	if !s.ChemistryRunning() || s.BoxNumber() == nil {
		unlock()
		return nil, errs.ErrChemistryFinished
	}
	boxNumber := *s.BoxNumber()
	if err := s.DisableChemistry(c.clock.Now()); err != nil {
		unlock()
		return nil, mapSessionErr(err)
	}
	if err := c.sessionRepo.Update(ctx, c.pool, s); err != nil {
		unlock()
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	unlock()

	box, err := c.loadBox(ctx, boxNumber)
	if err != nil {
		return s, err
	}
	if err := c.boxes.SetChemistryCoil(ctx, act, box, false); err != nil {
		return s, err
	}
	return s, nil
}

// Reassign pulls an assigned session off a faulty box and puts it back at the
// front of its line. The vacated box goes through cleaning like any other
// release; staff decide whether it also needs maintenance.
func (c *SessionCommands) Reassign(ctx context.Context, act actor.Actor, sessionID uuid.UUID) (*session.Session, error) {
	unlock := c.locker.Lock(sessionID)
	defer unlock()

	s, err := c.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status() != session.StatusAssigned || s.BoxNumber() == nil {
		return nil, statusErr(s)
	}
	boxNumber := *s.BoxNumber()

	now := c.clock.Now()
	if err := s.ReturnToQueue(now); err != nil {
		return nil, mapSessionErr(err)
	}
	box, err := c.loadBox(ctx, boxNumber)
	if err != nil {
		return nil, err
	}
	prev := box.Status()
	if err := box.Release(now); err != nil {
		return nil, errs.Mark(err, errs.ErrBoxNotFound)
	}

	err = c.withTx(ctx, func(tx pgx.Tx) error {
		if err := c.sessionRepo.Update(ctx, tx, s); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		if err := c.boxRepo.Update(ctx, tx, box); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		c.boxes.RecordStatusChange(ctx, tx, act, box.Number(), prev, box.Status())
		return c.queue.Enqueue(ctx, tx, s.ID(), s.ServiceType(), true)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CompleteCleaning is the staff confirmation that a box is ready again.
func (c *SessionCommands) CompleteCleaning(ctx context.Context, act actor.Actor, boxNumber int) (*washbox.WashBox, error) {
	box, err := c.loadBox(ctx, boxNumber)
	if err != nil {
		return nil, err
	}
	prev := box.Status()
	if err := box.FinishCleaning(c.clock.Now()); err != nil {
		return nil, errs.Mark(err, errs.ErrBoxNotFound)
	}

	err = c.withTx(ctx, func(tx pgx.Tx) error {
		if err := c.boxRepo.Update(ctx, tx, box); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		c.boxes.RecordStatusChange(ctx, tx, act, box.Number(), prev, box.Status())
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.queue.InvalidateStatus(ctx)
	c.Dispatch(ctx)
	return box, nil
}

func (c *SessionCommands) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return errs.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func (c *SessionCommands) loadSession(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	s, err := c.sessionRepo.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return s, nil
}

func (c *SessionCommands) loadBox(ctx context.Context, number int) (*washbox.WashBox, error) {
	box, err := c.boxRepo.FindByNumber(ctx, number)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrBoxNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return box, nil
}

// statusErr distinguishes "too late forever" from "not right now".
func statusErr(s *session.Session) error {
	if s.Status().IsTerminal() {
		return errs.ErrSessionTerminal
	}
	return errs.ErrInvalidTransition
}

func mapSessionErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrTerminal):
		return errs.ErrSessionTerminal
	case errors.Is(err, session.ErrInvalidTransition):
		return errs.ErrInvalidTransition
	case errors.Is(err, session.ErrChemistryNotApplicable):
		return errs.ErrChemistryUnavailable
	case errors.Is(err, session.ErrChemistryAlreadyStarted):
		return errs.ErrChemistryAlreadyStarted
	case errors.Is(err, session.ErrChemistryAlreadyFinished):
		return errs.ErrChemistryFinished
	case errors.Is(err, session.ErrNoExtensionRequested):
		return errs.ErrNoExtensionRequested
	case errors.Is(err, session.ErrInvalidExtensionTime),
		errors.Is(err, session.ErrInvalidRentalTime):
		return errs.ErrDomainValidation
	default:
		return err
	}
}
