package usecase

import (
	"context"

	"github.com/beligro/smart-carwash-sub000/internal/domain/actor"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/infra"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/clock"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/config"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/errs"
	"github.com/beligro/smart-carwash-sub000/internal/usecase/readmodel"

	"github.com/google/uuid"
)

// SessionQueries serves the poll endpoints. Deadlines are computed here, on
// the server clock, so every client renders the same countdown.
type SessionQueries struct {
	sessionRepo SessionRepository
	payments    *PaymentOrchestrator
	queue       *QueueService
	clock       clock.Clock
	cfg         config.EngineConfig
}

func NewSessionQueries(
	sessionRepo SessionRepository,
	payments *PaymentOrchestrator,
	queueSvc *QueueService,
	clk clock.Clock,
	cfg config.EngineConfig,
) *SessionQueries {
	return &SessionQueries{
		sessionRepo: sessionRepo,
		payments:    payments,
		queue:       queueSvc,
		clock:       clk,
		cfg:         cfg,
	}
}

// GetSession returns one session enriched with its phase deadline. Customers
// only see their own sessions; a foreign id reads as not found.
func (q *SessionQueries) GetSession(ctx context.Context, act actor.Actor, sessionID uuid.UUID) (*readmodel.SessionRM, error) {
	s, err := q.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	if act.Role == actor.RoleUser && s.UserID() != act.ID {
		return nil, errs.ErrSessionNotFound
	}
	return q.enrich(ctx, s)
}

// GetActiveSession resolves the caller's current non-terminal session.
func (q *SessionQueries) GetActiveSession(ctx context.Context, userID uuid.UUID) (*readmodel.SessionRM, error) {
	s, err := q.sessionRepo.FindNonTerminalByUser(ctx, userID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return q.enrich(ctx, s)
}

func (q *SessionQueries) ListUserSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*readmodel.SessionRM, error) {
	sessions, err := q.sessionRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	result := make([]*readmodel.SessionRM, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, readmodel.FromSession(s))
	}
	return result, nil
}

func (q *SessionQueries) GetSessionPayments(ctx context.Context, act actor.Actor, sessionID uuid.UUID) ([]*readmodel.PaymentRM, error) {
	s, err := q.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	if act.Role == actor.RoleUser && s.UserID() != act.ID {
		return nil, errs.ErrSessionNotFound
	}

	payments, err := q.payments.SessionPayments(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	result := make([]*readmodel.PaymentRM, 0, len(payments))
	for _, p := range payments {
		result = append(result, readmodel.FromPayment(p))
	}
	return result, nil
}

func (q *SessionQueries) enrich(ctx context.Context, s *session.Session) (*readmodel.SessionRM, error) {
	rm := readmodel.FromSession(s)
	now := q.clock.Now()

	switch s.Status() {
	case session.StatusInQueue:
		position, wait, err := q.queue.PositionInfo(ctx, s.ID())
		if err != nil {
			return nil, err
		}
		if position > 0 {
			rm.QueuePosition = &position
			rm.EstimatedWaitMinutes = &wait
		}
	case session.StatusAssigned:
		rm.WithDeadline(s.AssignmentDeadline(q.cfg.AssignmentTimeout), now)
	case session.StatusActive:
		rm.WithDeadline(s.RentalDeadline(), now)
	}
	return rm, nil
}
