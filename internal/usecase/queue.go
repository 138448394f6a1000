package usecase

import (
	"context"
	"log/slog"

	"github.com/beligro/smart-carwash-sub000/internal/domain/queue"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/infra"
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/clock"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/config"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/errs"
	"github.com/beligro/smart-carwash-sub000/internal/usecase/readmodel"

	"github.com/google/uuid"
)

// QueueService owns the per-service FIFO lines and the public queue-status
// snapshot. It never assigns boxes itself; dispatching is driven from the
// session side.
type QueueService struct {
	queueRepo         QueueRepository
	boxRepo           WashBoxRepository
	statusCache       QueueStatusCache
	clock             clock.Clock
	logger            *slog.Logger
	avgServiceMinutes int
}

func NewQueueService(
	queueRepo QueueRepository,
	boxRepo WashBoxRepository,
	statusCache QueueStatusCache,
	clk clock.Clock,
	cfg config.EngineConfig,
	logger *slog.Logger,
) *QueueService {
	return &QueueService{
		queueRepo:         queueRepo,
		boxRepo:           boxRepo,
		statusCache:       statusCache,
		clock:             clk,
		logger:            logger,
		avgServiceMinutes: cfg.AvgServiceMinutes,
	}
}

// Enqueue appends the session to its service line. priority puts the entry
// ahead of everything non-priority while keeping FIFO order among priority
// entries themselves.
func (s *QueueService) Enqueue(ctx context.Context, tx db.DBTX, sessionID uuid.UUID, serviceType session.ServiceType, priority bool) error {
	entry := queue.Entry{
		SessionID:   sessionID,
		ServiceType: serviceType,
		EnqueuedAt:  s.clock.Now(),
		Priority:    priority,
	}
	if err := s.queueRepo.Insert(ctx, tx, entry); err != nil {
		if infra.IsKind(err, infra.KindConflict, infra.KindDuplicateKey) {
			// Already queued; webhook retries land here.
			return nil
		}
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	s.InvalidateStatus(ctx)
	return nil
}

func (s *QueueService) Remove(ctx context.Context, tx db.DBTX, sessionID uuid.UUID) error {
	if err := s.queueRepo.Delete(ctx, tx, sessionID); err != nil {
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	s.InvalidateStatus(ctx)
	return nil
}

// Head returns the next session to serve for a service type, or nil when the
// line is empty.
func (s *QueueService) Head(ctx context.Context, serviceType session.ServiceType) (*queue.Entry, error) {
	entry, err := s.queueRepo.Oldest(ctx, serviceType)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, nil
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return entry, nil
}

// PositionInfo reports the 1-based place in line plus a naive wait estimate.
// Position 0 means the session is not queued.
func (s *QueueService) PositionInfo(ctx context.Context, sessionID uuid.UUID) (position, waitMinutes int, err error) {
	position, err = s.queueRepo.Position(ctx, sessionID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return 0, 0, nil
		}
		return 0, 0, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return position, queue.EstimatedWaitMinutes(position-1, s.avgServiceMinutes), nil
}

// Status builds the public poll snapshot, serving from Redis when a fresh one
// exists. A cache failure degrades to a direct read, never to an error.
func (s *QueueService) Status(ctx context.Context) (*readmodel.QueueStatusRM, error) {
	if cached, err := s.statusCache.Get(ctx); err != nil {
		s.logger.Warn("queue status cache read failed", "error", err)
	} else if cached != nil {
		return cached, nil
	}

	snapshot, err := s.buildSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.statusCache.Save(ctx, snapshot); err != nil {
		s.logger.Warn("queue status cache write failed", "error", err)
	}
	return snapshot, nil
}

func (s *QueueService) buildSnapshot(ctx context.Context) (*readmodel.QueueStatusRM, error) {
	boxes, err := s.boxRepo.List(ctx)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	boxRMs := make([]readmodel.BoxRM, 0, len(boxes))
	for _, b := range boxes {
		boxRMs = append(boxRMs, readmodel.FromBox(b))
	}

	queues := make([]readmodel.QueueInfoRM, 0, len(session.ServiceTypes()))
	for _, st := range session.ServiceTypes() {
		size, err := s.queueRepo.CountByService(ctx, st)
		if err != nil {
			return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		queues = append(queues, readmodel.QueueInfoRM{
			ServiceType:          st.String(),
			Size:                 size,
			HasQueue:             size > 0,
			EstimatedWaitMinutes: queue.EstimatedWaitMinutes(size, s.avgServiceMinutes),
		})
	}

	return &readmodel.QueueStatusRM{
		Boxes:       boxRMs,
		Queues:      queues,
		GeneratedAt: s.clock.Now(),
	}, nil
}

func (s *QueueService) InvalidateStatus(ctx context.Context) {
	if err := s.statusCache.Invalidate(ctx); err != nil {
		s.logger.Warn("queue status cache invalidate failed", "error", err)
	}
}
