package usecase

import (
	"context"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/actor"
	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"
	"github.com/beligro/smart-carwash-sub000/internal/domain/queue"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/domain/washbox"
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"
	"github.com/beligro/smart-carwash-sub000/internal/infra/provider"
	"github.com/beligro/smart-carwash-sub000/internal/infra/repository"
	"github.com/beligro/smart-carwash-sub000/internal/usecase/readmodel"

	"github.com/google/uuid"
)

type SessionRepository interface {
	Create(ctx context.Context, tx db.DBTX, s *session.Session) error
	Update(ctx context.Context, tx db.DBTX, s *session.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*session.Session, error)
	FindNonTerminalByUser(ctx context.Context, userID uuid.UUID) (*session.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*session.Session, error)
	FindExpiredAssigned(ctx context.Context, window time.Duration, now time.Time) ([]*session.Session, error)
	FindExpiredActive(ctx context.Context, now time.Time) ([]*session.Session, error)
	FindExpiredChemistry(ctx context.Context, now time.Time) ([]*session.Session, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, tx db.DBTX, p *payment.Payment) error
	Update(ctx context.Context, tx db.DBTX, p *payment.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*payment.Payment, error)
	FindLatestByType(ctx context.Context, sessionID uuid.UUID, paymentType payment.Type) (*payment.Payment, error)
	FindPending(ctx context.Context, sessionID uuid.UUID, paymentType payment.Type) (*payment.Payment, error)
}

type WashBoxRepository interface {
	Create(ctx context.Context, tx db.DBTX, b *washbox.WashBox) error
	Update(ctx context.Context, tx db.DBTX, b *washbox.WashBox) error
	Reserve(ctx context.Context, tx db.DBTX, number int, sessionID uuid.UUID, now time.Time) (*washbox.WashBox, error)
	FindByNumber(ctx context.Context, number int) (*washbox.WashBox, error)
	FindFree(ctx context.Context, serviceType session.ServiceType) ([]*washbox.WashBox, error)
	List(ctx context.Context) ([]*washbox.WashBox, error)
	FindCleaningExpired(ctx context.Context, timeout time.Duration, now time.Time) ([]*washbox.WashBox, error)
}

type QueueRepository interface {
	Insert(ctx context.Context, tx db.DBTX, e queue.Entry) error
	Delete(ctx context.Context, tx db.DBTX, sessionID uuid.UUID) error
	Oldest(ctx context.Context, serviceType session.ServiceType) (*queue.Entry, error)
	ListByService(ctx context.Context, serviceType session.ServiceType) ([]queue.Entry, error)
	Position(ctx context.Context, sessionID uuid.UUID) (int, error)
	CountByService(ctx context.Context, serviceType session.ServiceType) (int, error)
}

type IdempotencyRepository interface {
	TryInsert(ctx context.Context, key, userID uuid.UUID, endpoint, requestHash string, expiresAt time.Time) error
	Get(ctx context.Context, key, userID uuid.UUID) (*repository.IdempotencyRecord, error)
	MarkCompleted(ctx context.Context, tx db.DBTX, key, userID, resultSessionID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type AuditRepository interface {
	Append(ctx context.Context, tx db.DBTX, act actor.Actor, boxNumber int, action, prevValue, newValue string, success bool, detail string, now time.Time) error
	ListByBox(ctx context.Context, boxNumber int, limit int) ([]repository.AuditEntry, error)
}

type CoilWriter interface {
	SetCoil(ctx context.Context, register string, value bool) error
}

type PaymentProvider interface {
	CreatePayment(ctx context.Context, req provider.CreatePaymentRequest) (*provider.CreatePaymentResult, error)
	RefundPayment(ctx context.Context, providerID string, amountCents int64) error
}

type QueueStatusCache interface {
	Save(ctx context.Context, snapshot *readmodel.QueueStatusRM) error
	Get(ctx context.Context) (*readmodel.QueueStatusRM, error)
	Invalidate(ctx context.Context) error
}

// SessionLocker serializes all mutation of a single session or box.
type SessionLocker interface {
	Lock(key uuid.UUID) func()
}
