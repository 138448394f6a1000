package components

import (
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"
	repo_impl "github.com/beligro/smart-carwash-sub000/internal/infra/repository"
	"github.com/beligro/smart-carwash-sub000/internal/usecase"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var RepositoryModule = fx.Module("repository",
	fx.Provide(
		NewDBTX,
		NewPool,
		fx.Annotate(
			repo_impl.NewSessionRepository,
			fx.As(new(usecase.SessionRepository)),
		),
		fx.Annotate(
			repo_impl.NewPaymentRepository,
			fx.As(new(usecase.PaymentRepository)),
		),
		fx.Annotate(
			repo_impl.NewWashBoxRepository,
			fx.As(new(usecase.WashBoxRepository)),
		),
		fx.Annotate(
			repo_impl.NewQueueRepository,
			fx.As(new(usecase.QueueRepository)),
		),
		fx.Annotate(
			repo_impl.NewIdempotencyRepository,
			fx.As(new(usecase.IdempotencyRepository)),
		),
		fx.Annotate(
			repo_impl.NewAuditRepository,
			fx.As(new(usecase.AuditRepository)),
		),
	),
)

func NewDBTX(pool *pgxpool.Pool) db.DBTX {
	return pool
}

func NewPool(pool *pgxpool.Pool) db.Pool {
	return pool
}
