package components

import (
	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"
	"github.com/beligro/smart-carwash-sub000/internal/infra/hardware"
	"github.com/beligro/smart-carwash-sub000/internal/infra/lock"
	"github.com/beligro/smart-carwash-sub000/internal/infra/pollcache"
	"github.com/beligro/smart-carwash-sub000/internal/infra/provider"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/clock"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/config"
	"github.com/beligro/smart-carwash-sub000/internal/usecase"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseAdaptersModule,
	usecaseServicesModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
	fx.Annotate(
		payment.NewTariffPriceCalculator,
		fx.As(new(payment.PriceCalculator)),
	),
	fx.Annotate(
		lock.NewKeyedMutex,
		fx.As(new(usecase.SessionLocker)),
	),
)

// Outbound adapters: the Modbus gateway, the payment provider and the Redis
// poll cache, each behind its usecase port.
var usecaseAdaptersModule = fx.Module("usecase/adapters",
	fx.Provide(
		fx.Annotate(
			hardware.NewModbusGatewayClient,
			fx.As(new(usecase.CoilWriter)),
		),
		fx.Annotate(
			provider.NewHTTPClient,
			fx.As(new(usecase.PaymentProvider)),
		),
		fx.Annotate(
			func(client *redis.Client, cfg config.Config) *pollcache.Store {
				return pollcache.NewStore(client, cfg.Redis.CacheTTL)
			},
			fx.As(new(usecase.QueueStatusCache)),
		),
	),
)

var usecaseServicesModule = fx.Module("usecase/services",
	fx.Provide(
		usecase.NewPaymentOrchestrator,
		usecase.NewQueueService,
		usecase.NewBoxRegistry,
		usecase.NewSessionCommands,
		usecase.NewSessionQueries,
	),
)
