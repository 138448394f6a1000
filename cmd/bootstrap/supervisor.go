package bootstrap

import (
	"context"

	"github.com/beligro/smart-carwash-sub000/internal/supervisor"

	"go.uber.org/fx"
)

var SupervisorModule = fx.Module("supervisor",
	fx.Provide(
		supervisor.New,
	),
	fx.Invoke(
		RunSupervisor,
	),
)

func RunSupervisor(lc fx.Lifecycle, sup *supervisor.Supervisor) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			sup.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			sup.Stop()
			return nil
		},
	})
}
