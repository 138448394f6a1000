package components

import (
	"github.com/beligro/smart-carwash-sub000/internal/handler"
	"github.com/beligro/smart-carwash-sub000/internal/handler/api"
	"github.com/beligro/smart-carwash-sub000/internal/handler/middleware"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewSessionHandler,
		api.NewPaymentHandler,
		api.NewQueueHandler,
		api.NewAdminHandler,
		middleware.NewAuthMiddleware,
	),
	fx.Invoke(handler.NewRouter),
)
