package bootstrap

import (
	"github.com/beligro/smart-carwash-sub000/internal/pkg/config"

	"go.uber.org/fx"
)

var ConfigModule = fx.Module("config",
	fx.Provide(
		config.LoadConfig,
		// Sub-configs as standalone dependencies so components declare only
		// the knobs they read.
		func(cfg config.Config) config.EngineConfig { return cfg.Engine },
		func(cfg config.Config) config.ProviderConfig { return cfg.Provider },
		func(cfg config.Config) config.HardwareConfig { return cfg.Hardware },
	),
)
