package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: values that differ between environments (port, DB connection,
//   provider credentials) and security settings
// - default: values common across all environments (timeouts, tick intervals)
// -----------------------------------------------------------------------------

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	JWT      JWTConfig
	Engine   EngineConfig
	Hardware HardwareConfig
	Provider ProviderConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string        `envconfig:"REDIS_PASSWORD" default:""`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL time.Duration `envconfig:"REDIS_CACHE_TTL" default:"3s"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization,Idempotency-Key"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

type JWTConfig struct {
	Secret string `envconfig:"JWT_SECRET" required:"true"`
}

// EngineConfig holds every timing knob of the orchestration core.
type EngineConfig struct {
	AssignmentTimeout time.Duration `envconfig:"ENGINE_ASSIGNMENT_TIMEOUT" default:"3m"`
	CleaningTimeout   time.Duration `envconfig:"ENGINE_CLEANING_TIMEOUT" default:"5m"`
	SupervisorTick    time.Duration `envconfig:"ENGINE_SUPERVISOR_TICK" default:"5s"`
	IdempotencyTTL    time.Duration `envconfig:"ENGINE_IDEMPOTENCY_TTL" default:"1h"`
	AvgServiceMinutes int           `envconfig:"ENGINE_AVG_SERVICE_MINUTES" default:"15"`
}

type HardwareConfig struct {
	GatewayURL string        `envconfig:"MODBUS_GATEWAY_URL" required:"true"`
	Timeout    time.Duration `envconfig:"MODBUS_TIMEOUT" default:"3s"`
}

type ProviderConfig struct {
	BaseURL       string        `envconfig:"PAYMENT_PROVIDER_URL" required:"true"`
	APIKey        string        `envconfig:"PAYMENT_PROVIDER_API_KEY" required:"true"`
	Timeout       time.Duration `envconfig:"PAYMENT_PROVIDER_TIMEOUT" default:"10s"`
	CashierRefund bool          `envconfig:"PAYMENT_CASHIER_REFUND_ONLY" default:"true"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func LoadConfig() (Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889",
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433",
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
		},
		Log: LogConfig{
			Level: "error",
		},
		JWT: JWTConfig{
			Secret: "test-secret",
		},
		Engine: EngineConfig{
			AssignmentTimeout: 3 * time.Minute,
			CleaningTimeout:   5 * time.Minute,
			SupervisorTick:    time.Second,
			IdempotencyTTL:    time.Hour,
			AvgServiceMinutes: 15,
		},
	}
}
