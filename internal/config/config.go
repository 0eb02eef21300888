package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/raffle_layer/pkg/logger"
)

// DefaultPath is read when RAFFLE_CONFIG is unset.
const DefaultPath = "config/raffled.yaml"

// Config is the process configuration of raffled.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Database  DatabaseConfig       `yaml:"database"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Auth      AuthConfig           `yaml:"auth"`
	RateLimit RateLimitConfig      `yaml:"rate_limit"`
	Raffle    RaffleConfig         `yaml:"raffle"`
	Keeper    KeeperConfig         `yaml:"keeper"`
	Chain     ChainConfig          `yaml:"chain"`
	Services  ServicesConfig       `yaml:"services"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"RAFFLE_ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"RAFFLE_SHUTDOWN_TIMEOUT"`
	// AuditFile receives a JSON line per state-changing call when set.
	AuditFile string `yaml:"audit_file" env:"RAFFLE_AUDIT_FILE"`
}

// DatabaseConfig selects the store. Driver is "memory" or "postgres".
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN             string        `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
}

// AuthConfig configures bearer-token authentication of API callers.
type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret" env:"RAFFLE_JWT_SECRET"`
	GovernanceRole string `yaml:"governance_role" env:"RAFFLE_GOVERNANCE_ROLE"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"RAFFLE_RATE_LIMIT_RPS"`
	Burst             int     `yaml:"burst" env:"RAFFLE_RATE_LIMIT_BURST"`
}

// RaffleConfig seeds the engine configuration on first start and names the
// escrow account holding raffled assets.
type RaffleConfig struct {
	Contract              string        `yaml:"contract" env:"RAFFLE_CONTRACT"`
	Name                  string        `yaml:"name" env:"RAFFLE_NAME"`
	Owner                 string        `yaml:"owner" env:"RAFFLE_OWNER"`
	FeeAddr               string        `yaml:"fee_addr" env:"RAFFLE_FEE_ADDR"`
	Oracle                string        `yaml:"oracle" env:"RAFFLE_ORACLE"`
	RaffleFee             string        `yaml:"raffle_fee" env:"RAFFLE_FEE_RATE"`
	OracleFeeAmount       uint64        `yaml:"oracle_fee_amount" env:"RAFFLE_ORACLE_FEE_AMOUNT"`
	OracleFeeDenom        string        `yaml:"oracle_fee_denom" env:"RAFFLE_ORACLE_FEE_DENOM"`
	CreationFeeAmount     uint64        `yaml:"creation_fee_amount" env:"RAFFLE_CREATION_FEE_AMOUNT"`
	CreationFeeDenom      string        `yaml:"creation_fee_denom" env:"RAFFLE_CREATION_FEE_DENOM"`
	MaxTicketsPerRaffle   uint32        `yaml:"max_tickets_per_raffle" env:"RAFFLE_MAX_TICKETS"`
	MinimumRaffleDuration time.Duration `yaml:"minimum_raffle_duration" env:"RAFFLE_MIN_DURATION"`
	RandomnessTimeout     time.Duration `yaml:"randomness_timeout" env:"RAFFLE_RANDOMNESS_TIMEOUT"`
	// AddressFormat is "neo" or "opaque"; see chain.ParseFormat.
	AddressFormat string `yaml:"address_format" env:"RAFFLE_ADDRESS_FORMAT"`
}

// ChainConfig points at a Neo node used to evaluate account conditions.
// Denoms maps coin denoms to their NEP-17 contract hash.
type ChainConfig struct {
	RPCURL  string            `yaml:"rpc_url" env:"RAFFLE_NEO_RPC_URL"`
	Timeout time.Duration     `yaml:"timeout" env:"RAFFLE_NEO_RPC_TIMEOUT"`
	Denoms  map[string]string `yaml:"denoms"`
}

// KeeperConfig schedules the background sweep.
type KeeperConfig struct {
	Enabled  bool   `yaml:"enabled" env:"RAFFLE_KEEPER_ENABLED"`
	Schedule string `yaml:"schedule" env:"RAFFLE_KEEPER_SCHEDULE"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Auth: AuthConfig{
			GovernanceRole: "governance",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Raffle: RaffleConfig{
			Name:              "raffles",
			RaffleFee:         "0.05",
			OracleFeeDenom:    "ustars",
			CreationFeeAmount: 100,
			CreationFeeDenom:  "ustars",
			RandomnessTimeout: 6 * time.Second,
			AddressFormat:     "neo",
		},
		Keeper: KeeperConfig{
			Enabled:  true,
			Schedule: "@every 30s",
		},
		Services: DefaultServicesConfig(),
	}
}

// Load reads a .env file if present, then the YAML file at path (when it
// exists), then environment overrides.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("RAFFLE_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings the process cannot start without.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if strings.TrimSpace(c.Raffle.Oracle) == "" {
		return errors.New("raffle.oracle is required")
	}
	if strings.TrimSpace(c.Raffle.Contract) == "" {
		return errors.New("raffle.contract is required")
	}
	return c.Services.Validate()
}
