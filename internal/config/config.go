// Package config loads server settings from .env, the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every variable. The unprefixed name is accepted as a fallback.
const EnvPrefix = "TIPLEDGER"

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Config is the server configuration.
type Config struct {
	Host        string `envconfig:"HOST"`
	Port        int    `envconfig:"PORT" default:"3001"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	Storage       string `envconfig:"STORAGE" default:"sqlite"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"tips.db"`
	ClickhouseDSN string `envconfig:"CLICKHOUSE_DSN"`

	RPCURL        string `envconfig:"SOLANA_RPC_URL" default:"https://api.devnet.solana.com"`
	WSURL         string `envconfig:"SOLANA_WS_URL"`
	KeypairPath   string `envconfig:"PLATFORM_WALLET_KEYPAIR_PATH" default:"wallets/platform-wallet.json"`
	KeypairSecret string `envconfig:"PLATFORM_WALLET_SECRET_KEY"`

	LoyaltyPercentage float64       `envconfig:"LOYALTY_REWARD_PERCENTAGE" default:"0.005"`
	ConfirmTimeout    time.Duration `envconfig:"CONFIRM_TIMEOUT" default:"60s"`
	PollInterval      time.Duration `envconfig:"POLL_INTERVAL" default:"500ms"`

	TipRatePerMinute float64  `envconfig:"TIP_RATE_PER_MINUTE" default:"30"`
	TipRateBurst     int      `envconfig:"TIP_RATE_BURST" default:"10"`
	CORSOrigins      []string `envconfig:"CORS_ORIGINS" default:"*"`

	LogFile string `envconfig:"LOG_FILE"`
}

// Load reads envFile (missing is fine), then the environment, then args.
// Variables already set in the environment win over envFile.
func Load(envFile string, args []string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseFlags overrides fields with command-line flags. Current values are the defaults.
func (c *Config) parseFlags(args []string) error {
	fl := flag.NewFlagSet("tip-ledger", flag.ContinueOnError)
	fl.SetOutput(io.Discard)

	fl.StringVar(&c.Host, "host", c.Host, "HTTP listen host")
	fl.IntVar(&c.Port, "port", c.Port, "HTTP listen port")
	fl.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Separate Prometheus metrics address (empty: main listener only)")
	fl.StringVar(&c.Storage, "storage", c.Storage, "Ledger backend: memory, postgres or sqlite")
	useMemory := fl.Bool("use-memory", false, "Use in-memory storage (same as --storage=memory)")
	fl.StringVar(&c.PostgresDSN, "postgres-dsn", c.PostgresDSN, "PostgreSQL connection string")
	fl.StringVar(&c.SQLitePath, "sqlite-path", c.SQLitePath, "SQLite database file")
	fl.StringVar(&c.ClickhouseDSN, "clickhouse-dsn", c.ClickhouseDSN, "ClickHouse analytics mirror (optional)")
	fl.StringVar(&c.RPCURL, "rpc-endpoint", c.RPCURL, "Solana RPC HTTP endpoint")
	fl.StringVar(&c.WSURL, "ws-endpoint", c.WSURL, "Solana WebSocket endpoint (optional, enables subscription confirmations)")
	fl.StringVar(&c.KeypairPath, "keypair", c.KeypairPath, "Platform wallet keypair file")
	fl.Float64Var(&c.LoyaltyPercentage, "loyalty-percentage", c.LoyaltyPercentage, "Cashback fraction paid to each side")
	fl.DurationVar(&c.ConfirmTimeout, "confirm-timeout", c.ConfirmTimeout, "Payout confirmation timeout")
	fl.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Signature status poll interval")
	fl.Float64Var(&c.TipRatePerMinute, "tip-rate", c.TipRatePerMinute, "POST /tip requests per minute per client (0 disables)")
	fl.IntVar(&c.TipRateBurst, "tip-burst", c.TipRateBurst, "POST /tip burst per client")
	origins := fl.String("cors-origins", strings.Join(c.CORSOrigins, ","), "Comma-separated allowed CORS origins")
	fl.StringVar(&c.LogFile, "log-file", c.LogFile, "Also write logs to this rotated file")

	if err := fl.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	if *useMemory {
		c.Storage = StorageMemory
	}
	c.CORSOrigins = splitList(*origins)
	return nil
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return errors.New("postgres storage requires a DSN (--postgres-dsn)")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite storage requires a file path (--sqlite-path)")
		}
	default:
		return fmt.Errorf("unknown storage %q (want memory, postgres or sqlite)", c.Storage)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RPCURL == "" {
		return errors.New("solana RPC endpoint is required")
	}
	if c.KeypairPath == "" && c.KeypairSecret == "" {
		return errors.New("platform keypair is required (file or secret)")
	}
	if !(c.LoyaltyPercentage >= 0 && c.LoyaltyPercentage < 1) {
		return fmt.Errorf("loyalty percentage must be in [0, 1), got %v", c.LoyaltyPercentage)
	}
	if c.ConfirmTimeout <= 0 {
		return errors.New("confirm timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.TipRatePerMinute < 0 {
		return errors.New("tip rate must not be negative")
	}
	return nil
}

// ListenAddr is the main HTTP listen address.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
