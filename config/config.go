package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Escrow   EscrowConfig   `mapstructure:"escrow"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// EscrowConfig tunes the lifecycle engine.
type EscrowConfig struct {
	// MultiSigThresholdUSD forces multi-sig approval at or above this USD value.
	MultiSigThresholdUSD float64 `mapstructure:"multisig_threshold_usd"`
	// MultiSigApprovals is the approval count applied when the threshold trips.
	MultiSigApprovals int `mapstructure:"multisig_approvals"`
	// AutoReleaseWindow is how long a funded escrow waits before the sweeper
	// picks it up.
	AutoReleaseWindow time.Duration `mapstructure:"auto_release_window"`
	// SweepInterval is the pause between expiry sweeper passes.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ChainConfig wires the blockchain verification backends.
type ChainConfig struct {
	EthereumRPC         string        `mapstructure:"ethereum_rpc"`
	USDTContract        string        `mapstructure:"usdt_contract"`
	EthMinConfirmations int64         `mapstructure:"eth_min_confirmations"`
	ExplorerBaseURL     string        `mapstructure:"explorer_base_url"`
	ExplorerTimeout     time.Duration `mapstructure:"explorer_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CSTORE.
// Nested keys use underscore: CSTORE_DATABASE_HOST, CSTORE_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "cstore")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "cstore")
	v.SetDefault("escrow.multisig_threshold_usd", 10000)
	v.SetDefault("escrow.multisig_approvals", 2)
	v.SetDefault("escrow.auto_release_window", "720h")
	v.SetDefault("escrow.sweep_interval", "1h")
	v.SetDefault("chain.ethereum_rpc", "http://localhost:8545")
	v.SetDefault("chain.usdt_contract", "0xdAC17F958D2ee523a2206206994597C13D831ec7")
	v.SetDefault("chain.eth_min_confirmations", 12)
	v.SetDefault("chain.explorer_base_url", "http://localhost:8081")
	v.SetDefault("chain.explorer_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: CSTORE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("CSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
