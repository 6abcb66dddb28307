package config

import (
	"time"

	"lendcore/native/oracle"
)

// AuthConfig controls bearer-token checks on the gateway.
type AuthConfig struct {
	Enabled    bool          `toml:"enabled" yaml:"enabled"`
	HMACSecret string        `toml:"hmac_secret" yaml:"hmac_secret"`
	Issuer     string        `toml:"issuer" yaml:"issuer"`
	Audience   string        `toml:"audience" yaml:"audience"`
	ClockSkew  time.Duration `toml:"clock_skew" yaml:"clock_skew"`
}

// RateLimitConfig applies per client. Zero RequestsPerMinute disables it.
type RateLimitConfig struct {
	RequestsPerMinute float64 `toml:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int     `toml:"burst" yaml:"burst"`
}

type PausesConfig struct {
	Bank bool `toml:"bank" yaml:"bank"`
}

// BankConfig lists a bank at genesis.
type BankConfig struct {
	Underlying string `toml:"underlying" yaml:"underlying"`
	Wrapped    string `toml:"wrapped" yaml:"wrapped"`
}

const (
	SourceSimple = "simple"
	SourceRedis  = "redis"
)

// OracleConfig configures one priced asset. Price is a decimal quote used by
// the simple source and ignored for redis-sourced assets.
type OracleConfig struct {
	Asset               string `toml:"asset" yaml:"asset"`
	Source              string `toml:"source" yaml:"source"`
	Price               string `toml:"price" yaml:"price"`
	BorrowFactorBps     uint64 `toml:"borrow_factor_bps" yaml:"borrow_factor_bps"`
	CollateralFactorBps uint64 `toml:"collateral_factor_bps" yaml:"collateral_factor_bps"`
	LiqIncentiveBps     uint64 `toml:"liq_incentive_bps" yaml:"liq_incentive_bps"`
}

// Token returns the risk parameters of o.
func (o OracleConfig) Token() oracle.TokenConfig {
	return oracle.TokenConfig{
		BorrowFactorBps:     o.BorrowFactorBps,
		CollateralFactorBps: o.CollateralFactorBps,
		LiqIncentiveBps:     o.LiqIncentiveBps,
	}
}

// BalanceConfig seeds a balance in base units. Asset may be "native".
type BalanceConfig struct {
	Asset  string `toml:"asset" yaml:"asset"`
	Holder string `toml:"holder" yaml:"holder"`
	Amount string `toml:"amount" yaml:"amount"`
}

// IndexConfig points at the event index. An empty DSN disables it.
type IndexConfig struct {
	DSN string `toml:"dsn" yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string        `toml:"addr" yaml:"addr"`
	Password string        `toml:"password" yaml:"password"`
	DB       int           `toml:"db" yaml:"db"`
	MaxAge   time.Duration `toml:"max_age" yaml:"max_age"`
}

type TelemetryConfig struct {
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"insecure" yaml:"insecure"`
	Headers  string `toml:"headers" yaml:"headers"`
	Traces   bool   `toml:"traces" yaml:"traces"`
	Metrics  bool   `toml:"metrics" yaml:"metrics"`
}

type LogConfig struct {
	Level      string `toml:"level" yaml:"level"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
}

// Config is the bankd node configuration.
type Config struct {
	ListenAddress string          `toml:"listen" yaml:"listen"`
	DataDir       string          `toml:"data_dir" yaml:"data_dir"`
	Environment   string          `toml:"environment" yaml:"environment"`
	Admin         string          `toml:"admin" yaml:"admin"`
	ModuleAddress string          `toml:"module_address" yaml:"module_address"`
	WrappedNative string          `toml:"wrapped_native" yaml:"wrapped_native"`
	Auth          AuthConfig      `toml:"auth" yaml:"auth"`
	RateLimit     RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	Pauses        PausesConfig    `toml:"pauses" yaml:"pauses"`
	Banks         []BankConfig    `toml:"banks" yaml:"banks"`
	Oracles       []OracleConfig  `toml:"oracles" yaml:"oracles"`
	Genesis       []BalanceConfig `toml:"genesis" yaml:"genesis"`
	Index         IndexConfig     `toml:"index" yaml:"index"`
	Redis         RedisConfig     `toml:"redis" yaml:"redis"`
	Telemetry     TelemetryConfig `toml:"telemetry" yaml:"telemetry"`
	Log           LogConfig       `toml:"log" yaml:"log"`
}
