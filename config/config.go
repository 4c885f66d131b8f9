package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "TOKENMINT"
	ConfigFileName = ".tokenmint"
)

// Config holds the application configuration. It is built once at startup
// and never mutated.
type Config struct {
	Port               int
	RPCURL             string
	Commitment         string
	Network            string
	Operator           solana.PublicKey
	BaseFee            decimal.Decimal
	OptionSurcharge    decimal.Decimal
	HistoryWindow      int
	RPCTimeout         time.Duration
	ConfirmTimeout     time.Duration
	SkipPreflight      bool
	StorePath          string
	RecordTTL          time.Duration
	SweepInterval      time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	CORSOrigins        []string
	ShutdownTimeout    time.Duration
}

// New returns a viper instance with defaults, environment binding and the
// optional config file search paths
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	// Set default values
	v.SetDefault("port", 8080)
	v.SetDefault("rpc_url", "https://api.devnet.solana.com")
	v.SetDefault("commitment", "confirmed")
	v.SetDefault("network", "devnet")
	v.SetDefault("base_fee", "0.1")
	v.SetDefault("option_surcharge", "0.05")
	v.SetDefault("history_window", 50)
	v.SetDefault("rpc_timeout", "20s")
	v.SetDefault("confirm_timeout", "60s")
	v.SetDefault("skip_preflight", false)
	v.SetDefault("store_path", "")
	v.SetDefault("record_ttl", "72h")
	v.SetDefault("sweep_interval", "10m")
	v.SetDefault("rate_limit_per_minute", 30)
	v.SetDefault("rate_limit_burst", 10)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("shutdown_timeout", "10s")

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")

	return v
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := New()

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds and validates a Config from v
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:               v.GetInt("port"),
		RPCURL:             v.GetString("rpc_url"),
		Commitment:         strings.ToLower(v.GetString("commitment")),
		Network:            v.GetString("network"),
		HistoryWindow:      v.GetInt("history_window"),
		RPCTimeout:         v.GetDuration("rpc_timeout"),
		ConfirmTimeout:     v.GetDuration("confirm_timeout"),
		SkipPreflight:      v.GetBool("skip_preflight"),
		StorePath:          v.GetString("store_path"),
		RecordTTL:          v.GetDuration("record_ttl"),
		SweepInterval:      v.GetDuration("sweep_interval"),
		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),
		RateLimitBurst:     v.GetInt("rate_limit_burst"),
		CORSOrigins:        v.GetStringSlice("cors_origins"),
		ShutdownTimeout:    v.GetDuration("shutdown_timeout"),
	}

	operator := v.GetString("operator_address")
	if operator == "" {
		return nil, fmt.Errorf("operator address not found. Please set %s_OPERATOR_ADDRESS environment variable or create a %s.yaml config file", EnvPrefix, ConfigFileName)
	}
	key, err := solana.PublicKeyFromBase58(operator)
	if err != nil {
		return nil, fmt.Errorf("invalid operator address: %w", err)
	}
	cfg.Operator = key

	if cfg.BaseFee, err = decimal.NewFromString(v.GetString("base_fee")); err != nil {
		return nil, fmt.Errorf("invalid base fee: %w", err)
	}
	if cfg.OptionSurcharge, err = decimal.NewFromString(v.GetString("option_surcharge")); err != nil {
		return nil, fmt.Errorf("invalid option surcharge: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns the first problem found in the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.RPCURL == "" {
		return errors.New("rpc url is required")
	}
	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("commitment must be processed, confirmed or finalized, got %q", c.Commitment)
	}
	if c.Operator.IsZero() {
		return errors.New("operator address is required")
	}
	if c.BaseFee.IsNegative() || c.OptionSurcharge.IsNegative() {
		return errors.New("fees cannot be negative")
	}
	if c.HistoryWindow <= 0 {
		return errors.New("history window must be greater than 0")
	}
	if c.RPCTimeout <= 0 || c.ConfirmTimeout <= 0 {
		return errors.New("rpc and confirm timeouts must be greater than 0")
	}
	if c.RecordTTL <= 0 {
		return errors.New("record ttl must be greater than 0")
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("rate limit and burst must be greater than 0")
	}
	return nil
}

// ListenAddr returns the HTTP listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
