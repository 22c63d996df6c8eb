package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the reward API server configuration
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Oracle         OracleConfig         `yaml:"oracle"`
	Rewards        RewardsConfig        `yaml:"rewards"`
	Auth           AuthConfig           `yaml:"auth"`
	Logging        LoggingConfig        `yaml:"logging"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Metrics        MetricsConfig        `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"60s"`
}

// DatabaseConfig contains database connection settings.
// Driver "memory" keeps accounts and transactions in process (development only).
type DatabaseConfig struct {
	Driver           string `yaml:"driver" default:"postgres" validate:"oneof=postgres memory"`
	Host             string `yaml:"host" default:"localhost" validate:"required_if=Driver postgres"`
	Port             int    `yaml:"port" default:"5432"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	Database         string `yaml:"database" default:"qtx_rewards"`
	SSLMode          string `yaml:"ssl_mode" default:"disable"`
	MaxUpdateRetries int    `yaml:"max_update_retries" default:"5" validate:"gte=1"`
}

// RedisConfig contains settings for the payment verification cache.
// An empty address keeps the cache in process.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// OracleConfig contains TON payment verification settings
type OracleConfig struct {
	BaseURL          string        `yaml:"base_url" default:"https://tonapi.io" validate:"required,url"`
	APIKey           string        `yaml:"api_key"`
	Network          string        `yaml:"network" default:"mainnet" validate:"oneof=mainnet testnet"`
	ReceivingWallet  string        `yaml:"receiving_wallet" validate:"required"`
	Timeout          time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
	LookbackWindow   time.Duration `yaml:"lookback_window" default:"5m" validate:"gt=0"`
	Tolerance        string        `yaml:"tolerance" default:"0.001"`
	EventsLimit      int           `yaml:"events_limit" default:"10" validate:"gt=0,lte=100"`
	RequestsPerSec   float64       `yaml:"requests_per_second" default:"4"`
	VerificationTTL  time.Duration `yaml:"verification_ttl" default:"24h"`
	InFlightLockTTL  time.Duration `yaml:"in_flight_lock_ttl" default:"1m"`
	PaymentLinkToken string        `yaml:"payment_link_token" default:"TON"`
}

// RewardsConfig holds the reward catalog. Decimal amounts are kept as strings
// so that they are parsed exactly.
type RewardsConfig struct {
	Token                  string                `yaml:"token" default:"QTX"`
	Timezone               string                `yaml:"timezone" default:"Local"`
	BaseFarmingReward      string                `yaml:"base_farming_reward" default:"0.2"`
	FarmingCooldown        time.Duration         `yaml:"farming_cooldown" default:"6h" validate:"gt=0"`
	ReferralCommissionRate string                `yaml:"referral_commission_rate" default:"0.10"`
	WelcomeReward          string                `yaml:"welcome_reward" default:"1.0"`
	PresaleRate            string                `yaml:"presale_rate" default:"7.0"`
	PresaleBonusMinTON     string                `yaml:"presale_bonus_min_ton" default:"0.1"`
	TaskSubmissionDelay    time.Duration         `yaml:"task_submission_delay" default:"24h" validate:"gte=0"`
	DailySchedule          []string              `yaml:"daily_schedule"`
	Boosts                 []BoostConfig         `yaml:"boosts" validate:"dive"`
	Tasks                  map[string]TaskConfig `yaml:"tasks" validate:"dive"`
}

// BoostConfig describes a purchasable boost package
type BoostConfig struct {
	ID            string  `yaml:"id" validate:"required"`
	Name          string  `yaml:"name" validate:"required"`
	Multiplier    string  `yaml:"multiplier" validate:"required"`
	DurationHours float64 `yaml:"duration_hours" validate:"gt=0"`
	PriceTON      string  `yaml:"price_ton" validate:"required"`
}

// TaskConfig describes a one-time task reward
type TaskConfig struct {
	Title  string `yaml:"title" validate:"required"`
	Reward string `yaml:"reward" validate:"required"`
}

// AuthConfig contains JWT settings for user identity
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" validate:"required,min=16"`
	Issuer    string `yaml:"issuer"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
	MaxBackups int    `yaml:"max_backups" default:"5"`
	MaxAgeDays int    `yaml:"max_age_days" default:"28"`
}

// ReconciliationConfig contains settings for balance reconciliation
type ReconciliationConfig struct {
	InitialTimeout time.Duration `yaml:"initial_timeout" default:"2m"`
	Interval       time.Duration `yaml:"interval" default:"15m"`
}

// RateLimitConfig limits claim and purchase requests per user
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute" default:"30"`
	Burst             int     `yaml:"burst" default:"5"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// Load reads configuration from a YAML file. Environment variables referenced
// as ${VAR} inside the file are expanded before parsing.
func Load(configPath string) (*Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(raw))))
}

// Parse decodes, defaults and validates configuration bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	applyCatalogDefaults(&cfg.Rewards)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// DefaultRewards returns the rewards section with every default applied.
func DefaultRewards() RewardsConfig {
	var r RewardsConfig
	_ = defaults.Set(&r)
	applyCatalogDefaults(&r)
	return r
}

func applyCatalogDefaults(r *RewardsConfig) {
	if len(r.DailySchedule) == 0 {
		r.DailySchedule = []string{
			"0.2", "0.2", "0.2", "0.2", "0.4",
			"0.4", "0.4", "0.4", "0.4", "0.6",
			"0.6", "0.6", "0.6", "0.6", "3.0",
			"0.8", "0.8", "0.8", "0.8", "1.0",
			"1.0", "1.0", "1.0", "1.0", "1.0",
			"1.0", "1.0", "1.0", "1.0", "10.0",
		}
	}
	if len(r.Boosts) == 0 {
		r.Boosts = []BoostConfig{
			{ID: "bronze-miner", Name: "Bronze Miner", Multiplier: "1.5", DurationHours: 24, PriceTON: "0.1"},
			{ID: "silver-drill", Name: "Silver Drill", Multiplier: "2.0", DurationHours: 48, PriceTON: "0.25"},
			{ID: "gold-rig", Name: "Gold Rig", Multiplier: "3.0", DurationHours: 72, PriceTON: "0.5"},
			{ID: "diamond-core", Name: "Diamond Core", Multiplier: "5.0", DurationHours: 120, PriceTON: "1.0"},
			{ID: "mega-whale", Name: "Mega Whale", Multiplier: "10.0", DurationHours: 168, PriceTON: "2.5"},
		}
	}
	if len(r.Tasks) == 0 {
		r.Tasks = map[string]TaskConfig{
			"joinTelegram":  {Title: "Join Telegram Channel", Reward: "10.0"},
			"followTwitter": {Title: "Follow us on X (Twitter)", Reward: "10.0"},
			"joinCommunity": {Title: "Join Telegram Community", Reward: "7.0"},
			"quotex":        {Title: "Join Quotex platform", Reward: "12.5"},
			"presaleBonus":  {Title: "Presale Purchase Bonus", Reward: "15.0"},
		}
	}
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
