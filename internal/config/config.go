package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Mode     string  `yaml:"mode"` // polling | webhook (future)
	Port     int     `yaml:"port"`
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port      int    `yaml:"port"`
	APIKey    string `yaml:"api_key"`
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// GatewayConfig shapes one external-call guard: the token bucket, the
// breaker, and the retry budget around both.
type GatewayConfig struct {
	RateCapacity   int           `yaml:"rate_capacity"`
	RateRefill     float64       `yaml:"rate_refill"` // tokens per second
	BreakThreshold int           `yaml:"break_threshold"`
	BreakCooldown  time.Duration `yaml:"break_cooldown"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`
	RetryJitter    float64       `yaml:"retry_jitter"`
}

type CourierConfig struct {
	Retrieval    GatewayConfig `yaml:"retrieval"`
	Delivery     GatewayConfig `yaml:"delivery"`
	Workers      int           `yaml:"workers"`       // concurrent job processors
	MaxInFlight  int           `yaml:"max_in_flight"` // parallel fetches per job
	MaxFileSize  int64         `yaml:"max_file_size"` // bytes; 0 disables the cap
	StuckJobAge  time.Duration `yaml:"stuck_job_age"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type SourceConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	AppID     string        `yaml:"app_id"`
	Timeout   time.Duration `yaml:"timeout"`
}

type StagingConfig struct {
	Dir        string        `yaml:"dir"`
	CleanupAge time.Duration `yaml:"cleanup_age"`
}

type SessionConfig struct {
	SubmissionWindow time.Duration `yaml:"submission_window"`
	RequiredMarkers  []string      `yaml:"required_markers"`
	ExpiryCheckEvery time.Duration `yaml:"expiry_check_every"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Courier  CourierConfig  `yaml:"courier"`
	Source   SourceConfig   `yaml:"source"`
	Staging  StagingConfig  `yaml:"staging"`
	Session  SessionConfig  `yaml:"session"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string = ""
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Security.EncryptionKey == "" {
		return nil, errors.New("security.encryption_key is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	defaultGateway(&cfg.Courier.Retrieval, 10, 2)
	defaultGateway(&cfg.Courier.Delivery, 30, 10)
	if cfg.Courier.Workers <= 0 {
		cfg.Courier.Workers = 4
	}
	if cfg.Courier.MaxInFlight <= 0 {
		cfg.Courier.MaxInFlight = 2
	}
	if cfg.Courier.MaxFileSize <= 0 {
		cfg.Courier.MaxFileSize = 50 * 1024 * 1024
	}
	if cfg.Courier.StuckJobAge <= 0 {
		cfg.Courier.StuckJobAge = time.Hour
	}
	if cfg.Courier.PollInterval <= 0 {
		cfg.Courier.PollInterval = 2 * time.Second
	}
	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = "https://www.instagram.com"
	}
	if cfg.Source.UserAgent == "" {
		cfg.Source.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}
	if cfg.Source.AppID == "" {
		cfg.Source.AppID = "936619743392459"
	}
	if cfg.Source.Timeout <= 0 {
		cfg.Source.Timeout = 30 * time.Second
	}
	if cfg.Staging.Dir == "" {
		cfg.Staging.Dir = "/var/lib/courier/staging"
	}
	if cfg.Staging.CleanupAge <= 0 {
		cfg.Staging.CleanupAge = 24 * time.Hour
	}
	if cfg.Session.SubmissionWindow <= 0 {
		cfg.Session.SubmissionWindow = 5 * time.Minute
	}
	if len(cfg.Session.RequiredMarkers) == 0 {
		cfg.Session.RequiredMarkers = []string{"sessionid"}
	}
	if cfg.Session.ExpiryCheckEvery <= 0 {
		cfg.Session.ExpiryCheckEvery = time.Hour
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8080
	}
}

func defaultGateway(g *GatewayConfig, capacity int, refill float64) {
	if g.RateCapacity <= 0 {
		g.RateCapacity = capacity
	}
	if g.RateRefill <= 0 {
		g.RateRefill = refill
	}
	if g.BreakThreshold <= 0 {
		g.BreakThreshold = 5
	}
	if g.BreakCooldown <= 0 {
		g.BreakCooldown = 30 * time.Second
	}
	if g.RetryAttempts <= 0 {
		g.RetryAttempts = 3
	}
	if g.RetryBaseDelay <= 0 {
		g.RetryBaseDelay = time.Second
	}
	if g.RetryMaxDelay <= 0 {
		g.RetryMaxDelay = 30 * time.Second
	}
	if g.RetryJitter <= 0 {
		g.RetryJitter = 0.2
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
