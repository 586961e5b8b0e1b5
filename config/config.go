package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Queue    QueueConfig    `yaml:"queue"`
	Vision   VisionConfig   `yaml:"vision"`
	Push     PushConfig     `yaml:"push"`
	Ledger   LedgerConfig   `yaml:"ledger"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	Environment     string   `yaml:"environment"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	SeedDefaults           bool   `yaml:"seed_defaults"`
	SeedCompany            string `yaml:"seed_company"`
	SeedAdminUsername      string `yaml:"seed_admin_username"`
	SeedAdminEmail         string `yaml:"seed_admin_email"`
	SeedAdminPassword      string `yaml:"seed_admin_password"`
	LogQueries             bool   `yaml:"log_queries"`
}

// AuthConfig holds token signing and lifetime settings.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	AccessTTLHours  int           `yaml:"access_ttl_hours"`
	RememberTTLDays int           `yaml:"remember_ttl_days"`
	AccessTTL       time.Duration `yaml:"-"`
	RememberTTL     time.Duration `yaml:"-"`
}

// StorageConfig describes where tenant files, the admin share and server settings live.
type StorageConfig struct {
	DataDir      string `yaml:"data_dir"`
	ShareDir     string `yaml:"share_dir"`
	SettingsPath string `yaml:"settings_path"`
	MaxUploadMB  int    `yaml:"max_upload_mb"`
}

// QueueConfig selects the job queue backend and its worker count.
type QueueConfig struct {
	Backend       string `yaml:"backend"` // "memory" or "redis"
	Workers       int    `yaml:"workers"`
	Buffer        int    `yaml:"buffer"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisKey      string `yaml:"redis_key"`
}

// VisionConfig points at the external OCR and content-safety services.
type VisionConfig struct {
	Disabled       bool          `yaml:"disabled"`
	OCRURL         string        `yaml:"ocr_url"`
	SafetyURL      string        `yaml:"safety_url"`
	APIKey         string        `yaml:"api_key"`
	HTTPProxy      string        `yaml:"http_proxy"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
	Workers    int    `yaml:"workers"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// LedgerConfig controls the spreadsheet column headers and currency label.
type LedgerConfig struct {
	Currency string   `yaml:"currency"`
	Headers  []string `yaml:"headers"`
}

// DefaultLedgerHeaders is the column layout of every ledger workbook.
var DefaultLedgerHeaders = []string{
	"Sr. No", "Date", "Part Number", "Filename", "Material", "Filament Cost (/kg)",
	"Filament (g)", "Time (h)", "Labour Time (min)", "User COGS", "Default COGS", "Source Link",
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load reads the configuration from the given path. A .env file in the working directory is
// loaded first; variables already present in the environment win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Environment-only deployments have no file.
	default:
		return nil, err
	}

	applyEnvironmentOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (or JWT_SECRET) must be set")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn (or DATABASE_DSN) must be set")
	}
	switch c.Queue.Backend {
	case "memory":
	case "redis":
		if c.Queue.RedisAddr == "" {
			return errors.New("queue.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown queue backend %q", c.Queue.Backend)
	}
	return nil
}

func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Server.Environment = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SEED_ADMIN_PASSWORD"); v != "" {
		cfg.Database.SeedAdminPassword = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Queue.RedisAddr = v
		if cfg.Queue.Backend == "" {
			cfg.Queue.Backend = "redis"
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Queue.RedisPassword = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = "development"
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes <= 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}
	if cfg.Database.SeedCompany == "" {
		cfg.Database.SeedCompany = "Default Workshop"
	}
	if cfg.Database.SeedAdminUsername == "" {
		cfg.Database.SeedAdminUsername = "admin"
	}
	if cfg.Database.SeedAdminEmail == "" {
		cfg.Database.SeedAdminEmail = "admin@workshop.local"
	}

	if cfg.Auth.AccessTTLHours <= 0 {
		cfg.Auth.AccessTTLHours = 24
	}
	if cfg.Auth.RememberTTLDays <= 0 {
		cfg.Auth.RememberTTLDays = 30
	}
	cfg.Auth.AccessTTL = time.Duration(cfg.Auth.AccessTTLHours) * time.Hour
	cfg.Auth.RememberTTL = time.Duration(cfg.Auth.RememberTTLDays) * 24 * time.Hour

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Storage.ShareDir == "" {
		cfg.Storage.ShareDir = "./server_share"
	}
	if cfg.Storage.SettingsPath == "" {
		cfg.Storage.SettingsPath = "./server_config.json"
	}
	if cfg.Storage.MaxUploadMB <= 0 {
		cfg.Storage.MaxUploadMB = 16
	}

	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = "memory"
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 1
	}
	if cfg.Queue.Buffer <= 0 {
		cfg.Queue.Buffer = 64
	}
	if cfg.Queue.RedisKey == "" {
		cfg.Queue.RedisKey = "printcost:jobs"
	}

	if cfg.Vision.TimeoutSeconds <= 0 {
		cfg.Vision.TimeoutSeconds = 30
	}
	cfg.Vision.Timeout = time.Duration(cfg.Vision.TimeoutSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Push.Workers <= 0 {
		cfg.Push.Workers = 1
	}

	if cfg.Ledger.Currency == "" {
		cfg.Ledger.Currency = "INR"
	}
	if len(cfg.Ledger.Headers) == 0 {
		cfg.Ledger.Headers = append([]string(nil), DefaultLedgerHeaders...)
	}
}
