package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	App         App         `yaml:"app"`
	Database    Database    `yaml:"database"`
	Slack       Slack       `yaml:"slack"`
	Rotation    Rotation    `yaml:"rotation"`
	Retry       Retry       `yaml:"retry"`
	HealthCheck HealthCheck `yaml:"health_check"`
	Migrations  Migrations  `yaml:"migrations"`
}

type App struct {
	Port      string `yaml:"port" env:"PORT" env-default:"3000"`
	LogLevel  string `yaml:"log_level" env:"APP_LOG_LEVEL" env-default:"debug"`
	LogFormat string `yaml:"log_format" env:"APP_LOG_FORMAT" env-default:"json"`
	Mode      string `yaml:"mode" env:"MODE" env-default:"dev"`
}

type Database struct {
	Driver          string        `yaml:"driver" env:"POSTGRES_DRIVER" env-default:"postgres"`
	Host            string        `yaml:"host" env:"POSTGRES_HOST"`
	Port            string        `yaml:"port" env:"POSTGRES_PORT"`
	User            string        `yaml:"user" env:"POSTGRES_USER"`
	Password        string        `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName          string        `yaml:"dbname" env:"POSTGRES_DB"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE" env-default:"disable"`
}

func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		d.Host, d.Port, d.User, d.DBName, d.Password, d.SSLMode,
	)
}

type Slack struct {
	BotToken        string `yaml:"bot_token" env:"SLACK_BOT_TOKEN"`
	SigningSecret   string `yaml:"signing_secret" env:"SLACK_SIGNING_SECRET"`
	ReviewChannelID string `yaml:"review_channel_id" env:"REVIEW_CHANNEL_ID"`
	ErrorsChannelID string `yaml:"errors_channel_id" env:"ERRORS_CHANNEL_ID"`
	BotUsername     string `yaml:"bot_username" env:"SLACK_BOT_USERNAME" env-default:"Review Rotation"`
	BotIconURL      string `yaml:"bot_icon_url" env:"SLACK_BOT_ICON_URL"`
}

type Rotation struct {
	RequestExpirationMin int           `yaml:"request_expiration_min" env:"REQUEST_EXPIRATION_MIN" env-default:"30"`
	SweepInterval        time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL" env-default:"1m"`
	SweepWorkers         int           `yaml:"sweep_workers" env:"SWEEP_WORKERS" env-default:"4"`
}

func (r Rotation) RequestTimeout() time.Duration {
	return time.Duration(r.RequestExpirationMin) * time.Minute
}

type Retry struct {
	Attempts uint          `yaml:"attempts" env:"RETRY_ATTEMPTS" env-default:"3"`
	Delay    time.Duration `yaml:"delay" env:"RETRY_DELAY" env-default:"500ms"`
	MaxDelay time.Duration `yaml:"max_delay" env:"RETRY_MAX_DELAY" env-default:"5s"`
}

type HealthCheck struct {
	Interval time.Duration `yaml:"interval" env:"HEALTH_CHECK_INTERVAL" env-default:"24h"`
}

type Migrations struct {
	Enabled bool `yaml:"enabled" env:"MIGRATIONS_ENABLED" env-default:"true"`
}

// Load reads the yaml file at path and applies env overrides on top.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Rotation.RequestExpirationMin < 1 {
		return fmt.Errorf("rotation.request_expiration_min must be at least 1, got %d", c.Rotation.RequestExpirationMin)
	}
	if c.Rotation.SweepInterval <= 0 {
		return fmt.Errorf("rotation.sweep_interval must be positive, got %s", c.Rotation.SweepInterval)
	}
	if c.HealthCheck.Interval <= 0 {
		return fmt.Errorf("health_check.interval must be positive, got %s", c.HealthCheck.Interval)
	}
	return nil
}

func MustLoad() *Config {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	return cfg
}
