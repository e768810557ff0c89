package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hstefan/fotc/internal/store"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken    string `envconfig:"TELEGRAM_API_KEY" required:"true"`
	AdminChatID int64  `envconfig:"TELEGRAM_ADMIN_CHATID"`
	SendRate    int    `envconfig:"SEND_RATE" default:"25"` // messages per second

	DBDriver string `envconfig:"DATABASE_DRIVER" default:"postgres"` // postgres|sqlite
	DBHost   string `envconfig:"DATABASE_HOST" default:"postgres"`
	DBPort   int    `envconfig:"DATABASE_PORT" default:"5432"`
	DBName   string `envconfig:"DATABASE_NAME" default:"fotc"`
	DBUser   string `envconfig:"DATABASE_USER" default:"fotc"`
	DBPass   string `envconfig:"DATABASE_PASS" default:"devdevdev"`
	DBSchema string `envconfig:"DATABASE_SCHEMA" default:"fotc"`
	DBPath   string `envconfig:"DATABASE_PATH" default:"./data/fotc.db"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`
	PollBackoff     time.Duration `envconfig:"POLL_BACKOFF" default:"2s"`
	PollStopTimeout time.Duration `envconfig:"POLL_STOP_TIMEOUT" default:"10s"`
	IdleThreshold   time.Duration `envconfig:"IDLE_THRESHOLD" default:"12h"`

	// Defaulted lists optional DATABASE_* variables that were not set.
	Defaulted []string `ignored:"true"`
}

var optionalDB = []string{
	"DATABASE_DRIVER",
	"DATABASE_HOST",
	"DATABASE_PORT",
	"DATABASE_NAME",
	"DATABASE_USER",
	"DATABASE_PASS",
	"DATABASE_SCHEMA",
	"DATABASE_PATH",
}

// Load reads a .env file when present, then environment variables, into
// Config. Variables already in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if cfg.BotToken == "" {
		return cfg, errors.New("TELEGRAM_API_KEY is empty")
	}
	for _, key := range optionalDB {
		if _, ok := os.LookupEnv(key); !ok {
			cfg.Defaulted = append(cfg.Defaulted, key)
		}
	}
	return cfg, nil
}

// StoreOptions maps the DATABASE_* settings.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Driver:   c.DBDriver,
		Host:     c.DBHost,
		Port:     c.DBPort,
		Name:     c.DBName,
		User:     c.DBUser,
		Password: c.DBPass,
		Schema:   c.DBSchema,
		Path:     c.DBPath,
	}
}
