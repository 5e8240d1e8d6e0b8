package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"library-lending/internal/logger"
)

const (
	EnvPrefix = "LIBRARY"

	DefaultDatabasePath = "library.db"
)

type (
	Config struct {
		Database
		Seed
		Lending
		Log logger.Log
	}

	Database struct {
		Path        string
		BusyTimeout time.Duration
	}
	Seed struct {
		Enabled bool // insert demo books/members into empty tables
	}
	Lending struct {
		Period time.Duration // default due date offset from the lending date
	}
)

// NewConfig reads settings from the environment (LIBRARY_DATABASE_PATH and
// so on), a .env file in the working directory and, when path is not empty,
// a config file. Environment wins over the file.
func NewConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("database.busy_timeout", "5s")
	v.SetDefault("seed.enabled", true)
	v.SetDefault("lending.period", "336h") // two weeks
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.sink", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	level, err := zapcore.ParseLevel(v.GetString("LOG.LEVEL"))
	if err != nil {
		return nil, errors.Wrap(err, "log.level")
	}
	period := v.GetDuration("LENDING.PERIOD")
	if period < 24*time.Hour {
		return nil, errors.Errorf("lending.period must be at least one day, got %s", period)
	}

	return &Config{
		Database: Database{
			Path:        v.GetString("DATABASE.PATH"),
			BusyTimeout: v.GetDuration("DATABASE.BUSY_TIMEOUT"),
		},
		Seed: Seed{
			Enabled: v.GetBool("SEED.ENABLED"),
		},
		Lending: Lending{
			Period: period,
		},
		Log: logger.Log{
			LogLevel: level,
			Sink:     v.GetString("LOG.SINK"),
		},
	}, nil
}

// LendingDays is the lending period in whole days.
func (c *Config) LendingDays() int {
	return int(c.Lending.Period / (24 * time.Hour))
}
