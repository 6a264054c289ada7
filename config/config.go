package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

const (
	SeatGuardRedis  = "redis"
	SeatGuardMemory = "memory"
)

// Config is read from command line flags, falling back to environment variables.
type Config struct {
	HTTPAddr       string `long:"http-addr" env:"HTTP_ADDR" default:":8080" description:"address of the HTTP server"`
	PostgresURL    string `long:"postgres-url" env:"POSTGRES_URL" required:"true" description:"postgres connection string"`
	RedisAddr      string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"redis address used for messaging and seat holds"`
	JaegerEndpoint string `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT" description:"jaeger collector endpoint, traces are not exported when empty"`

	SeatGuard      string        `long:"seat-guard" env:"SEAT_GUARD" default:"redis" choice:"redis" choice:"memory" description:"where seat holds are kept"`
	ReservationTTL time.Duration `long:"reservation-ttl" env:"RESERVATION_TTL" default:"15m" description:"how long an unpaid reservation holds its seats"`
	SweepInterval  time.Duration `long:"sweep-interval" env:"SWEEP_INTERVAL" default:"1m" description:"how often expired reservations are looked up"`

	LogLevel string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"logrus level"`
}

func Load(args []string) (Config, error) {
	var cfg Config

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Reported tells whether go-flags already printed err, which holds for parse errors and help output.
func Reported(err error) bool {
	var flagsErr *flags.Error
	return errors.As(err, &flagsErr)
}

// IsHelp tells whether err only means that help was requested.
func IsHelp(err error) bool {
	var flagsErr *flags.Error
	return errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp
}

func (c Config) validate() error {
	if c.ReservationTTL <= 0 {
		return fmt.Errorf("reservation-ttl must be positive, got %s", c.ReservationTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep-interval must be positive, got %s", c.SweepInterval)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log-level: %w", err)
	}
	return nil
}

func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
