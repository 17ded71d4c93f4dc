package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort               int
	SQLiteDSN              string
	SessionTTL             time.Duration
	Timezone               string
	MaterializationHorizon time.Duration
	MonthlyPolicy          string
	WatchdogInterval       time.Duration
	ReminderLookback       time.Duration
}

// Load reads an optional .env file and parses configuration values from the
// process environment.
//
// The loader applies sensible defaults for optional fields while validating
// supplied values and accumulating every invalid entry into one error.
func Load() (Config, error) {
	// Absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:               8080,
		SQLiteDSN:              "file:scheduler.db",
		SessionTTL:             24 * time.Hour,
		Timezone:               "UTC",
		MaterializationHorizon: 180 * 24 * time.Hour,
		MonthlyPolicy:          "clamp",
		WatchdogInterval:       30 * time.Second,
		ReminderLookback:       time.Minute,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("SCHEDULER_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("SCHEDULER_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SCHEDULER_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if tz := strings.TrimSpace(os.Getenv("SCHEDULER_TIMEZONE")); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "SCHEDULER_TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	if horizonValue := strings.TrimSpace(os.Getenv("SCHEDULER_MATERIALIZATION_HORIZON")); horizonValue != "" {
		horizon, err := time.ParseDuration(horizonValue)
		if err != nil || horizon <= 0 {
			invalid = append(invalid, "SCHEDULER_MATERIALIZATION_HORIZON")
		} else {
			cfg.MaterializationHorizon = horizon
		}
	}

	if policy := strings.TrimSpace(os.Getenv("SCHEDULER_MONTHLY_POLICY")); policy != "" {
		switch policy {
		case "clamp", "skip":
			cfg.MonthlyPolicy = policy
		default:
			invalid = append(invalid, "SCHEDULER_MONTHLY_POLICY")
		}
	}

	if intervalValue := strings.TrimSpace(os.Getenv("SCHEDULER_WATCHDOG_INTERVAL")); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "SCHEDULER_WATCHDOG_INTERVAL")
		} else {
			cfg.WatchdogInterval = interval
		}
	}

	if lookbackValue := strings.TrimSpace(os.Getenv("SCHEDULER_REMINDER_LOOKBACK")); lookbackValue != "" {
		lookback, err := time.ParseDuration(lookbackValue)
		if err != nil || lookback <= 0 {
			invalid = append(invalid, "SCHEDULER_REMINDER_LOOKBACK")
		} else {
			cfg.ReminderLookback = lookback
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
