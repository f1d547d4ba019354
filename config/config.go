/*
config.go - Environment driven server configuration

PURPOSE:
  Collects everything cmd/server needs before wiring the engine: HTTP port,
  SQLite path, logging, the default holiday region, the policy file and the
  payroll scheduler settings.

SOURCES (later wins):
  1. Built-in defaults (Default)
  2. A .env file in the working directory, if present (godotenv)
  3. Process environment (SHIFT_* keys)
  4. Command-line flags, applied by cmd/server after Load

KEYS:
  SHIFT_HTTP_PORT           HTTP port (default 8080)
  SHIFT_DB_PATH             SQLite path, ":memory:" allowed (default shifts.db)
  SHIFT_LOG_LEVEL           debug | info | warn | error (default info)
  SHIFT_LOG_FORMAT          json | text (default json)
  SHIFT_REGION              German state code for public holidays (default BW)
  SHIFT_POLICY_FILE         Policy JSON overlay, empty for built-in defaults
  SHIFT_PAYROLL_WORKERS     Parallelism of calculate-all (default 4)
  SHIFT_SCHEDULER_ENABLED   Run the monthly payroll scheduler (default false)
  SHIFT_SCHEDULER_INTERVAL  Scheduler check interval (default 1h)
  SHIFT_CORS_ORIGINS        Comma separated allowed origins

SEE ALSO:
  - cmd/server/main.go: Flag overrides and wiring
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/shift-engine/calendar"
)

const envPrefix = "SHIFT_"

// Config captures environment driven configuration values for the server.
type Config struct {
	HTTPPort          int
	DBPath            string
	LogLevel          string
	LogFormat         string
	Region            string
	PolicyFile        string
	PayrollWorkers    int
	SchedulerEnabled  bool
	SchedulerInterval time.Duration
	CORSOrigins       []string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPPort:          8080,
		DBPath:            "shifts.db",
		LogLevel:          "info",
		LogFormat:         "json",
		Region:            string(calendar.RegionBW),
		PayrollWorkers:    4,
		SchedulerInterval: time.Hour,
		CORSOrigins:       []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// LoadFile is Load with an explicit dotenv path. Variables already present in
// the environment are not overridden by the file.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, applying defaults for unset keys and
// reporting every malformed key at once.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	invalid := make([]string, 0, 2)

	get := func(key string) (string, bool) {
		v, ok := lookup(envPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, envPrefix+"HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if v, ok := get("DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("LOG_FORMAT"); ok {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v, ok := get("REGION"); ok {
		cfg.Region = strings.ToUpper(v)
	}
	if v, ok := get("POLICY_FILE"); ok {
		cfg.PolicyFile = v
	}
	if v, ok := get("PAYROLL_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			invalid = append(invalid, envPrefix+"PAYROLL_WORKERS")
		} else {
			cfg.PayrollWorkers = n
		}
	}
	if v, ok := get("SCHEDULER_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, envPrefix+"SCHEDULER_ENABLED")
		} else {
			cfg.SchedulerEnabled = b
		}
	}
	if v, ok := get("SCHEDULER_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			invalid = append(invalid, envPrefix+"SCHEDULER_INTERVAL")
		} else {
			cfg.SchedulerInterval = d
		}
	}
	if v, ok := get("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("malformed environment variables: %s", strings.Join(invalid, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges after all sources have been applied.
func (c Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTPPort)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db path is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if _, err := calendar.ParseRegion(c.Region); err != nil {
		return err
	}
	if c.PayrollWorkers < 1 {
		return errors.New("payroll workers must be at least 1")
	}
	if c.SchedulerEnabled && c.SchedulerInterval < time.Second {
		return errors.New("scheduler interval must be at least 1s")
	}
	return nil
}

// Addr is the listen address for net/http.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.HTTPPort) }

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
