// Package config loads the reader configuration from a key=value file, with
// LITETABLE_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"github.com/joho/godotenv"
	"github.com/litetable/litetable-reader/internal/retry"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	litetableDir   = ".litetable"
	configFileName = "reader.conf"
	envPrefix      = "LITETABLE_"
)

type Config struct {
	Endpoint   string
	Insecure   bool
	Table      string
	AppProfile string

	MaxRetries        int
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffMultiplier float64
	OperationTimeout  time.Duration

	// MetricsPort 0 disables the metrics server.
	MetricsAddress string
	MetricsPort    int

	Debug bool
}

func defaults() *Config {
	p := retry.DefaultPolicy()
	return &Config{
		MaxRetries:        p.MaxRetries,
		BackoffInitial:    p.Initial,
		BackoffMax:        p.Max,
		BackoffMultiplier: p.Multiplier,
		MetricsAddress:    "127.0.0.1",
	}
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Endpoint == "" {
		errGrp = append(errGrp, errors.New("endpoint is required"))
	}
	if c.Table == "" {
		errGrp = append(errGrp, errors.New("table is required"))
	}
	if c.OperationTimeout < 0 {
		errGrp = append(errGrp, errors.New("operation timeout cannot be negative"))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errGrp = append(errGrp, errors.New("metrics port must be between 0 and 65535"))
	}
	if err := c.Policy().Validate(); err != nil {
		errGrp = append(errGrp, err)
	}

	return errors.Join(errGrp...)
}

// Policy returns the retry policy described by c.
func (c *Config) Policy() retry.Policy {
	return retry.Policy{
		Initial:    c.BackoffInitial,
		Max:        c.BackoffMax,
		Multiplier: c.BackoffMultiplier,
		MaxRetries: c.MaxRetries,
	}
}

// DefaultPath returns the configuration file in the LiteTable directory of the
// user's home directory.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, litetableDir, configFileName), nil
}

// Load reads the configuration at path. An empty path uses DefaultPath, which may
// be absent; a path given explicitly must exist. Environment variables named
// LITETABLE_<KEY> override the file.
func Load(path string) (*Config, error) {
	values := map[string]string{}

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil || explicit {
		fileValues, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		for k, v := range fileValues {
			values[strings.ToLower(k)] = v
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, envPrefix) {
			continue
		}
		values[strings.ToLower(strings.TrimPrefix(k, envPrefix))] = v
	}

	cfg, err := parse(values)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(values map[string]string) (*Config, error) {
	cfg := defaults()
	var errGrp []error

	for key, value := range values {
		value = strings.TrimSpace(value)
		var err error

		switch key {
		case "endpoint":
			cfg.Endpoint = value
		case "insecure":
			cfg.Insecure, err = strconv.ParseBool(value)
		case "table":
			cfg.Table = value
		case "app_profile":
			cfg.AppProfile = value
		case "max_retries":
			cfg.MaxRetries, err = strconv.Atoi(value)
		case "backoff_initial":
			cfg.BackoffInitial, err = time.ParseDuration(value)
		case "backoff_max":
			cfg.BackoffMax, err = time.ParseDuration(value)
		case "backoff_multiplier":
			cfg.BackoffMultiplier, err = strconv.ParseFloat(value, 64)
		case "operation_timeout":
			cfg.OperationTimeout, err = time.ParseDuration(value)
		case "metrics_address":
			cfg.MetricsAddress = value
		case "metrics_port":
			cfg.MetricsPort, err = strconv.Atoi(value)
		case "debug":
			cfg.Debug = value == "true"
		}

		if err != nil {
			errGrp = append(errGrp, fmt.Errorf("invalid %s value: %w", key, err))
		}
	}

	if err := errors.Join(errGrp...); err != nil {
		return nil, err
	}
	return cfg, nil
}
