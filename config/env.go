package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvDuration parses key as a Go duration ("1500ms", "2s") when it is set.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// ApplyEnv overrides cfg with the PRICETRACKER_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := EnvString("PRICETRACKER_URLS_FILE"); ok {
		c.URLsFile = v
	}
	if v, ok := EnvString("PRICETRACKER_REPORT"); ok {
		c.ReportFile = v
	}
	if v, ok := EnvString("PRICETRACKER_EXPORT"); ok {
		c.ExportFile = v
	}
	if v, ok := EnvString("PRICETRACKER_SCHEDULE"); ok {
		c.Schedule = v
	}
	if v, ok := EnvString("PRICETRACKER_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok, err := EnvInt("PRICETRACKER_MAX_RETRIES"); err != nil {
		return err
	} else if ok {
		c.MaxRetries = v
	}
	if v, ok, err := EnvDuration("PRICETRACKER_TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.Timeout = v
	}
	if v, ok, err := EnvDuration("PRICETRACKER_DELAY"); err != nil {
		return err
	} else if ok {
		c.Delay = v
	}
	return nil
}
