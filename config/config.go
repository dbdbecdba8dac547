package config

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds price tracker configuration.
type Config struct {
	URLsFile         string        `yaml:"urls_file"`
	ReportFile       string        `yaml:"report_file"`
	ExportFile       string        `yaml:"export_file"`
	ExportFormat     string        `yaml:"export_format"` // xlsx, csv, json, or dual
	Delay            time.Duration `yaml:"delay"`
	RandomDelay      time.Duration `yaml:"random_delay"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	RetryBackoffMax  time.Duration `yaml:"retry_backoff_max"`
	RetryStatusCodes []int         `yaml:"retry_status_codes"`
	UserAgents       []string      `yaml:"user_agents"`
	AcceptLanguage   string        `yaml:"accept_language"`
	Referer          string        `yaml:"referer"`
	PageCacheSize    int           `yaml:"page_cache_size"`
	Schedule         string        `yaml:"schedule"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	LogFile          string        `yaml:"log_file"`
	Verbose          bool          `yaml:"verbose"`
}

// DefaultUserAgents is the pool of browser signatures rotated per request.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
}

// DefaultRetryStatusCodes are the responses treated as transient blocking.
var DefaultRetryStatusCodes = []int{
	http.StatusForbidden,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// DefaultConfig returns conservative defaults that keep request
// patterns close to a person browsing.
func DefaultConfig() *Config {
	return &Config{
		URLsFile:         "product_urls.txt",
		ReportFile:       "price_results.txt",
		ExportFile:       "output/prices.xlsx",
		ExportFormat:     "xlsx",
		Delay:            1 * time.Second,
		RandomDelay:      1 * time.Second,
		Timeout:          15 * time.Second,
		MaxRetries:       3,
		RetryBackoff:     1 * time.Second,
		RetryBackoffMax:  8 * time.Second,
		RetryStatusCodes: append([]int(nil), DefaultRetryStatusCodes...),
		UserAgents:       append([]string(nil), DefaultUserAgents...),
		AcceptLanguage:   "en-US,en;q=0.5",
		Referer:          "https://www.google.com/",
		PageCacheSize:    256,
		Verbose:          false,
	}
}

// LoadFile overlays the YAML file at path onto the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.URLsFile == "" {
		return fmt.Errorf("urls file cannot be empty")
	}
	if c.ReportFile == "" {
		return fmt.Errorf("report file cannot be empty")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	for _, code := range c.RetryStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("retry status code %d is not an HTTP status", code)
		}
	}
	if len(c.UserAgents) == 0 {
		return fmt.Errorf("user agent pool cannot be empty")
	}
	for i, ua := range c.UserAgents {
		if ua == "" {
			return fmt.Errorf("user agent %d cannot be empty", i)
		}
	}
	if c.PageCacheSize < 0 {
		return fmt.Errorf("page cache size cannot be negative")
	}
	if c.ExportFile != "" {
		switch c.ExportFormat {
		case "xlsx", "csv", "json", "dual":
		default:
			return fmt.Errorf("export format must be xlsx, csv, json, or dual")
		}
	}

	return nil
}
