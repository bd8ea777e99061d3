package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// MaxAttemptsLimit caps the attempts a single scrape may make, whether set
// by configuration or by a request override.
const MaxAttemptsLimit = 10

// Config holds scraper configuration.
type Config struct {
	ListenAddr    string
	MetricsAddr   string
	Timeout       time.Duration // per request
	ScrapeTimeout time.Duration // per scrape invocation
	MaxRetries    int
	MaxBodySize   int
	PaceDomains   bool

	ProfilesFile  string
	DatabaseURL   string
	RedisAddr     string
	ReportTimeout time.Duration

	Parallelism        int
	OutputFile         string
	OutputFormat       string // csv, json, or dual
	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int
	Verbose            bool
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:         ":8080",
		MetricsAddr:        "",
		Timeout:            10 * time.Second,
		ScrapeTimeout:      60 * time.Second,
		MaxRetries:         3,
		MaxBodySize:        10 * 1024 * 1024,
		PaceDomains:        false,
		ReportTimeout:      5 * time.Second,
		Parallelism:        4,
		OutputFile:         "output/coins.csv",
		OutputFormat:       "csv",
		PipelineBufferSize: 256,
		BatchSize:          32,
		DedupeMaxSize:      100000,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			return fmt.Errorf("invalid listen address: %w", err)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ScrapeTimeout <= 0 {
		return fmt.Errorf("scrape timeout must be positive")
	}
	if c.Timeout >= c.ScrapeTimeout {
		return fmt.Errorf("timeout (%s) must be shorter than scrape timeout (%s)", c.Timeout, c.ScrapeTimeout)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.MaxRetries > MaxAttemptsLimit {
		return fmt.Errorf("max retries must be at most %d", MaxAttemptsLimit)
	}
	if c.MaxBodySize <= 0 {
		return fmt.Errorf("max body size must be positive")
	}
	if c.ReportTimeout <= 0 {
		return fmt.Errorf("report timeout must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	return nil
}

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
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration parses key as a time.Duration ("1500ms", "10s") when it is set.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvBool parses key as a boolean when it is set.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// FromEnv applies SCRAPER_* environment overrides on top of c.
func (c *Config) FromEnv() error {
	if v, ok := EnvString("SCRAPER_LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := EnvString("SCRAPER_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := EnvString("SCRAPER_PROFILES_FILE"); ok {
		c.ProfilesFile = v
	}
	if v, ok := EnvString("SCRAPER_DATABASE_URL"); ok {
		c.DatabaseURL = v
	}
	if v, ok := EnvString("SCRAPER_REDIS_ADDR"); ok {
		c.RedisAddr = v
	}
	if v, ok := EnvString("SCRAPER_OUTPUT"); ok {
		c.OutputFile = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SCRAPER_MAX_RETRIES", &c.MaxRetries},
		{"SCRAPER_MAX_BODY_SIZE", &c.MaxBodySize},
		{"SCRAPER_PARALLEL", &c.Parallelism},
	}
	for _, item := range ints {
		v, ok, err := EnvInt(item.key)
		if err != nil {
			return err
		}
		if ok {
			*item.dst = v
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SCRAPER_TIMEOUT", &c.Timeout},
		{"SCRAPER_SCRAPE_TIMEOUT", &c.ScrapeTimeout},
		{"SCRAPER_REPORT_TIMEOUT", &c.ReportTimeout},
	}
	for _, item := range durations {
		v, ok, err := EnvDuration(item.key)
		if err != nil {
			return err
		}
		if ok {
			*item.dst = v
		}
	}

	if v, ok, err := EnvBool("SCRAPER_PACE_DOMAINS"); err != nil {
		return err
	} else if ok {
		c.PaceDomains = v
	}
	return nil
}
