package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names
const (
	ProviderRemote = "remote"
	ProviderLocal  = "local"
)

// ProviderConfig selects and authenticates the browser provider
type ProviderConfig struct {
	Kind      string
	URL       string
	Token     string
	ProjectID string
	ContextID string
	Timeout   time.Duration
	Headless  bool
	// InstallDrivers downloads the playwright driver and browsers on start
	InstallDrivers bool
}

// WorkflowConfig tunes the form-filling run
type WorkflowConfig struct {
	AuthPollInterval   time.Duration
	AuthMaxAttempts    int
	AbortOnAuthTimeout bool
	StepDelay          time.Duration
	MaxUploadBytes     int64
}

// AWSConfig enables s3:// document sources when Region is set
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Config is the service configuration
type Config struct {
	Port                 string
	Provider             ProviderConfig
	Workflow             WorkflowConfig
	AWS                  AWSConfig
	ReviewTTL            time.Duration
	RecordRetention      time.Duration
	MaxSessionsPerTenant int
	RateLimitPerHour     int
	RateLimitBurst       int
}

// Load reads an optional .env file, then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables and their
// defaults
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Provider: ProviderConfig{
			Kind:           strings.ToLower(getEnv("PROVIDER", ProviderRemote)),
			URL:            getEnv("PROVIDER_URL", ""),
			Token:          getEnv("PROVIDER_TOKEN", ""),
			ProjectID:      getEnv("PROVIDER_PROJECT_ID", ""),
			ContextID:      getEnv("BROWSER_CONTEXT_ID", ""),
			Timeout:        p.duration("HTTP_TIMEOUT", 60*time.Second),
			Headless:       p.bool("LOCAL_HEADLESS", false),
			InstallDrivers: p.bool("LOCAL_INSTALL_DRIVERS", false),
		},
		Workflow: WorkflowConfig{
			AuthPollInterval:   p.duration("AUTH_POLL_INTERVAL", 2*time.Second),
			AuthMaxAttempts:    p.int("AUTH_MAX_ATTEMPTS", 30),
			AbortOnAuthTimeout: p.bool("ABORT_ON_AUTH_TIMEOUT", false),
			StepDelay:          p.duration("STEP_DELAY", 2*time.Second),
			MaxUploadBytes:     int64(p.int("MAX_UPLOAD_BYTES", 10<<20)),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		ReviewTTL:            p.duration("REVIEW_TTL", 30*time.Minute),
		RecordRetention:      p.duration("RECORD_RETENTION", time.Hour),
		MaxSessionsPerTenant: p.int("MAX_SESSIONS_PER_TENANT", 3),
		RateLimitPerHour:     p.int("RATE_LIMIT_PER_HOUR", 60),
		RateLimitBurst:       p.int("RATE_LIMIT_BURST", 5),
	}

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Config - Provider: %s, URL: %s, HasToken: %v, S3: %v",
		cfg.Provider.Kind, cfg.Provider.URL, cfg.Provider.Token != "", cfg.S3Enabled())

	return cfg, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderRemote:
		if c.Provider.URL == "" {
			return fmt.Errorf("PROVIDER_URL is required for the remote provider")
		}
		if c.Provider.Token == "" {
			return fmt.Errorf("PROVIDER_TOKEN is required for the remote provider")
		}
	case ProviderLocal:
	default:
		return fmt.Errorf("PROVIDER must be %q or %q, got %q", ProviderRemote, ProviderLocal, c.Provider.Kind)
	}

	if c.Workflow.AuthMaxAttempts < 1 {
		return fmt.Errorf("AUTH_MAX_ATTEMPTS must be at least 1")
	}
	if c.Workflow.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.MaxSessionsPerTenant < 1 {
		return fmt.Errorf("MAX_SESSIONS_PER_TENANT must be at least 1")
	}
	if c.RateLimitPerHour < 1 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_HOUR and RATE_LIMIT_BURST must be at least 1")
	}
	return nil
}

// S3Enabled reports whether s3:// document URLs can be fetched
func (c *Config) S3Enabled() bool {
	return c.AWS.Region != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser collects every malformed variable instead of stopping at the first
type parser struct {
	errs []error
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}
