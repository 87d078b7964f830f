package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "PROVIDER", "PROVIDER_URL", "PROVIDER_TOKEN", "PROVIDER_PROJECT_ID",
	"BROWSER_CONTEXT_ID", "HTTP_TIMEOUT", "LOCAL_HEADLESS", "LOCAL_INSTALL_DRIVERS",
	"AUTH_POLL_INTERVAL",
	"AUTH_MAX_ATTEMPTS", "ABORT_ON_AUTH_TIMEOUT", "STEP_DELAY", "MAX_UPLOAD_BYTES",
	"AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "REVIEW_TTL",
	"MAX_SESSIONS_PER_TENANT", "RATE_LIMIT_PER_HOUR", "RATE_LIMIT_BURST",
	"RECORD_RETENTION",
}

func clearEnv(t *testing.T) {
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER_URL", "https://api.browserbase.com")
	t.Setenv("PROVIDER_TOKEN", "bb_live_x")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProviderRemote, cfg.Provider.Kind)
	assert.Equal(t, 60*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Workflow.AuthPollInterval)
	assert.Equal(t, 30, cfg.Workflow.AuthMaxAttempts)
	assert.False(t, cfg.Workflow.AbortOnAuthTimeout)
	assert.Equal(t, 2*time.Second, cfg.Workflow.StepDelay)
	assert.Equal(t, int64(10<<20), cfg.Workflow.MaxUploadBytes)
	assert.Equal(t, 30*time.Minute, cfg.ReviewTTL)
	assert.Equal(t, time.Hour, cfg.RecordRetention)
	assert.False(t, cfg.Provider.InstallDrivers)
	assert.Equal(t, 3, cfg.MaxSessionsPerTenant)
	assert.Equal(t, 60, cfg.RateLimitPerHour)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.False(t, cfg.S3Enabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER", "LOCAL")
	t.Setenv("LOCAL_HEADLESS", "true")
	t.Setenv("LOCAL_INSTALL_DRIVERS", "true")
	t.Setenv("RECORD_RETENTION", "10m")
	t.Setenv("AUTH_POLL_INTERVAL", "500ms")
	t.Setenv("AUTH_MAX_ATTEMPTS", "5")
	t.Setenv("ABORT_ON_AUTH_TIMEOUT", "1")
	t.Setenv("AWS_REGION", "me-central-1")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ProviderLocal, cfg.Provider.Kind)
	assert.True(t, cfg.Provider.Headless)
	assert.True(t, cfg.Provider.InstallDrivers)
	assert.Equal(t, 10*time.Minute, cfg.RecordRetention)
	assert.Equal(t, 500*time.Millisecond, cfg.Workflow.AuthPollInterval)
	assert.Equal(t, 5, cfg.Workflow.AuthMaxAttempts)
	assert.True(t, cfg.Workflow.AbortOnAuthTimeout)
	assert.True(t, cfg.S3Enabled())
}

func TestFromEnv_ReportsEveryMalformedValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER", "local")
	t.Setenv("STEP_DELAY", "soon")
	t.Setenv("AUTH_MAX_ATTEMPTS", "many")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STEP_DELAY")
	assert.Contains(t, err.Error(), "AUTH_MAX_ATTEMPTS")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Provider:             ProviderConfig{Kind: ProviderRemote, URL: "https://p", Token: "t"},
			Workflow:             WorkflowConfig{AuthMaxAttempts: 1, MaxUploadBytes: 1},
			MaxSessionsPerTenant: 1,
			RateLimitPerHour:     1,
			RateLimitBurst:       1,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"valid", func(c *Config) {}, ""},
		{"remote without url", func(c *Config) { c.Provider.URL = "" }, "PROVIDER_URL"},
		{"remote without token", func(c *Config) { c.Provider.Token = "" }, "PROVIDER_TOKEN"},
		{"local needs neither", func(c *Config) { c.Provider = ProviderConfig{Kind: ProviderLocal} }, ""},
		{"unknown provider", func(c *Config) { c.Provider.Kind = "selenium" }, "PROVIDER must be"},
		{"zero attempts", func(c *Config) { c.Workflow.AuthMaxAttempts = 0 }, "AUTH_MAX_ATTEMPTS"},
		{"zero sessions", func(c *Config) { c.MaxSessionsPerTenant = 0 }, "MAX_SESSIONS_PER_TENANT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
