package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                  "production",
		DBDriver:             "postgres",
		DBSSLMode:            "require",
		JWTSecret:            "secure-secret-at-least-32-chars-long",
		DBPassword:           "secure-password",
		Port:                 "8080",
		ImageMaxUploadSizeMB: 10,
		UploadConcurrency:    4,
		FeaturedDays:         30,
	}
}

func TestConfig_ValidateProduction(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid production", func(c *Config) {}, false},
		{"default secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }, true},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"weak db password", func(c *Config) { c.DBPassword = "password" }, true},
		{"ssl disabled", func(c *Config) { c.DBSSLMode = "disable" }, true},
		{"sqlite driver", func(c *Config) { c.DBDriver = "sqlite" }, true},
		{"development relaxes checks", func(c *Config) {
			c.Env = "development"
			c.DBSSLMode = "disable"
			c.JWTSecret = "short"
		}, false},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"zero upload concurrency", func(c *Config) { c.UploadConcurrency = 0 }, true},
		{"bad exporter", func(c *Config) { c.TracingExporter = "jaeger" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_DefaultsAndNormalization(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("FEATURED_DAYS", "14")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 14, c.FeaturedDays)
	assert.Equal(t, 4, c.UploadConcurrency)
	assert.False(t, c.IsProduction())
}

func TestConfig_Origins(t *testing.T) {
	c := &Config{AllowedOrigins: "http://a.test, ,http://b.test "}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.Origins())
}
