package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Edgegrid EdgegridConfig
	Deploy   DeployConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/property-deployer.db"`
}

// EdgegridConfig holds credentials for the remote property API.
type EdgegridConfig struct {
	EdgercPath    string `env:"EDGERC_PATH"`
	EdgercSection string `env:"EDGERC_SECTION" envDefault:"default"`
	// AccountKey is only needed when one credential manages multiple
	// accounts (sent as accountSwitchKey).
	AccountKey string `env:"ACCOUNT_SWITCH_KEY"`
	FileShim   string `env:"PAPI_FILE_SHIM"` // Path to seed file for testing shim (disables real API)
}

// DeployConfig holds orchestration behavior configuration.
type DeployConfig struct {
	// PollInterval is the fixed delay between activation status checks.
	PollInterval time.Duration `env:"DEPLOY_POLL_INTERVAL" envDefault:"30s"`
	// ActivationTimeout bounds the wall-clock wait per activation. The
	// activation itself is not cancelled when the wait gives up.
	ActivationTimeout time.Duration `env:"DEPLOY_ACTIVATION_TIMEOUT" envDefault:"45m"`
	// RetryAttempts bounds retries of transient transport errors during
	// status polling and lookups.
	RetryAttempts uint64        `env:"DEPLOY_RETRY_ATTEMPTS" envDefault:"5"`
	RetryBase     time.Duration `env:"DEPLOY_RETRY_BASE" envDefault:"2s"`

	NotifyEmails    string `env:"DEPLOY_NOTIFY_EMAILS" envDefault:"noreply@example.com"`
	AckWarnings     bool   `env:"DEPLOY_ACK_WARNINGS" envDefault:"true"`
	BootstrapAPIKey string `env:"BOOTSTRAP_API_KEY"`
}

// GetNotifyEmails returns the activation notification addresses as a slice.
func (c *DeployConfig) GetNotifyEmails() []string {
	if c.NotifyEmails == "" {
		return nil
	}
	emails := strings.Split(c.NotifyEmails, ",")
	for i := range emails {
		emails[i] = strings.TrimSpace(emails[i])
	}
	return emails
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Edgegrid); err != nil {
		return nil, fmt.Errorf("parsing edgegrid config: %w", err)
	}
	if err := env.Parse(&cfg.Deploy); err != nil {
		return nil, fmt.Errorf("parsing deploy config: %w", err)
	}

	if cfg.Edgegrid.EdgercPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.Edgegrid.EdgercPath = filepath.Join(home, ".edgerc")
		}
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// If using the file shim, edgegrid credentials are not required
	if c.Edgegrid.FileShim == "" && c.Edgegrid.EdgercPath == "" {
		return fmt.Errorf("EDGERC_PATH is required (or set PAPI_FILE_SHIM for testing)")
	}

	if c.Deploy.PollInterval <= 0 {
		return fmt.Errorf("DEPLOY_POLL_INTERVAL must be positive")
	}
	if c.Deploy.ActivationTimeout <= 0 {
		return fmt.Errorf("DEPLOY_ACTIVATION_TIMEOUT must be positive")
	}

	return nil
}

// UseFileShim returns true if the file shim should be used instead of the real API.
func (c *Config) UseFileShim() bool {
	return c.Edgegrid.FileShim != ""
}
