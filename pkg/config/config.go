package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "grepdb.yaml"

// Config holds all configuration for grepdb.
// Configuration can come from a YAML file (grepdb.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, client secrets) must only come from environment variables.
type Config struct {
	Version string `yaml:"-"` // Set at load time, not from config

	// Datasource is the database searched and rewritten.
	Datasource DatasourceConfig `yaml:"datasource"`

	Replace ReplaceConfig `yaml:"replace"`

	Log LogConfig `yaml:"log"`

	// Connection pool and retry settings
	Connection ConnectionConfig `yaml:"connection"`
}

// DatasourceConfig identifies the target database.
type DatasourceConfig struct {
	Type     string `yaml:"type" env:"GREPDB_TYPE" env-default:"mysql"`
	Host     string `yaml:"host" env:"GREPDB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"GREPDB_PORT"` // 0 = dialect default
	User     string `yaml:"user" env:"GREPDB_USER" env-default:"root"`
	Password string `yaml:"-" env:"GREPDB_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"GREPDB_DATABASE"`

	// SSLMode applies to postgres ("disable", "require", "verify-ca", "verify-full").
	SSLMode string `yaml:"ssl_mode" env:"GREPDB_SSL_MODE"`
	// TLS applies to mysql ("true", "skip-verify", "preferred").
	TLS string `yaml:"tls" env:"GREPDB_TLS"`
	// Params are extra driver parameters, "key:value" pairs in the environment.
	Params map[string]string `yaml:"params" env:"GREPDB_PARAMS" env-separator:","`

	// SQL Server service principal authentication
	AuthMethod   string `yaml:"auth_method" env:"GREPDB_AUTH_METHOD"`
	TenantID     string `yaml:"tenant_id" env:"GREPDB_TENANT_ID"`
	ClientID     string `yaml:"client_id" env:"GREPDB_CLIENT_ID"`
	ClientSecret string `yaml:"-" env:"GREPDB_CLIENT_SECRET"` // Secret - not in YAML
}

// ReplaceConfig holds replace defaults.
type ReplaceConfig struct {
	BatchSize int  `yaml:"batch_size" env:"GREPDB_BATCH_SIZE" env-default:"100"`
	DryRun    bool `yaml:"dry_run" env:"GREPDB_DRY_RUN" env-default:"false"`
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level  string `yaml:"level" env:"GREPDB_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"GREPDB_LOG_FORMAT" env-default:"console"` // "console" or "json"
}

// ConnectionConfig holds pool and retry settings.
type ConnectionConfig struct {
	// TTLMinutes is how long an idle pool is kept alive.
	TTLMinutes int `yaml:"ttl_minutes" env:"GREPDB_CONNECTION_TTL_MINUTES" env-default:"5"`
	// MaxOpenConns is the maximum number of connections per pool.
	MaxOpenConns int32 `yaml:"max_open_conns" env:"GREPDB_MAX_OPEN_CONNS" env-default:"4"`
	// RetryAttempts is how often a deadlocked statement is retried. 0 disables retries.
	RetryAttempts int `yaml:"retry_attempts" env:"GREPDB_RETRY_ATTEMPTS" env-default:"3"`
}

// Load reads configuration from the YAML file at path with environment
// variable overrides. A .env file in the working directory is loaded first
// when present. An empty path reads DefaultPath if it exists and the
// environment otherwise. The version parameter is injected at build time.
func Load(version, path string) (*Config, error) {
	// Missing .env is the normal case
	_ = godotenv.Load()

	cfg := &Config{
		Version: version,
	}

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Datasource.Type == "" {
		return fmt.Errorf("datasource.type is required")
	}
	if c.Datasource.Port < 0 || c.Datasource.Port > 65535 {
		return fmt.Errorf("datasource.port %d out of range", c.Datasource.Port)
	}
	if c.Replace.BatchSize <= 0 {
		return fmt.Errorf("replace.batch_size must be positive, got %d", c.Replace.BatchSize)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	if c.Connection.RetryAttempts < 0 {
		return fmt.Errorf("connection.retry_attempts must not be negative")
	}
	return nil
}

// AdapterConfig returns the generic connection map the datasource adapters
// read. Empty values are left out so adapter defaults apply. Adapters resolve
// localhost for Docker themselves.
func (d *DatasourceConfig) AdapterConfig() map[string]any {
	m := map[string]any{
		"host":     d.Host,
		"user":     d.User,
		"password": d.Password,
	}
	if d.Port > 0 {
		m["port"] = d.Port
	}
	optional := map[string]string{
		"database":      d.Database,
		"ssl_mode":      d.SSLMode,
		"tls":           d.TLS,
		"auth_method":   d.AuthMethod,
		"tenant_id":     d.TenantID,
		"client_id":     d.ClientID,
		"client_secret": d.ClientSecret,
	}
	for k, v := range optional {
		if v != "" {
			m[k] = v
		}
	}
	if len(d.Params) > 0 {
		params := make(map[string]string, len(d.Params))
		for k, v := range d.Params {
			params[k] = v
		}
		m["params"] = params
	}
	return m
}

// String describes the target without credentials.
func (d *DatasourceConfig) String() string {
	target := d.Host
	if d.Port > 0 {
		target += ":" + strconv.Itoa(d.Port)
	}
	if d.Database != "" {
		target += "/" + d.Database
	}
	return fmt.Sprintf("%s://%s@%s", d.Type, d.User, target)
}
