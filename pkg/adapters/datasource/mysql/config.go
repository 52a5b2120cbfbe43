package mysql

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/grepdb/pkg/config"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      string // "", "true", "skip-verify", "preferred"
	Timeout  time.Duration
	Params   map[string]string
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// DefaultTimeout returns the default dial timeout.
func DefaultTimeout() time.Duration {
	return 10 * time.Second
}

// FromMap creates a Config from a generic config map.
// The database is optional: the catalog reader can list every database.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:    DefaultPort(),
		Timeout: DefaultTimeout(),
	}

	if host, ok := config["host"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	switch port := config["port"].(type) {
	case float64: // JSON numbers are float64
		cfg.Port = int(port)
	case int:
		cfg.Port = port
	case string:
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", port, err)
		}
		cfg.Port = p
	}

	if user, ok := config["user"].(string); ok && user != "" {
		cfg.User = user
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := config["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := config["database"].(string); ok {
		cfg.Database = database
	}

	if tls, ok := config["tls"].(string); ok {
		cfg.TLS = tls
	}

	switch params := config["params"].(type) {
	case map[string]string:
		cfg.Params = params
	case map[string]any:
		cfg.Params = make(map[string]string, len(params))
		for k, v := range params {
			cfg.Params[k] = fmt.Sprint(v)
		}
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}

	return cfg, nil
}

// DSN builds a go-sql-driver DSN. Values are never interpolated client side.
// When running in Docker, localhost is resolved to host.docker.internal.
func (c *Config) DSN() string {
	dsn := mysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port))
	dsn.DBName = c.Database
	dsn.Timeout = c.Timeout
	dsn.TLSConfig = c.TLS
	dsn.MultiStatements = false
	if len(c.Params) > 0 {
		dsn.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			dsn.Params[k] = v
		}
	}
	return dsn.FormatDSN()
}

// Address returns host:port as used in log lines and server metadata.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
