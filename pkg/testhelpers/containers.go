// Package testhelpers starts shared database containers for integration tests.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/database"
)

const (
	MySQLImage    = "mysql:8.0"
	PostgresImage = "postgres:16-alpine"

	TestDatabase = "grepdb_test"
	TestUser     = "root"
	TestPassword = "test_password"
)

// TestMySQL holds a shared MySQL container seeded with the fixture schema.
type TestMySQL struct {
	Container testcontainers.Container
	DB        *sql.DB
	Host      string
	Port      int
}

// Config returns the adapter config map for the container.
func (m *TestMySQL) Config() map[string]any {
	return map[string]any{
		"host":     m.Host,
		"port":     m.Port,
		"user":     TestUser,
		"password": TestPassword,
		"database": TestDatabase,
	}
}

var (
	sharedMySQL     *TestMySQL
	sharedMySQLOnce sync.Once
	sharedMySQLErr  error
)

// GetTestMySQL returns a shared MySQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestMySQL(t *testing.T) *TestMySQL {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedMySQLOnce.Do(func() {
		sharedMySQL, sharedMySQLErr = setupMySQL()
	})

	if sharedMySQLErr != nil {
		t.Fatalf("Failed to setup test mysql: %v", sharedMySQLErr)
	}

	return sharedMySQL
}

func setupMySQL() (*TestMySQL, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        MySQLImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": TestPassword,
			"MYSQL_DATABASE":      TestDatabase,
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start mysql container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	dsn := mysql.NewConfig()
	dsn.User = TestUser
	dsn.Passwd = TestPassword
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(host, port.Port())
	dsn.DBName = TestDatabase
	dsn.MultiStatements = true // fixture migrations hold several statements

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 20; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("mysql never became ready: %w", err)
	}

	if err := database.RunFixtureMigrations(db, zap.NewNop()); err != nil {
		return nil, err
	}

	return &TestMySQL{
		Container: container,
		DB:        db,
		Host:      host,
		Port:      port.Int(),
	}, nil
}

// TestPostgres holds a shared PostgreSQL container.
type TestPostgres struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	Host      string
	Port      int
}

// Config returns the adapter config map for the container.
func (p *TestPostgres) Config() map[string]any {
	return map[string]any{
		"host":     p.Host,
		"port":     p.Port,
		"user":     "grepdb",
		"password": TestPassword,
		"database": TestDatabase,
		"ssl_mode": "disable",
	}
}

var (
	sharedPostgres     *TestPostgres
	sharedPostgresOnce sync.Once
	sharedPostgresErr  error
)

// GetTestPostgres returns a shared PostgreSQL container for integration tests.
func GetTestPostgres(t *testing.T) *TestPostgres {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedPostgresOnce.Do(func() {
		sharedPostgres, sharedPostgresErr = setupPostgres()
	})

	if sharedPostgresErr != nil {
		t.Fatalf("Failed to setup test postgres: %v", sharedPostgresErr)
	}

	return sharedPostgres
}

func setupPostgres() (*TestPostgres, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       TestDatabase,
			"POSTGRES_USER":     "grepdb",
			"POSTGRES_PASSWORD": TestPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://grepdb:%s@%s:%s/%s?sslmode=disable",
		TestPassword, host, port.Port(), TestDatabase)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres never became ready: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresFixture); err != nil {
		return nil, fmt.Errorf("failed to seed postgres: %w", err)
	}

	return &TestPostgres{
		Container: container,
		Pool:      pool,
		Host:      host,
		Port:      port.Int(),
	}, nil
}

const postgresFixture = `
CREATE TABLE IF NOT EXISTS posts (
	id SERIAL PRIMARY KEY,
	title VARCHAR(11) NOT NULL,
	content TEXT,
	meta TEXT
);
TRUNCATE posts;
INSERT INTO posts (id, title, content, meta) VALUES
	(1, 'hello', 'visit http://old.example.com today', NULL),
	(2, 'old site', 'nothing to see', 'a:1:{s:3:"url";s:22:"http://old.example.com";}'),
	(5, 'old', 'old old old', NULL);
`
