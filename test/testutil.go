//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)

	"github.com/coregx/sqlforge"
)

// DatabaseSetup encapsulates a handle, the DSN it was opened with and cleanup.
type DatabaseSetup struct {
	DB        *sqlforge.DB
	DSN       string
	Container testcontainers.Container
	Dialect   string
}

// Close cleans up database resources.
func (ds *DatabaseSetup) Close() {
	if ds.DB != nil {
		ds.DB.Close() //nolint:errcheck
	}
	if ds.Container != nil {
		ds.Container.Terminate(context.Background()) //nolint:errcheck
	}
}

// fastRecovery keeps reconnect attempts short so failures surface quickly.
var fastRecovery = sqlforge.WithReconnectPolicy(sqlforge.ReconnectPolicy{
	MaxAttempts: 5,
	RetryDelay:  100 * time.Millisecond,
	OnExhaust:   sqlforge.ExhaustReturnError,
})

// SetupPostgreSQLTestDB creates a PostgreSQL test database.
// Uses testcontainers if available, falls back to env DSN.
func SetupPostgreSQLTestDB(t *testing.T, opts ...sqlforge.Option) *DatabaseSetup {
	ctx := context.Background()
	opts = append([]sqlforge.Option{fastRecovery}, opts...)

	// Check for manual DSN first (allows testing without Docker)
	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		db, err := sqlforge.Open("postgres", dsn, opts...)
		require.NoError(t, err)
		return &DatabaseSetup{DB: db, DSN: dsn, Dialect: "postgres"}
	}

	// Start PostgreSQL in Docker via testcontainers
	pgContainer, err := postgres.Run(
		ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for PostgreSQL integration tests: " + err.Error())
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sqlforge.Open("postgres", dsn, opts...)
	require.NoError(t, err)

	return &DatabaseSetup{
		DB:        db,
		DSN:       dsn,
		Container: pgContainer,
		Dialect:   "postgres",
	}
}

// SetupMySQLTestDB creates a MySQL test database.
// Uses testcontainers if available, falls back to env DSN.
func SetupMySQLTestDB(t *testing.T, opts ...sqlforge.Option) *DatabaseSetup {
	ctx := context.Background()
	opts = append([]sqlforge.Option{fastRecovery}, opts...)

	// Check for manual DSN first
	if dsn := os.Getenv("MYSQL_TEST_DSN"); dsn != "" {
		dsn = withParseTime(dsn)
		db, err := sqlforge.Open("mysql", dsn, opts...)
		require.NoError(t, err)
		return &DatabaseSetup{DB: db, DSN: dsn, Dialect: "mysql"}
	}

	// Start MySQL in Docker via testcontainers
	mysqlContainer, err := mysql.Run(
		ctx,
		"mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("user"),
		mysql.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for MySQL integration tests: " + err.Error())
	}

	dsn, err := mysqlContainer.ConnectionString(ctx)
	require.NoError(t, err)
	dsn = withParseTime(dsn)

	db, err := sqlforge.Open("mysql", dsn, opts...)
	require.NoError(t, err)

	return &DatabaseSetup{
		DB:        db,
		DSN:       dsn,
		Container: mysqlContainer,
		Dialect:   "mysql",
	}
}

// SetupSQLiteTestDB creates an in-memory SQLite database.
// Always works, no external dependencies.
func SetupSQLiteTestDB(t *testing.T, opts ...sqlforge.Option) *DatabaseSetup {
	db, err := sqlforge.Open("sqlite", ":memory:", opts...)
	require.NoError(t, err)

	return &DatabaseSetup{
		DB:      db,
		DSN:     ":memory:",
		Dialect: "sqlite",
	}
}

// withParseTime enables time.Time scanning for DATETIME/TIMESTAMP columns.
// Without it the MySQL driver returns []uint8.
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=true") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// CreateUsersTable creates the users table.
func CreateUsersTable(t *testing.T, db *sqlforge.DB, dialect string) {
	var createSQL string

	switch dialect {
	case "postgres":
		createSQL = `
			CREATE TABLE IF NOT EXISTS users (
				id SERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT UNIQUE NOT NULL,
				status INTEGER DEFAULT 1,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`
	case "mysql":
		createSQL = `
			CREATE TABLE IF NOT EXISTS users (
				id INT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) UNIQUE NOT NULL,
				status INT DEFAULT 1,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`
	case "sqlite":
		createSQL = `
			CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				email TEXT UNIQUE NOT NULL,
				status INTEGER DEFAULT 1,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`
	}

	require.NoError(t, db.BatchExec(context.Background(), createSQL))
}

// InsertTestUsers inserts count users through one re-bound INSERT.
func InsertTestUsers(t *testing.T, db *sqlforge.DB, count int) {
	q := db.Builder().Insert("users").
		Value("name", sqlforge.P(":name")).
		Value("email", sqlforge.P(":email")).
		Build()
	defer q.Close()

	for i := 1; i <= count; i++ {
		_, err := q.BindParams(sqlforge.Params{
			"name":  "User " + string(rune('A'+i-1)),
			"email": "user" + string(rune('a'+i-1)) + "@example.com",
		}).Execute()
		require.NoError(t, err)
	}
}
