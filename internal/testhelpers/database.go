package testhelpers

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/postgres"
	"github.com/DanielPopoola/etterlatte-settlement/internal/config"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ledgerTables are emptied between tests, children first.
const ledgerTables = `payment_order_status_history, payment_line, payment_order, reconciliation_batch`

// TestDatabase is a migrated ledger database in a throwaway container.
type TestDatabase struct {
	Container testcontainers.Container
	DB        *postgres.DB
	Config    *config.DatabaseConfig
}

func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "settlement",
				"POSTGRES_PASSWORD": "settlement",
				"POSTGRES_DB":       "settlement",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "settlement",
		Password:        "settlement",
		Name:            "settlement",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}

	db, err := postgres.Connect(ctx, cfg, Logger())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	return &TestDatabase{Container: container, DB: db, Config: cfg}
}

func (td *TestDatabase) Cleanup(t *testing.T) {
	td.DB.Close()
	require.NoError(t, td.Container.Terminate(context.Background()))
}

// CleanTables empties the ledger but keeps schema_migrations. TRUNCATE
// bypasses the append-only row trigger on reconciliation_batch.
func (td *TestDatabase) CleanTables(t *testing.T) {
	t.Helper()
	_, err := td.DB.Pool.Exec(context.Background(), `TRUNCATE TABLE `+ledgerTables+` RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

// OrdersForDecision counts the stored attempts of a decision.
func (td *TestDatabase) OrdersForDecision(t *testing.T, decisionID int64) int {
	return td.count(t, `SELECT COUNT(*) FROM payment_order WHERE decision_id = $1`, decisionID)
}

// StatusTransitions counts the history rows written for one request.
func (td *TestDatabase) StatusTransitions(t *testing.T, id uuid.UUID) int {
	return td.count(t, `SELECT COUNT(*) FROM payment_order_status_history WHERE order_id = $1`, id)
}

// ReportedBatches counts batches of kind that covered at least one order.
func (td *TestDatabase) ReportedBatches(t *testing.T, kind domain.BatchKind) int {
	return td.count(t, `SELECT COUNT(*) FROM reconciliation_batch WHERE kind = $1 AND order_count > 0`, string(kind))
}

// AppliedMigrations counts the rows in schema_migrations.
func (td *TestDatabase) AppliedMigrations(t *testing.T) int {
	return td.count(t, `SELECT COUNT(*) FROM schema_migrations`)
}

func (td *TestDatabase) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, td.DB.Pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

// Logger is a quiet logger for tests.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}
