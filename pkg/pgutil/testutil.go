package pgutil

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"github.com/chainsafe/qtx-rewards/pkg/config"
)

const (
	testImage      = "postgres:16-alpine"
	testConnects   = 8
	testConnectGap = 250 * time.Millisecond
)

// RequireDocker skips the test when no docker daemon socket is reachable.
func RequireDocker(t *testing.T) {
	t.Helper()

	sockets := []string{"/var/run/docker.sock"}
	if home, err := os.UserHomeDir(); err == nil {
		sockets = append(sockets, filepath.Join(home, ".docker", "run", "docker.sock"))
	}
	for _, sock := range sockets {
		conn, err := net.DialTimeout("unix", sock, time.Second)
		if err == nil {
			_ = conn.Close()
			return
		}
	}
	t.Skip("docker is not available; skipping postgres-backed test")
}

// SetupTestDB starts a throwaway postgres container and connects to it.
// The returned func closes the connection and removes the container.
func SetupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()
	RequireDocker(t)
	ctx := context.Background()

	cfg := &config.DatabaseConfig{
		User:     "qtx",
		Password: "qtx",
		Database: "qtx_test",
		SSLMode:  "disable",
	}

	container, err := postgres.Run(ctx, testImage,
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.User),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	terminate := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	if cfg.Host, err = container.Host(ctx); err != nil {
		terminate()
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		terminate()
		t.Fatalf("failed to get container port: %v", err)
	}
	cfg.Port = port.Int()

	db, err := connectWithRetry(cfg)
	if err != nil {
		terminate()
		t.Fatalf("failed to connect to test database: %v", err)
	}

	return db, func() {
		_ = db.Close()
		terminate()
	}
}

func connectWithRetry(cfg *config.DatabaseConfig) (db *bun.DB, err error) {
	for i := 0; i < testConnects; i++ {
		if db, err = ConnectDB(cfg); err == nil {
			return db, nil
		}
		time.Sleep(testConnectGap)
	}
	return nil, err
}

func catalogHas(t *testing.T, db *bun.DB, query, name string) bool {
	t.Helper()
	var exists bool
	if err := db.NewSelect().ColumnExpr("EXISTS ("+query+")", "public", name).Scan(context.Background(), &exists); err != nil {
		t.Fatalf("failed to look up %s: %v", name, err)
	}
	return exists
}

const (
	tableQuery = "SELECT 1 FROM information_schema.tables WHERE table_schema = ? AND table_name = ?"
	indexQuery = "SELECT 1 FROM pg_indexes WHERE schemaname = ? AND indexname = ?"
)

// AssertTableExists fails the test when the table is missing
func AssertTableExists(t *testing.T, db *bun.DB, table string) {
	t.Helper()
	if !catalogHas(t, db, tableQuery, table) {
		t.Errorf("table %s does not exist", table)
	}
}

// AssertTableNotExists fails the test when the table is present
func AssertTableNotExists(t *testing.T, db *bun.DB, table string) {
	t.Helper()
	if catalogHas(t, db, tableQuery, table) {
		t.Errorf("table %s should not exist", table)
	}
}

// AssertIndexExists fails the test when the index is missing
func AssertIndexExists(t *testing.T, db *bun.DB, index string) {
	t.Helper()
	if !catalogHas(t, db, indexQuery, index) {
		t.Errorf("index %s does not exist", index)
	}
}
