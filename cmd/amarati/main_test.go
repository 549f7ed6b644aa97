package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/amarati/amarati-core/internal/auth"
	"github.com/amarati/amarati-core/internal/infrastructure/database"
)

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(configPathEnv, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingSecret verifies run refuses to start without a JWT secret.
func TestRun_MissingSecret(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(`
database:
  path: %q
`, filepath.Join(t.TempDir(), "amarati.db")))
	t.Setenv(configPathEnv, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without security.jwt.secret")
	}
}

// TestGetConfigPath verifies the default and the environment override.
func TestGetConfigPath(t *testing.T) {
	t.Setenv(configPathEnv, "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv(configPathEnv, "/custom/path/config.yaml")
	if got := getConfigPath(); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want override", got)
	}
}

// TestRun_StartupAndShutdown boots the full stack against miniredis and
// checks the admin seed landed in the database.
func TestRun_StartupAndShutdown(t *testing.T) {
	mr := miniredis.RunT(t)
	dbPath := filepath.Join(t.TempDir(), "amarati.db")

	path := writeConfig(t, fmt.Sprintf(`
database:
  path: %q
api:
  host: "127.0.0.1"
  port: %d
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
  rate_limit:
    enabled: true
redis:
  enabled: true
  addr: %q
logging:
  level: error
`, dbPath, freePort(t), mr.Addr()))
	t.Setenv(configPathEnv, path)
	t.Setenv(seedAdminEnv, "root@amarati.test")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	db, err := database.Open(database.Config{Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("reopening database: %v", err)
	}
	defer db.Close()

	version, err := db.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version == 0 {
		t.Error("schema version = 0, want migrations applied")
	}

	count, err := auth.NewUserRepository(db.DB).CountByRole(context.Background(), auth.RoleAdmin)
	if err != nil {
		t.Fatalf("CountByRole() error = %v", err)
	}
	if count != 1 {
		t.Errorf("admin count = %d, want 1", count)
	}
}
