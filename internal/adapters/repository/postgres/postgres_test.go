//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/adapters/repository/storetest"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return "", func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
	return dsn, func() { _ = container.Terminate(ctx) }
}

// truncatingStore resets tables on open so each contract case starts empty.
func truncatingStore(dsn string) storetest.Factory {
	return func(t *testing.T) repository.Store {
		t.Helper()
		ctx := context.Background()
		s, err := New(ctx, dsn, WithMaxOpenConns(8))
		if err != nil {
			t.Fatalf("Failed to open store: %v", err)
		}
		if _, err := s.DB().ExecContext(ctx,
			"TRUNCATE enrollments, sessions, attendance RESTART IDENTITY"); err != nil {
			t.Fatalf("Failed to truncate: %v", err)
		}
		return s
	}
}

func TestPostgresStoreContract(t *testing.T) {
	dsn, cleanup := setupTestContainer(t)
	if dsn == "" {
		return
	}
	defer cleanup()

	storetest.Run(t, truncatingStore(dsn))
}

func TestPostgresMigrationsIdempotent(t *testing.T) {
	dsn, cleanup := setupTestContainer(t)
	if dsn == "" {
		return
	}
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		s, err := New(ctx, dsn)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		s.Close()
	}
}
