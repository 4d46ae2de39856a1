package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lychee-technology/pim"
)

const (
	s3AccessKey = "minio"
	s3SecretKey = "minio123"
)

// TestHarness holds lightweight runners for dependencies used by E2E tests.
type TestHarness struct {
	PGContainer testcontainers.Container
	PGDSN       string
	PGDB        *sql.DB
	Pool        *pgxpool.Pool
	S3Container testcontainers.Container
	S3Endpoint  string

	pgHost string
	pgPort int
}

// runContainer starts req and returns the container with the host and
// mapped port of port.
func runContainer(ctx context.Context, req testcontainers.ContainerRequest, port nat.Port) (testcontainers.Container, string, nat.Port, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", "", fmt.Errorf("start %s: %w", req.Image, err)
	}
	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, "", "", err
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, "", "", err
	}
	return c, host, mapped, nil
}

// StartPostgres runs postgres:16 with a pim database, waits for a lib/pq
// ping and opens a pgx pool. Caller is responsible for calling Stop.
func (h *TestHarness) StartPostgres(ctx context.Context) (string, error) {
	c, host, port, err := runContainer(ctx, testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "pim",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}, "5432/tcp")
	if err != nil {
		return "", err
	}
	h.PGContainer, h.pgHost, h.pgPort = c, host, port.Int()
	h.PGDSN = fmt.Sprintf("postgres://postgres:password@%s:%s/pim?sslmode=disable", host, port.Port())

	if h.PGDB, err = waitForPostgres(ctx, h.PGDSN, 20*time.Second); err != nil {
		return "", err
	}
	if h.Pool, err = pgxpool.New(ctx, h.PGDSN); err != nil {
		return "", fmt.Errorf("open pool: %w", err)
	}
	return h.PGDSN, nil
}

func waitForPostgres(ctx context.Context, dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			db.Close()
			return nil, fmt.Errorf("postgres did not become ready: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// StartS3 runs MinIO and returns its endpoint.
func (h *TestHarness) StartS3(ctx context.Context) (string, error) {
	c, host, port, err := runContainer(ctx, testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     s3AccessKey,
			"MINIO_ROOT_PASSWORD": s3SecretKey,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}, "9000/tcp")
	if err != nil {
		return "", err
	}
	h.S3Container = c
	h.S3Endpoint = fmt.Sprintf("http://%s:%s", host, port.Port())
	return h.S3Endpoint, nil
}

// Stop closes the database handles and terminates every started container.
func (h *TestHarness) Stop(ctx context.Context) {
	if h.Pool != nil {
		h.Pool.Close()
		h.Pool = nil
	}
	if h.PGDB != nil {
		h.PGDB.Close()
		h.PGDB = nil
	}
	for _, c := range []testcontainers.Container{h.PGContainer, h.S3Container} {
		if c != nil {
			_ = c.Terminate(ctx)
		}
	}
	h.PGContainer, h.S3Container = nil, nil
}

// Config returns a configuration pointing at the started containers.
func (h *TestHarness) Config(bucket, outputDir string) *pim.Config {
	cfg := pim.DefaultConfig()
	cfg.Database.Host = h.pgHost
	cfg.Database.Port = h.pgPort
	cfg.Database.Database = "pim"
	cfg.Database.Username = "postgres"
	cfg.Database.Password = "password"
	cfg.Database.MinConnections = 0
	cfg.Storage.Bucket = bucket
	cfg.Storage.Endpoint = h.S3Endpoint
	cfg.Storage.UsePathStyle = true
	cfg.Storage.AccessKeyID = s3AccessKey
	cfg.Storage.SecretAccessKey = s3SecretKey
	cfg.Export.Format = "csv"
	cfg.Export.OutputDir = outputDir
	cfg.Export.PageSize = 2
	return cfg
}
