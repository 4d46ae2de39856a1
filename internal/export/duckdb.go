package export

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
)

// DuckDBClient wraps a database/sql DB opened with the DuckDB driver. It
// stages converted rows and writes export files.
type DuckDBClient struct {
	DB  *sql.DB
	cfg pim.ExportConfig
}

var compressionRegex = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// ValidateExportConfig performs basic sanity checks on export settings.
func ValidateExportConfig(cfg pim.ExportConfig) error {
	if cfg.MemoryMB < 0 {
		return fmt.Errorf("export.memoryMb must be >= 0")
	}
	if cfg.Threads < 0 {
		return fmt.Errorf("export.threads must be >= 0")
	}
	if cfg.PageSize <= 0 {
		return fmt.Errorf("export.pageSize must be > 0")
	}
	switch cfg.Format {
	case FormatParquet, FormatCSV:
	default:
		return fmt.Errorf("export.format must be %q or %q, got %q", FormatParquet, FormatCSV, cfg.Format)
	}
	if !compressionRegex.MatchString(cfg.Compression) {
		return fmt.Errorf("export.compression has invalid characters: %q", cfg.Compression)
	}
	return nil
}

// NewDuckDBClient opens DuckDB at cfg.DuckDBPath (in-memory when empty) and
// applies the resource pragmas.
func NewDuckDBClient(ctx context.Context, cfg pim.ExportConfig) (*DuckDBClient, error) {
	dsn := cfg.DuckDBPath
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	if cfg.MemoryMB > 0 {
		if _, err := db.ExecContext(pingCtx, fmt.Sprintf("PRAGMA memory_limit='%dMB';", cfg.MemoryMB)); err != nil {
			zap.S().Warnw("duckdb: set memory_limit failed", "err", err, "memoryMb", cfg.MemoryMB)
		}
	}
	if cfg.Threads > 0 {
		if _, err := db.ExecContext(pingCtx, fmt.Sprintf("PRAGMA threads=%d;", cfg.Threads)); err != nil {
			zap.S().Warnw("duckdb: set threads failed", "err", err, "threads", cfg.Threads)
		}
	}

	return &DuckDBClient{DB: db, cfg: cfg}, nil
}

// Close closes the underlying DuckDB DB.
func (c *DuckDBClient) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// HealthCheck runs a trivial query.
func (c *DuckDBClient) HealthCheck(ctx context.Context) error {
	if c == nil || c.DB == nil {
		return fmt.Errorf("duckdb client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var v int
	if err := c.DB.QueryRowContext(ctx, "SELECT 1;").Scan(&v); err != nil {
		return fmt.Errorf("duckdb health query failed: %w", err)
	}
	if v != 1 {
		return fmt.Errorf("unexpected duckdb health result: %d", v)
	}
	return nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// copyOptions renders the COPY ... TO options for the configured format.
func copyOptions(cfg pim.ExportConfig) string {
	if cfg.Format == FormatCSV {
		return "(FORMAT CSV, HEADER)"
	}
	if cfg.Compression != "" {
		return fmt.Sprintf("(FORMAT PARQUET, COMPRESSION %s)", strings.ToUpper(cfg.Compression))
	}
	return "(FORMAT PARQUET)"
}
