// Package migrations applies versioned data migrations to the PIM database.
package migrations

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
	"github.com/lychee-technology/pim/internal"
)

// Migration is a single versioned schema or data change.
type Migration struct {
	Version string
	Up      func(ctx context.Context, db internal.Querier) error
	Down    func(ctx context.Context, db internal.Querier) error
}

// Runner records applied versions in a history table.
type Runner struct {
	db    internal.Querier
	table string
}

func NewRunner(db internal.Querier, table string) *Runner {
	if table == "" {
		table = pim.DefaultTableNames().MigrationHistory
	}
	return &Runner{db: db, table: table}
}

func (r *Runner) quotedTable() string {
	return pgx.Identifier{r.table}.Sanitize()
}

func (r *Runner) ensureHistory(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version    VARCHAR(32) PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT now()
	)`, r.quotedTable())
	if _, err := r.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure migration history: %w", err)
	}
	return nil
}

// Applied returns the set of versions already recorded.
func (r *Runner) Applied(ctx context.Context) (map[string]bool, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, fmt.Sprintf("SELECT version FROM %s", r.quotedTable()))
	if err != nil {
		return nil, fmt.Errorf("query migration history: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Apply runs the pending migrations in version order and returns the
// versions it applied. It stops at the first failure.
func (r *Runner) Apply(ctx context.Context, migrations ...Migration) ([]string, error) {
	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]Migration, 0, len(migrations))
	for _, m := range migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return CompareVersions(pending[i].Version, pending[j].Version) < 0
	})

	var done []string
	for _, m := range pending {
		zap.S().Infow("applying migration", "version", m.Version)
		if m.Up == nil {
			return done, pim.NewMigrationError(m.Version, "migration has no up step", nil)
		}
		if err := m.Up(ctx, r.db); err != nil {
			return done, pim.NewMigrationError(m.Version, "migration failed", err)
		}
		if _, err := r.db.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version) VALUES ($1)", r.quotedTable()), m.Version); err != nil {
			return done, pim.NewMigrationError(m.Version, "record migration", err)
		}
		done = append(done, m.Version)
	}
	return done, nil
}

// Rollback runs the down step of m and removes it from the history.
func (r *Runner) Rollback(ctx context.Context, m Migration) error {
	if m.Down == nil {
		return pim.NewDowngradeProhibitedError(m.Version)
	}
	if err := m.Down(ctx, r.db); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", r.quotedTable()), m.Version); err != nil {
		return pim.NewMigrationError(m.Version, "remove migration record", err)
	}
	return nil
}

// CompareVersions compares dotted numeric versions such as "1.9.35".
// Non-numeric parts compare as strings.
func CompareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var sa, sb string
		if i < len(pa) {
			sa = pa[i]
		}
		if i < len(pb) {
			sb = pb[i]
		}
		na, errA := strconv.Atoi(sa)
		nb, errB := strconv.Atoi(sb)
		if sa == "" {
			na, errA = 0, nil
		}
		if sb == "" {
			nb, errB = 0, nil
		}
		if errA == nil && errB == nil {
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			continue
		}
		if c := strings.Compare(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

// All returns every known migration for the given table names.
func All(tables pim.TableNames) []Migration {
	return []Migration{V1Dot9Dot35(tables)}
}
