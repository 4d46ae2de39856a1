package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
)

const enumOptionColumns = "id, extensible_enum_id, COALESCE(code, ''), COALESCE(name, ''), COALESCE(color, ''), sort_order"

// PostgresExtensibleEnumRepository resolves extensible enum options.
type PostgresExtensibleEnumRepository struct {
	db    Querier
	table string
}

var _ pim.ExtensibleEnumResolver = (*PostgresExtensibleEnumRepository)(nil)

func NewPostgresExtensibleEnumRepository(db Querier, table string) *PostgresExtensibleEnumRepository {
	if table == "" {
		table = pim.DefaultTableNames().ExtensibleEnumOption
	}
	return &PostgresExtensibleEnumRepository{db: db, table: table}
}

func scanOption(row pgx.Row) (pim.Option, error) {
	var opt pim.Option
	if err := row.Scan(&opt.ID, &opt.ExtensibleEnumID, &opt.Code, &opt.Name, &opt.Color, &opt.SortOrder); err != nil {
		return pim.Option{}, err
	}
	return prepareOption(opt), nil
}

// prepareOption fills the display name, falling back to the code.
func prepareOption(opt pim.Option) pim.Option {
	opt.PreparedName = opt.Name
	if opt.PreparedName == "" {
		opt.PreparedName = opt.Code
	}
	return opt
}

// FindOptionByIDOrCode prefers an id match over a code match.
func (r *PostgresExtensibleEnumRepository) FindOptionByIDOrCode(ctx context.Context, enumID, value string) (pim.Option, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE extensible_enum_id = $1 AND (id = $2 OR code = $2) AND deleted = false ORDER BY CASE WHEN id = $2 THEN 0 ELSE 1 END LIMIT 1",
		enumOptionColumns, sanitizeIdentifier(r.table),
	)
	opt, err := scanOption(r.db.QueryRow(ctx, query, enumID, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return pim.Option{}, fmt.Errorf("extensible enum option %q: %w", value, pim.ErrResolutionMiss)
	}
	if err != nil {
		return pim.Option{}, fmt.Errorf("find extensible enum option: %w", err)
	}
	return opt, nil
}

func (r *PostgresExtensibleEnumRepository) GetPreparedOption(ctx context.Context, enumID, id string) (pim.Option, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE extensible_enum_id = $1 AND id = $2 AND deleted = false",
		enumOptionColumns, sanitizeIdentifier(r.table),
	)
	opt, err := scanOption(r.db.QueryRow(ctx, query, enumID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return pim.Option{}, fmt.Errorf("extensible enum option %q: %w", id, pim.ErrResolutionMiss)
	}
	if err != nil {
		return pim.Option{}, fmt.Errorf("get extensible enum option: %w", err)
	}
	return opt, nil
}

// GetPreparedOptions returns the options found for ids, in the order of ids.
// Unknown ids are skipped.
func (r *PostgresExtensibleEnumRepository) GetPreparedOptions(ctx context.Context, enumID string, ids []string) ([]pim.Option, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE extensible_enum_id = $1 AND id = ANY($2) AND deleted = false",
		enumOptionColumns, sanitizeIdentifier(r.table),
	)
	rows, err := r.db.Query(ctx, query, enumID, ids)
	if err != nil {
		return nil, fmt.Errorf("query extensible enum options: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]pim.Option, len(ids))
	for rows.Next() {
		opt, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan extensible enum option: %w", err)
		}
		byID[opt.ID] = opt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate extensible enum options: %w", err)
	}

	out := make([]pim.Option, 0, len(byID))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		opt, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, opt)
	}
	if len(out) < len(ids) {
		zap.S().Debugw("unresolved extensible enum options", "enumId", enumID, "requested", len(ids), "found", len(out))
	}
	return out, nil
}
