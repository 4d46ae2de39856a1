package internal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
)

// PostgresMeasureRepository lists measure units.
type PostgresMeasureRepository struct {
	db    Querier
	table string
}

var _ pim.MeasureUnitResolver = (*PostgresMeasureRepository)(nil)

func NewPostgresMeasureRepository(db Querier, table string) *PostgresMeasureRepository {
	if table == "" {
		table = pim.DefaultTableNames().Unit
	}
	return &PostgresMeasureRepository{db: db, table: table}
}

// ListUnits returns the units of measureID ordered by sort order and name.
// An unknown measure yields an empty list.
func (r *PostgresMeasureRepository) ListUnits(ctx context.Context, measureID string) ([]pim.Unit, error) {
	query := fmt.Sprintf(
		"SELECT id, name, measure_id, is_default FROM %s WHERE measure_id = $1 AND deleted = false ORDER BY sort_order, name",
		sanitizeIdentifier(r.table),
	)
	zap.S().Debugw("list units", "measureId", measureID)

	rows, err := r.db.Query(ctx, query, measureID)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var units []pim.Unit
	for rows.Next() {
		var u pim.Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.MeasureID, &u.IsDefault); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}
