package internal

import (
	"context"
	"fmt"

	"github.com/lychee-technology/pim"
)

// PostgresEntityRepository loads single rows of arbitrary entity tables.
type PostgresEntityRepository struct {
	db     Querier
	tables map[string]string
}

var _ pim.EntityResolver = (*PostgresEntityRepository)(nil)

// NewPostgresEntityRepository maps entity types to tables through tables;
// other types use the snake_case of the type name.
func NewPostgresEntityRepository(db Querier, tables map[string]string) *PostgresEntityRepository {
	if tables == nil {
		tables = map[string]string{}
	}
	return &PostgresEntityRepository{db: db, tables: tables}
}

func (r *PostgresEntityRepository) tableFor(entityType string) string {
	if table, ok := r.tables[entityType]; ok && table != "" {
		return table
	}
	return pim.ToSnakeCase(entityType)
}

// GetEntity returns the non-deleted row of entityType with the given id.
func (r *PostgresEntityRepository) GetEntity(ctx context.Context, entityType, id string) (*pim.Entity, error) {
	table, err := checkedIdentifier(r.tableFor(entityType))
	if err != nil {
		return nil, fmt.Errorf("entity type %q: %w", entityType, err)
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1 AND deleted = false LIMIT 1", table)

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", entityType, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query %s: %w", entityType, err)
		}
		return nil, fmt.Errorf("%s %q: %w", entityType, id, pim.ErrResolutionMiss)
	}

	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("read %s row: %w", entityType, err)
	}
	fields := make(map[string]any, len(values))
	for i, fd := range rows.FieldDescriptions() {
		if i < len(values) {
			fields[fd.Name] = values[i]
		}
	}
	return &pim.Entity{Type: entityType, ID: id, Fields: fields}, nil
}
