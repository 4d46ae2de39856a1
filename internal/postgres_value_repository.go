package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
)

// ProductAttributeValue is one row of the product attribute value table.
type ProductAttributeValue struct {
	ID          string
	ProductID   string
	AttributeID string
	Scope       string
	ChannelID   string
	Language    string
	pim.StoredValue
}

// PostgresValueRepository reads and writes the stored columns of product
// attribute values.
type PostgresValueRepository struct {
	db    Querier
	table string
}

func NewPostgresValueRepository(db Querier, table string) *PostgresValueRepository {
	if table == "" {
		table = pim.DefaultTableNames().ProductAttributeValue
	}
	return &PostgresValueRepository{db: db, table: table}
}

const valueSelectColumns = "id, product_id, attribute_id, COALESCE(scope, ''), COALESCE(channel_id, ''), COALESCE(language, ''), " +
	"bool_value, int_value, int_value1, float_value, float_value1, varchar_value, text_value, " +
	"to_char(date_value, 'YYYY-MM-DD'), to_char(datetime_value, 'YYYY-MM-DD HH24:MI:SS'), reference_value"

func nullable[T any](p *T) pim.Field[T] {
	if p == nil {
		return pim.Null[T]()
	}
	return pim.Some(*p)
}

func scanValue(row pgx.Row) (ProductAttributeValue, error) {
	var (
		v                                        ProductAttributeValue
		boolV                                    *bool
		intV, int1V                              *int64
		floatV, float1V                          *float64
		varcharV, textV, dateV, datetimeV, refV *string
	)
	err := row.Scan(
		&v.ID, &v.ProductID, &v.AttributeID, &v.Scope, &v.ChannelID, &v.Language,
		&boolV, &intV, &int1V, &floatV, &float1V, &varcharV, &textV, &dateV, &datetimeV, &refV,
	)
	if err != nil {
		return ProductAttributeValue{}, err
	}
	v.BoolValue = nullable(boolV)
	v.IntValue = nullable(intV)
	v.IntValue1 = nullable(int1V)
	v.FloatValue = nullable(floatV)
	v.FloatValue1 = nullable(float1V)
	v.VarcharValue = nullable(varcharV)
	v.TextValue = nullable(textV)
	v.DateValue = nullable(dateV)
	v.DatetimeValue = nullable(datetimeV)
	v.ReferenceValue = nullable(refV)
	return v, nil
}

// FetchValue loads a single row; every stored column is present, null when
// NULL in the database.
func (r *PostgresValueRepository) FetchValue(ctx context.Context, id string) (ProductAttributeValue, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND deleted = false", valueSelectColumns, sanitizeIdentifier(r.table))
	v, err := scanValue(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductAttributeValue{}, fmt.Errorf("product attribute value %q: %w", id, pim.ErrResolutionMiss)
	}
	if err != nil {
		return ProductAttributeValue{}, fmt.Errorf("fetch product attribute value: %w", err)
	}
	return v, nil
}

// FetchValues loads the rows with the given ids, ordered by id.
func (r *PostgresValueRepository) FetchValues(ctx context.Context, ids []string) ([]ProductAttributeValue, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ANY($1) AND deleted = false ORDER BY id", valueSelectColumns, sanitizeIdentifier(r.table))
	return r.collect(ctx, query, ids)
}

// FetchValuesPage returns up to limit rows with id greater than afterID.
// An empty afterID starts from the beginning.
func (r *PostgresValueRepository) FetchValuesPage(ctx context.Context, afterID string, limit int) ([]ProductAttributeValue, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("page limit must be positive, got %d", limit)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE id > $1 AND deleted = false ORDER BY id LIMIT $2",
		valueSelectColumns, sanitizeIdentifier(r.table),
	)
	return r.collect(ctx, query, afterID, limit)
}

func (r *PostgresValueRepository) collect(ctx context.Context, query string, args ...any) ([]ProductAttributeValue, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query product attribute values: %w", err)
	}
	defer rows.Close()

	var out []ProductAttributeValue
	for rows.Next() {
		v, err := scanValue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product attribute value: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product attribute values: %w", err)
	}
	return out, nil
}

func columnPlaceholder(c pim.StoredColumn, n int) string {
	switch c {
	case pim.ColumnDate:
		return fmt.Sprintf("$%d::date", n)
	case pim.ColumnDatetime:
		return fmt.Sprintf("$%d::timestamp", n)
	}
	return fmt.Sprintf("$%d", n)
}

// SaveStoredValue updates the present columns of sv on row id. Absent
// columns keep their stored value; null columns are set to NULL.
func (r *PostgresValueRepository) SaveStoredValue(ctx context.Context, id string, sv *pim.StoredValue) error {
	cols := sv.Populated()
	if len(cols) == 0 {
		return nil
	}

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	args = append(args, id)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = %s", c.DBName(), columnPlaceholder(c, i+2)))
		args = append(args, sv.Column(c))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", sanitizeIdentifier(r.table), strings.Join(sets, ", "))
	zap.S().Debugw("save stored value", "id", id, "columns", len(cols))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update product attribute value: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product attribute value %q: %w", id, pim.ErrResolutionMiss)
	}
	return nil
}
