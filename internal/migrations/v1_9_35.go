package migrations

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
	"github.com/lychee-technology/pim/internal"
)

const fieldDataSchemaJSON = `{
	"type": "object",
	"required": ["field"],
	"properties": {
		"field": {
			"type": "object",
			"required": ["countBytesInsteadOfCharacters"],
			"properties": {
				"maxLength": {"type": "integer", "minimum": 0},
				"countBytesInsteadOfCharacters": {"type": "boolean"}
			}
		}
	}
}`

var fieldDataSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal([]byte(fieldDataSchemaJSON), &schema); err != nil {
		return nil, fmt.Errorf("unmarshal field data schema: %w", err)
	}
	return schema.Resolve(&jsonschema.ResolveOptions{})
})

// V1Dot9Dot35 moves the max length settings of attributes and
// classification attributes into data.field.
func V1Dot9Dot35(tables pim.TableNames) Migration {
	const version = "1.9.35"
	return Migration{
		Version: version,
		Up: func(ctx context.Context, db internal.Querier) error {
			attr := pgx.Identifier{tables.Attribute}.Sanitize()
			ca := pgx.Identifier{tables.ClassificationAttribute}.Sanitize()

			moveFieldSettings(ctx, db, attr)
			execLogged(ctx, db, fmt.Sprintf("ALTER TABLE %s DROP COLUMN max_length", attr))
			execLogged(ctx, db, fmt.Sprintf("ALTER TABLE %s DROP COLUMN count_bytes_instead_of_characters", attr))

			execLogged(ctx, db, fmt.Sprintf("ALTER TABLE %s ADD COLUMN data TEXT DEFAULT NULL", ca))
			moveFieldSettings(ctx, db, ca)
			execLogged(ctx, db, fmt.Sprintf("ALTER TABLE %s DROP COLUMN max_length", ca))
			execLogged(ctx, db, fmt.Sprintf("ALTER TABLE %s DROP COLUMN count_bytes_instead_of_characters", ca))
			return nil
		},
		Down: func(context.Context, internal.Querier) error {
			return pim.NewDowngradeProhibitedError(version)
		},
	}
}

type fieldSettingsRow struct {
	id        string
	data      *string
	maxLength *int64
	countByte *bool
}

// moveFieldSettings rewrites data of every live row of table. A table
// without the legacy columns is skipped.
func moveFieldSettings(ctx context.Context, db internal.Querier, table string) {
	rows, err := db.Query(ctx, fmt.Sprintf(
		"SELECT id, data, max_length, count_bytes_instead_of_characters FROM %s WHERE deleted = false ORDER BY id", table,
	))
	if err != nil {
		zap.S().Warnw("skipping field settings migration", "table", table, "error", err)
		return
	}
	var pending []fieldSettingsRow
	for rows.Next() {
		var r fieldSettingsRow
		if err := rows.Scan(&r.id, &r.data, &r.maxLength, &r.countByte); err != nil {
			zap.S().Warnw("skipping unreadable row", "table", table, "error", err)
			continue
		}
		pending = append(pending, r)
	}
	rows.Close()

	for _, r := range pending {
		doc, err := fieldSettingsDocument(r)
		if err != nil {
			zap.S().Warnw("skipping invalid field settings", "table", table, "id", r.id, "error", err)
			continue
		}
		execLogged(ctx, db, fmt.Sprintf("UPDATE %s SET data = $1 WHERE id = $2", table), doc, r.id)
	}
}

func fieldSettingsDocument(r fieldSettingsRow) (string, error) {
	data := map[string]any{}
	if r.data != nil {
		var decoded any
		if err := json.Unmarshal([]byte(*r.data), &decoded); err == nil {
			if m, ok := decoded.(map[string]any); ok {
				data = m
			}
		}
	}
	field, _ := data["field"].(map[string]any)
	if field == nil {
		field = map[string]any{}
	}
	if r.maxLength != nil && *r.maxLength != 0 {
		field["maxLength"] = *r.maxLength
	}
	field["countBytesInsteadOfCharacters"] = r.countByte != nil && *r.countByte
	data["field"] = field

	encoded, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	schema, err := fieldDataSchema()
	if err != nil {
		return "", err
	}
	var instance any
	if err := json.Unmarshal(encoded, &instance); err != nil {
		return "", err
	}
	if err := schema.Validate(instance); err != nil {
		return "", fmt.Errorf("field settings validation: %w", err)
	}
	return string(encoded), nil
}

func execLogged(ctx context.Context, db internal.Querier, sql string, args ...any) {
	if _, err := db.Exec(ctx, sql, args...); err != nil {
		zap.S().Warnw("migration statement failed", "sql", sql, "error", err)
	}
}
