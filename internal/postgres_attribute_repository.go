package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
)

// PostgresAttributeRepository loads attribute definitions and caches them
// by id.
type PostgresAttributeRepository struct {
	db      Querier
	table   string
	cacheMu sync.RWMutex
	cache   map[string]*pim.Attribute
}

func NewPostgresAttributeRepository(db Querier, table string) *PostgresAttributeRepository {
	if table == "" {
		table = pim.DefaultTableNames().Attribute
	}
	return &PostgresAttributeRepository{
		db:    db,
		table: table,
		cache: make(map[string]*pim.Attribute),
	}
}

// GetAttribute returns the attribute with id. Callers must not modify the
// returned value.
func (r *PostgresAttributeRepository) GetAttribute(ctx context.Context, id string) (*pim.Attribute, error) {
	r.cacheMu.RLock()
	attr, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return attr, nil
	}

	attr, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = attr
	r.cacheMu.Unlock()
	return attr, nil
}

// Invalidate drops id from the cache; an empty id drops everything.
func (r *PostgresAttributeRepository) Invalidate(id string) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if id == "" {
		r.cache = make(map[string]*pim.Attribute)
		return
	}
	delete(r.cache, id)
}

func (r *PostgresAttributeRepository) load(ctx context.Context, id string) (*pim.Attribute, error) {
	query := fmt.Sprintf(
		"SELECT id, COALESCE(name, ''), type, COALESCE(extensible_enum_id, ''), COALESCE(measure_id, ''), "+
			"COALESCE(entity_type, ''), COALESCE(entity_field, ''), COALESCE(default_value, ''), "+
			"COALESCE(default_date, ''), is_multilang, COALESCE(data, '') FROM %s WHERE id = $1 AND deleted = false",
		sanitizeIdentifier(r.table),
	)

	var (
		attr pim.Attribute
		typ  string
		data string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&attr.ID, &attr.Name, &typ, &attr.ExtensibleEnumID, &attr.MeasureID,
		&attr.EntityType, &attr.EntityField, &attr.DefaultValue,
		&attr.DefaultDate, &attr.IsMultilang, &data,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("attribute %q: %w", id, pim.ErrResolutionMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("load attribute: %w", err)
	}
	attr.Type = pim.AttributeType(typ)

	if data != "" {
		if err := json.Unmarshal([]byte(data), &attr.Data); err != nil {
			zap.S().Warnw("ignoring malformed attribute data", "attributeId", id, "error", err)
			attr.Data = nil
		}
	}
	return &attr, nil
}
