package internal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
)

// SchemaStatements returns the DDL creating the PIM tables, in dependency
// order. All statements are idempotent.
func SchemaStatements(t pim.TableNames) []string {
	q := sanitizeIdentifier
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id                 VARCHAR(36) PRIMARY KEY,
			name               VARCHAR(255),
			type               VARCHAR(64) NOT NULL,
			extensible_enum_id VARCHAR(36),
			measure_id         VARCHAR(36),
			entity_type        VARCHAR(255),
			entity_field       VARCHAR(255),
			default_value      TEXT,
			default_date       VARCHAR(255),
			is_multilang       BOOLEAN NOT NULL DEFAULT false,
			data               TEXT,
			deleted            BOOLEAN NOT NULL DEFAULT false
		)`, q(t.Attribute)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id                VARCHAR(36) PRIMARY KEY,
			classification_id VARCHAR(36),
			attribute_id      VARCHAR(36) NOT NULL,
			data              TEXT,
			deleted           BOOLEAN NOT NULL DEFAULT false
		)`, q(t.ClassificationAttribute)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id                VARCHAR(36) PRIMARY KEY,
			name              VARCHAR(255),
			product_family_id VARCHAR(36),
			deleted           BOOLEAN NOT NULL DEFAULT false
		)`, q(t.Product)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         VARCHAR(36) PRIMARY KEY,
			product_id VARCHAR(36) NOT NULL,
			channel_id VARCHAR(36) NOT NULL,
			deleted    BOOLEAN NOT NULL DEFAULT false
		)`, q(t.ProductChannel)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id              VARCHAR(36) PRIMARY KEY,
			product_id      VARCHAR(36) NOT NULL,
			attribute_id    VARCHAR(36) NOT NULL,
			scope           VARCHAR(16) NOT NULL DEFAULT 'Global',
			channel_id      VARCHAR(36) NOT NULL DEFAULT '',
			language        VARCHAR(16) NOT NULL DEFAULT 'main',
			bool_value      BOOLEAN,
			int_value       BIGINT,
			int_value1      BIGINT,
			float_value     DOUBLE PRECISION,
			float_value1    DOUBLE PRECISION,
			varchar_value   VARCHAR(255),
			text_value      TEXT,
			date_value      DATE,
			datetime_value  TIMESTAMP,
			reference_value VARCHAR(36),
			deleted         BOOLEAN NOT NULL DEFAULT false
		)`, q(t.ProductAttributeValue)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_pav_product_attribute ON %s (product_id, attribute_id)`, q(t.ProductAttributeValue)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id                VARCHAR(36) PRIMARY KEY,
			product_family_id VARCHAR(36),
			attribute_id      VARCHAR(36) NOT NULL,
			scope             VARCHAR(16) NOT NULL DEFAULT 'Global',
			channel_id        VARCHAR(36) NOT NULL DEFAULT '',
			language          VARCHAR(16) NOT NULL DEFAULT 'main',
			is_required       BOOLEAN NOT NULL DEFAULT false,
			deleted           BOOLEAN NOT NULL DEFAULT false
		)`, q(t.ProductFamilyAttribute)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         VARCHAR(36) PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			measure_id VARCHAR(36) NOT NULL,
			is_default BOOLEAN NOT NULL DEFAULT false,
			sort_order INTEGER NOT NULL DEFAULT 0,
			deleted    BOOLEAN NOT NULL DEFAULT false
		)`, q(t.Unit)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id                 VARCHAR(36) PRIMARY KEY,
			extensible_enum_id VARCHAR(36) NOT NULL,
			code               VARCHAR(255),
			name               VARCHAR(255),
			color              VARCHAR(16),
			sort_order         INTEGER NOT NULL DEFAULT 0,
			deleted            BOOLEAN NOT NULL DEFAULT false
		)`, q(t.ExtensibleEnumOption)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id                VARCHAR(36) PRIMARY KEY,
			name              VARCHAR(255),
			type              VARCHAR(255),
			storage_file_path VARCHAR(255),
			deleted           BOOLEAN NOT NULL DEFAULT false
		)`, q(t.Attachment)),
	}
}

// EnsureTables creates the PIM tables when missing.
func EnsureTables(ctx context.Context, db Querier, tables pim.TableNames) error {
	for i, ddl := range SchemaStatements(tables) {
		if _, err := db.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure tables (statement %d): %w", i+1, err)
		}
	}
	zap.S().Infow("pim tables ensured", "productAttributeValue", tables.ProductAttributeValue)
	return nil
}
