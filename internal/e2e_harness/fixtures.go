package e2e_harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/lychee-technology/pim"
)

// Fixture ids used by SeedCatalog.
const (
	AttrColor       = "attr-color"
	AttrWeight      = "attr-weight"
	AttrDescription = "attr-description"
	AttrImage       = "attr-image"
	EnumColor       = "enum-color"
	OptionRed       = "opt-red"
	MeasureWeight   = "measure-weight"
	UnitKg          = "unit-kg"
	ProductID       = "product-1"
	AttachmentID    = "att-1"
	AttachmentDir   = "files/att-1"
	AttachmentName  = "photo.png"
)

// AddLegacyFieldColumns adds the pre-1.9.35 field setting columns so the
// migration has something to move.
func AddLegacyFieldColumns(ctx context.Context, db *sql.DB, tables pim.TableNames) error {
	for _, table := range []string{tables.Attribute, tables.ClassificationAttribute} {
		stmt := fmt.Sprintf(`ALTER TABLE %q
  ADD COLUMN IF NOT EXISTS max_length INTEGER,
  ADD COLUMN IF NOT EXISTS count_bytes_instead_of_characters BOOLEAN`, table)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add legacy columns to %s: %w", table, err)
		}
	}
	return nil
}

// SeedCatalog inserts attributes, an enum option, a unit, an attachment and a
// product with one stored value per attribute.
func SeedCatalog(ctx context.Context, db *sql.DB, tables pim.TableNames) error {
	stmts := []struct {
		sql  string
		args []any
	}{
		{fmt.Sprintf(`INSERT INTO %q (id, name, type, extensible_enum_id) VALUES ($1, 'Color', $2, $3)`, tables.Attribute),
			[]any{AttrColor, string(pim.AttributeTypeExtensibleEnum), EnumColor}},
		{fmt.Sprintf(`INSERT INTO %q (id, name, type, measure_id) VALUES ($1, 'Weight', $2, $3)`, tables.Attribute),
			[]any{AttrWeight, string(pim.AttributeTypeInt), MeasureWeight}},
		{fmt.Sprintf(`INSERT INTO %q (id, name, type, max_length, count_bytes_instead_of_characters) VALUES ($1, 'Description', $2, 255, false)`, tables.Attribute),
			[]any{AttrDescription, string(pim.AttributeTypeVarchar)}},
		{fmt.Sprintf(`INSERT INTO %q (id, name, type) VALUES ($1, 'Image', $2)`, tables.Attribute),
			[]any{AttrImage, string(pim.AttributeTypeAsset)}},
		{fmt.Sprintf(`INSERT INTO %q (id, extensible_enum_id, code, name, color, sort_order) VALUES ($1, $2, 'red', 'Red', '#f00', 1)`, tables.ExtensibleEnumOption),
			[]any{OptionRed, EnumColor}},
		{fmt.Sprintf(`INSERT INTO %q (id, name, measure_id, is_default) VALUES ($1, 'kg', $2, true)`, tables.Unit),
			[]any{UnitKg, MeasureWeight}},
		{fmt.Sprintf(`INSERT INTO %q (id, name, type, storage_file_path) VALUES ($1, $2, 'image/png', $3)`, tables.Attachment),
			[]any{AttachmentID, AttachmentName, AttachmentDir}},
		{fmt.Sprintf(`INSERT INTO %q (id, name) VALUES ($1, 'Chair')`, tables.Product),
			[]any{ProductID}},
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s.sql, s.args...); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	for i, attr := range []string{AttrColor, AttrWeight, AttrDescription, AttrImage} {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %q (id, product_id, attribute_id) VALUES ($1, $2, $3)`, tables.ProductAttributeValue,
		), fmt.Sprintf("pav-%d", i+1), ProductID, attr); err != nil {
			return fmt.Errorf("seed value: %w", err)
		}
	}
	return nil
}

// EnsureBucket creates bucket unless it already exists.
func EnsureBucket(ctx context.Context, client *s3.Client, bucket string) error {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
				return nil
			}
		}
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// PutObject stores a small text body under key.
func PutObject(ctx context.Context, client *s3.Client, bucket, key, body string) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
