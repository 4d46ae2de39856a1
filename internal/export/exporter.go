// Package export writes product attribute values in their export shape to
// Parquet or CSV files through DuckDB.
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
	"github.com/lychee-technology/pim/internal"
)

const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
)

// ValueSource pages through stored values ordered by id.
type ValueSource interface {
	FetchValuesPage(ctx context.Context, afterID string, limit int) ([]internal.ProductAttributeValue, error)
}

type AttributeSource interface {
	GetAttribute(ctx context.Context, id string) (*pim.Attribute, error)
}

// Uploader is satisfied by *manager.Uploader.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type Exporter struct {
	values     ValueSource
	attributes AttributeSource
	converter  pim.ValueConverter
	jobs       *internal.ExportJobs
	duck       *DuckDBClient
	uploader   Uploader
	bucket     string
	cfg        pim.ExportConfig
}

var _ pim.Exporter = (*Exporter)(nil)

// Options carries the optional upload target.
type Options struct {
	Uploader Uploader
	Bucket   string
}

func NewExporter(
	values ValueSource,
	attributes AttributeSource,
	converter pim.ValueConverter,
	jobs *internal.ExportJobs,
	duck *DuckDBClient,
	cfg pim.ExportConfig,
	opts Options,
) (*Exporter, error) {
	if err := ValidateExportConfig(cfg); err != nil {
		return nil, pim.NewExportError("invalid export configuration", err)
	}
	if values == nil || attributes == nil || converter == nil || duck == nil {
		return nil, pim.NewExportError("exporter requires values, attributes, converter and duckdb", nil)
	}
	if jobs == nil {
		jobs = internal.NewExportJobs()
	}
	return &Exporter{
		values:     values,
		attributes: attributes,
		converter:  converter,
		jobs:       jobs,
		duck:       duck,
		uploader:   opts.Uploader,
		bucket:     opts.Bucket,
		cfg:        cfg,
	}, nil
}

// exportRow is one staged row.
type exportRow struct {
	id, productID, attributeID, attributeType string
	scope, channelID, language                string
	payload                                   string
}

// Run converts every stored value in export mode and writes the file. The
// job stays registered for the whole run, including failures.
func (e *Exporter) Run(ctx context.Context, req pim.ExportRequest) (pim.ExportResult, error) {
	jobID := e.jobs.Begin()
	defer e.jobs.End(jobID)

	result := pim.ExportResult{JobID: jobID}
	fileName := req.FileName
	if fileName == "" {
		fileName = fmt.Sprintf("pim-export-%s.%s", time.Now().UTC().Format("20060102-150405"), e.cfg.Format)
	}
	if strings.ContainsAny(fileName, `/\`) {
		return result, pim.NewExportError(fmt.Sprintf("file name %q must not contain path separators", fileName), nil)
	}
	result.File = filepath.Join(e.cfg.OutputDir, fileName)

	conn, err := e.duck.DB.Conn(ctx)
	if err != nil {
		return result, pim.NewExportError("acquire duckdb connection", err)
	}
	defer conn.Close()

	table := "pim_export_" + strings.ReplaceAll(jobID, "-", "_")
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(`CREATE TEMP TABLE %s (
		id VARCHAR, product_id VARCHAR, attribute_id VARCHAR, attribute_type VARCHAR,
		scope VARCHAR, channel_id VARCHAR, language VARCHAR, payload VARCHAR
	)`, table)); err != nil {
		return result, pim.NewExportError("create staging table", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+table); err != nil {
			zap.S().Warnw("drop export staging table failed", "table", table, "error", err)
		}
	}()

	mode := pim.ModeFor(e.jobs)
	afterID := ""
	for {
		page, err := e.values.FetchValuesPage(ctx, afterID, e.cfg.PageSize)
		if err != nil {
			return result, pim.NewExportError("fetch stored values", err)
		}
		if len(page) == 0 {
			break
		}
		rows := make([]exportRow, 0, len(page))
		for i := range page {
			row, ok, err := e.convert(ctx, &page[i], mode)
			if err != nil {
				return result, err
			}
			if !ok {
				result.Skipped++
				continue
			}
			rows = append(rows, row)
		}
		if err := stage(ctx, conn, table, rows); err != nil {
			return result, pim.NewExportError("stage rows", err)
		}
		result.Rows += len(rows)
		afterID = page[len(page)-1].ID
		if len(page) < e.cfg.PageSize {
			break
		}
	}

	copySQL := fmt.Sprintf("COPY (SELECT * FROM %s ORDER BY id) TO %s %s", table, quoteLiteral(result.File), copyOptions(e.cfg))
	if _, err := conn.ExecContext(ctx, copySQL); err != nil {
		return result, pim.NewExportError("write export file", err)
	}
	internal.EmitExportRows(ctx, e.cfg.Format, int64(result.Rows))
	zap.S().Infow("export written", "jobId", jobID, "file", result.File, "rows", result.Rows, "skipped", result.Skipped)

	if req.Upload {
		key, err := e.upload(ctx, result.File, fileName)
		if err != nil {
			return result, err
		}
		result.ObjectKey = key
	}
	return result, nil
}

// convert returns false for values whose attribute no longer exists.
func (e *Exporter) convert(ctx context.Context, v *internal.ProductAttributeValue, mode pim.ConversionMode) (exportRow, bool, error) {
	attr, err := e.attributes.GetAttribute(ctx, v.AttributeID)
	if pim.IsResolutionMiss(err) {
		zap.S().Debugw("skipping value of unknown attribute", "id", v.ID, "attributeId", v.AttributeID)
		return exportRow{}, false, nil
	}
	if err != nil {
		return exportRow{}, false, pim.NewExportError("load attribute "+v.AttributeID, err)
	}

	payload := pim.ValuePayload{StoredValue: v.StoredValue}
	if err := e.converter.ConvertFrom(ctx, &payload, attr, pim.ConvertFromOptions{Mode: mode}); err != nil {
		return exportRow{}, false, pim.NewExportError("convert value "+v.ID, err)
	}
	encoded, err := json.Marshal(&payload)
	if err != nil {
		return exportRow{}, false, pim.NewExportError("encode value "+v.ID, err)
	}
	return exportRow{
		id:            v.ID,
		productID:     v.ProductID,
		attributeID:   v.AttributeID,
		attributeType: string(attr.Type),
		scope:         v.Scope,
		channelID:     v.ChannelID,
		language:      v.Language,
		payload:       string(encoded),
	}, true, nil
}

func stage(ctx context.Context, conn *sql.Conn, table string, rows []exportRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (?, ?, ?, ?, ?, ?, ?, ?)", table))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.id, r.productID, r.attributeID, r.attributeType, r.scope, r.channelID, r.language, r.payload); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (e *Exporter) upload(ctx context.Context, file, fileName string) (string, error) {
	if e.uploader == nil || e.bucket == "" {
		return "", pim.NewExportError("upload requested but no storage bucket is configured", nil)
	}
	f, err := os.Open(file)
	if err != nil {
		return "", pim.NewExportError("open export file", err)
	}
	defer f.Close()

	key := path.Join(e.cfg.S3Prefix, fileName)
	if _, err := e.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return "", pim.NewExportError("upload export file", err)
	}
	return key, nil
}
