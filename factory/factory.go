package factory

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
	"github.com/lychee-technology/pim/internal"
	"github.com/lychee-technology/pim/internal/export"
	"github.com/lychee-technology/pim/internal/metrics"
)

// ConnString builds a postgres URL from the database settings.
func ConnString(cfg pim.DatabaseConfig) string {
	var user *url.Userinfo
	if cfg.Password != "" {
		user = url.UserPassword(cfg.Username, cfg.Password)
	} else {
		user = url.User(cfg.Username)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	if cfg.Timeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.Timeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewPool opens a pgx pool for cfg.Database. With UseIAMAuth every new
// connection authenticates with a freshly generated DSQL token.
//
// Usage:
//
//	cfg, _ := pim.LoadConfig("pim.yaml")
//	pool, err := factory.NewPool(ctx, cfg)
//	if err != nil {
//	    // handle error
//	}
//	defer pool.Close()
func NewPool(ctx context.Context, cfg *pim.Config) (*pgxpool.Pool, error) {
	db := cfg.Database
	if err := internal.ValidatePostgresConfig(db); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(ConnString(db))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConns = int32(db.MaxConnections)
	if db.MinConnections > 0 {
		poolCfg.MinConns = int32(db.MinConnections)
	}
	if db.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = db.ConnMaxLifetime
	}
	if db.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = db.ConnMaxIdleTime
	}

	if db.UseIAMAuth {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(db.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		endpoint := fmt.Sprintf("%s:%d", db.Host, db.Port)
		poolCfg.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
			token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
			if err != nil {
				return fmt.Errorf("generate dsql auth token: %w", err)
			}
			cc.Password = token
			return nil
		}
		zap.S().Infow("using IAM auth for Postgres connections (dsql)", "endpoint", endpoint)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return pool, nil
}

var metricsOnce sync.Once

// registerMetrics installs the Prometheus emitter once per process.
func registerMetrics(cfg pim.MetricsConfig) {
	if !cfg.Enabled {
		return
	}
	metricsOnce.Do(func() {
		metrics.New(prometheus.DefaultRegisterer, cfg.Namespace).Register()
	})
}

// NewValueConverterWithConfig wires the converter to the Postgres
// collaborators and, when a bucket is configured, to S3 attachment paths.
//
// Usage:
//
//	cfg := pim.DefaultConfig()
//	conv, err := factory.NewValueConverterWithConfig(ctx, cfg, pool)
//	if err != nil {
//	    // handle error
//	}
//	err = conv.ConvertFrom(ctx, payload, attribute, pim.ConvertFromOptions{})
func NewValueConverterWithConfig(ctx context.Context, cfg *pim.Config, db internal.Querier) (pim.ValueConverter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := internal.ValidateStorageConfig(cfg.Storage); err != nil {
		return nil, pim.NewValidationError("storage", err.Error())
	}
	registerMetrics(cfg.Metrics)

	tables := cfg.Database.TableNames
	collab := pim.Collaborators{
		Units:    internal.NewPostgresMeasureRepository(db, tables.Unit),
		Enums:    internal.NewPostgresExtensibleEnumRepository(db, tables.ExtensibleEnumOption),
		Entities: internal.NewPostgresEntityRepository(db, map[string]string{"Attachment": tables.Attachment}),
	}
	if cfg.Storage.Bucket != "" {
		client, err := internal.NewS3Client(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		collab.Attachments = internal.NewS3AttachmentPaths(client, cfg.Storage)
	}
	return internal.NewValueConverter(collab, cfg.Conversion), nil
}

// NewExporterWithConfig wires an exporter reading product attribute values
// from db. The returned function releases the DuckDB staging database.
func NewExporterWithConfig(ctx context.Context, cfg *pim.Config, db internal.Querier, jobs *internal.ExportJobs) (pim.Exporter, func(), error) {
	converter, err := NewValueConverterWithConfig(ctx, cfg, db)
	if err != nil {
		return nil, nil, err
	}
	duck, err := export.NewDuckDBClient(ctx, cfg.Export)
	if err != nil {
		return nil, nil, pim.NewExportError("open duckdb", err)
	}

	var opts export.Options
	if cfg.Storage.Bucket != "" {
		client, err := internal.NewS3Client(ctx, cfg.Storage)
		if err != nil {
			duck.Close()
			return nil, nil, err
		}
		opts = export.Options{Uploader: manager.NewUploader(client), Bucket: cfg.Storage.Bucket}
	}

	tables := cfg.Database.TableNames
	exporter, err := export.NewExporter(
		internal.NewPostgresValueRepository(db, tables.ProductAttributeValue),
		internal.NewPostgresAttributeRepository(db, tables.Attribute),
		converter,
		jobs,
		duck,
		cfg.Export,
		opts,
	)
	if err != nil {
		duck.Close()
		return nil, nil, err
	}
	return exporter, func() { duck.Close() }, nil
}
