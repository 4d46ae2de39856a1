package pim

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config consolidates settings for the converter, its collaborators and tools.
type Config struct {
	Database   DatabaseConfig   `json:"database" yaml:"database"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Export     ExportConfig     `json:"export" yaml:"export"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	Database        string        `json:"database" yaml:"database"`
	Username        string        `json:"username" yaml:"username"`
	Password        string        `json:"password" yaml:"password"`
	SSLMode         string        `json:"sslMode" yaml:"sslMode"`
	MaxConnections  int           `json:"maxConnections" yaml:"maxConnections"`
	MinConnections  int           `json:"minConnections" yaml:"minConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
	// UseIAMAuth replaces the password with an Aurora DSQL auth token.
	UseIAMAuth bool       `json:"useIamAuth" yaml:"useIamAuth"`
	Region     string     `json:"region" yaml:"region"`
	TableNames TableNames `json:"tableNames" yaml:"tableNames"`
}

// TableNames maps logical tables to physical names.
type TableNames struct {
	Attribute               string `json:"attribute" yaml:"attribute"`
	ClassificationAttribute string `json:"classificationAttribute" yaml:"classificationAttribute"`
	ProductAttributeValue   string `json:"productAttributeValue" yaml:"productAttributeValue"`
	ProductFamilyAttribute  string `json:"productFamilyAttribute" yaml:"productFamilyAttribute"`
	Product                 string `json:"product" yaml:"product"`
	ProductChannel          string `json:"productChannel" yaml:"productChannel"`
	Unit                    string `json:"unit" yaml:"unit"`
	ExtensibleEnumOption    string `json:"extensibleEnumOption" yaml:"extensibleEnumOption"`
	Attachment              string `json:"attachment" yaml:"attachment"`
	MigrationHistory        string `json:"migrationHistory" yaml:"migrationHistory"`
}

// StorageConfig contains object storage settings for attachments
type StorageConfig struct {
	Bucket          string        `json:"bucket" yaml:"bucket"`
	Region          string        `json:"region" yaml:"region"`
	Endpoint        string        `json:"endpoint" yaml:"endpoint"`
	UsePathStyle    bool          `json:"usePathStyle" yaml:"usePathStyle"`
	AccessKeyID     string        `json:"accessKeyId" yaml:"accessKeyId"`
	SecretAccessKey string        `json:"secretAccessKey" yaml:"secretAccessKey"`
	PresignExpiry   time.Duration `json:"presignExpiry" yaml:"presignExpiry"`
	ThumbnailSizes  []string      `json:"thumbnailSizes" yaml:"thumbnailSizes"`
	// Circuit breaker guarding storage calls.
	BreakerThreshold    int           `json:"breakerThreshold" yaml:"breakerThreshold"`
	BreakerWindow       time.Duration `json:"breakerWindow" yaml:"breakerWindow"`
	BreakerOpenDuration time.Duration `json:"breakerOpenDuration" yaml:"breakerOpenDuration"`
}

// ExportConfig contains settings for the export run
type ExportConfig struct {
	DuckDBPath  string `json:"duckdbPath" yaml:"duckdbPath"`
	MemoryMB    int    `json:"memoryMb" yaml:"memoryMb"`
	Threads     int    `json:"threads" yaml:"threads"`
	OutputDir   string `json:"outputDir" yaml:"outputDir"`
	Format      string `json:"format" yaml:"format"` // parquet or csv
	Compression string `json:"compression" yaml:"compression"`
	S3Prefix    string `json:"s3Prefix" yaml:"s3Prefix"`
	PageSize    int    `json:"pageSize" yaml:"pageSize"`
}

// ConversionConfig contains converter settings
type ConversionConfig struct {
	// DefaultEntityField names the field used as valueName for link targets.
	DefaultEntityField string `json:"defaultEntityField" yaml:"defaultEntityField"`
	DateLayout         string `json:"dateLayout" yaml:"dateLayout"`
	DatetimeLayout     string `json:"datetimeLayout" yaml:"datetimeLayout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig contains metrics collection settings
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// DefaultTableNames returns the stock table names.
func DefaultTableNames() TableNames {
	return TableNames{
		Attribute:               "attribute",
		ClassificationAttribute: "classification_attribute",
		ProductAttributeValue:   "product_attribute_value",
		ProductFamilyAttribute:  "product_family_attribute",
		Product:                 "product",
		ProductChannel:          "product_channel",
		Unit:                    "unit",
		ExtensibleEnumOption:    "extensible_enum_option",
		Attachment:              "attachment",
		MigrationHistory:        "pim_migration",
	}
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "pim",
			Username:        "postgres",
			SSLMode:         "disable",
			MaxConnections:  25,
			MinConnections:  2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
			TableNames:      DefaultTableNames(),
		},
		Storage: StorageConfig{
			Region:              "us-east-1",
			PresignExpiry:       15 * time.Minute,
			ThumbnailSizes:      []string{"small", "medium", "large"},
			BreakerThreshold:    5,
			BreakerWindow:       time.Minute,
			BreakerOpenDuration: 30 * time.Second,
		},
		Export: ExportConfig{
			MemoryMB:    256,
			Threads:     2,
			OutputDir:   os.TempDir(),
			Format:      "parquet",
			Compression: "zstd",
			S3Prefix:    "exports",
			PageSize:    500,
		},
		Conversion: ConversionConfig{
			DefaultEntityField: "name",
			DateLayout:         "2006-01-02",
			DatetimeLayout:     "2006-01-02 15:04:05",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "pim",
		},
	}
}

// LoadConfig reads a YAML file over the defaults and applies PIM_* environment
// overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides settings from PIM_* environment variables.
func (c *Config) ApplyEnv() {
	c.Database.Host = getEnv("PIM_DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("PIM_DB_PORT", c.Database.Port)
	c.Database.Database = getEnv("PIM_DB_NAME", c.Database.Database)
	c.Database.Username = getEnv("PIM_DB_USER", c.Database.Username)
	c.Database.Password = getEnv("PIM_DB_PASSWORD", c.Database.Password)
	c.Database.SSLMode = getEnv("PIM_DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MaxConnections = getEnvInt("PIM_DB_MAX_CONNS", c.Database.MaxConnections)
	c.Database.MinConnections = getEnvInt("PIM_DB_MIN_CONNS", c.Database.MinConnections)
	c.Database.UseIAMAuth = getEnvBool("PIM_DB_IAM_AUTH", c.Database.UseIAMAuth)
	c.Database.Region = getEnv("PIM_DB_REGION", c.Database.Region)

	c.Storage.Bucket = getEnv("PIM_S3_BUCKET", c.Storage.Bucket)
	c.Storage.Region = getEnv("PIM_S3_REGION", c.Storage.Region)
	c.Storage.Endpoint = getEnv("PIM_S3_ENDPOINT", c.Storage.Endpoint)
	c.Storage.UsePathStyle = getEnvBool("PIM_S3_PATH_STYLE", c.Storage.UsePathStyle)
	c.Storage.AccessKeyID = getEnv("PIM_S3_ACCESS_KEY_ID", c.Storage.AccessKeyID)
	c.Storage.SecretAccessKey = getEnv("PIM_S3_SECRET_ACCESS_KEY", c.Storage.SecretAccessKey)

	c.Export.DuckDBPath = getEnv("PIM_EXPORT_DUCKDB_PATH", c.Export.DuckDBPath)
	c.Export.OutputDir = getEnv("PIM_EXPORT_OUTPUT_DIR", c.Export.OutputDir)
	c.Export.Format = getEnv("PIM_EXPORT_FORMAT", c.Export.Format)
	c.Export.PageSize = getEnvInt("PIM_EXPORT_PAGE_SIZE", c.Export.PageSize)

	c.Logging.Level = getEnv("PIM_LOG_LEVEL", c.Logging.Level)
	c.Metrics.Enabled = getEnvBool("PIM_METRICS_ENABLED", c.Metrics.Enabled)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.MaxConnections <= 0 {
		return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
	}
	if c.Database.MinConnections > c.Database.MaxConnections {
		return &ConfigError{Field: "database.minConnections", Message: "must be less than or equal to maxConnections"}
	}
	if c.Database.UseIAMAuth && c.Database.Region == "" {
		return &ConfigError{Field: "database.region", Message: "is required when useIamAuth is set"}
	}
	if c.Storage.Bucket != "" && c.Storage.PresignExpiry <= 0 {
		return &ConfigError{Field: "storage.presignExpiry", Message: "must be greater than 0"}
	}
	if c.Export.PageSize <= 0 {
		return &ConfigError{Field: "export.pageSize", Message: "must be greater than 0"}
	}
	switch strings.ToLower(c.Export.Format) {
	case "parquet", "csv":
	default:
		return &ConfigError{Field: "export.format", Message: "must be parquet or csv"}
	}
	if c.Conversion.DefaultEntityField == "" {
		return &ConfigError{Field: "conversion.defaultEntityField", Message: "must not be empty"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
