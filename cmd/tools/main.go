package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lychee-technology/pim"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init-db":
		if err := runInitDB(os.Args[2:]); err != nil {
			sugar.Fatalf("init-db: %v", err)
		}
	case "migrate":
		if err := runMigrate(os.Args[2:]); err != nil {
			sugar.Fatalf("migrate: %v", err)
		}
	case "export":
		if err := runExport(os.Args[2:]); err != nil {
			sugar.Fatalf("export: %v", err)
		}
	case "convert":
		if err := runConvert(os.Args[2:], os.Stdout); err != nil {
			sugar.Fatalf("convert: %v", err)
		}
	default:
		sugar.Errorf("unknown command %q", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	logger := zap.S()
	logger.Info("Usage: pim-tools <command> [options]")
	logger.Info("")
	logger.Info("Commands:")
	logger.Info("  init-db   Create PostgreSQL tables for product attribute values")
	logger.Info("  migrate   Apply pending data migrations")
	logger.Info("  export    Export product attribute values to parquet or csv")
	logger.Info("  convert   Convert an attribute value payload between API and stored shapes")
}

// loadConfig reads the config file and replaces the global logger according
// to its logging section.
func loadConfig(path string) (*pim.Config, error) {
	cfg, err := pim.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return cfg, nil
}

func newLogger(cfg pim.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}
