package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/lychee-technology/pim/factory"
	"github.com/lychee-technology/pim/internal/migrations"
)

func runMigrate(args []string) error {
	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: pim-tools migrate [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}
	configPath := flags.String("config", os.Getenv("PIM_CONFIG"), "path to the YAML config file (optional)")
	down := flags.String("down", "", "roll back the given migration version")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := factory.NewPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	tables := cfg.Database.TableNames
	runner := migrations.NewRunner(pool, tables.MigrationHistory)

	if *down != "" {
		for _, m := range migrations.All(tables) {
			if m.Version == *down {
				return runner.Rollback(ctx, m)
			}
		}
		return fmt.Errorf("unknown migration version %q", *down)
	}

	applied, err := runner.Apply(ctx, migrations.All(tables)...)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Println("No pending migrations.")
		return nil
	}
	for _, v := range applied {
		fmt.Printf("Applied migration %s\n", v)
	}
	return nil
}
