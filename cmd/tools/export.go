package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/lychee-technology/pim"
	"github.com/lychee-technology/pim/factory"
	"github.com/lychee-technology/pim/internal"
)

func runExport(args []string) error {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: pim-tools export [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}
	configPath := flags.String("config", os.Getenv("PIM_CONFIG"), "path to the YAML config file (optional)")
	fileName := flags.String("file", "", "output file name inside export.outputDir (generated when empty)")
	upload := flags.Bool("upload", false, "upload the file to the storage bucket")

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

	exporter, closeFn, err := factory.NewExporterWithConfig(ctx, cfg, pool, internal.NewExportJobs())
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := exporter.Run(ctx, pim.ExportRequest{FileName: *fileName, Upload: *upload})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
