package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
	"github.com/lychee-technology/pim/factory"
	"github.com/lychee-technology/pim/internal"
)

type convertOptions struct {
	configPath    string
	attributePath string
	payloadPath   string
	direction     string
	export        bool
	preserve      bool
	useDB         bool
}

type convertToOutput struct {
	Payload *pim.ValuePayload `json:"payload"`
	Virtual pim.VirtualValue  `json:"virtual"`
}

func runConvert(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("convert", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: pim-tools convert -attribute attr.json -payload value.json [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	var opts convertOptions
	flags.StringVar(&opts.configPath, "config", os.Getenv("PIM_CONFIG"), "path to the YAML config file (optional)")
	flags.StringVar(&opts.attributePath, "attribute", "", "attribute definition JSON file")
	flags.StringVar(&opts.payloadPath, "payload", "", "value payload JSON file")
	flags.StringVar(&opts.direction, "direction", "to", "to (API -> stored) or from (stored -> API)")
	flags.BoolVar(&opts.export, "export", false, "skip display enrichment when converting from stored columns")
	flags.BoolVar(&opts.preserve, "preserve", false, "keep stored columns on the output record")
	flags.BoolVar(&opts.useDB, "db", false, "resolve units, options and links through PostgreSQL")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.attributePath == "" || opts.payloadPath == "" {
		flags.Usage()
		return errors.New("-attribute and -payload are required")
	}
	return convert(context.Background(), opts, out)
}

func convert(ctx context.Context, opts convertOptions, out io.Writer) error {
	var attr pim.Attribute
	if err := readJSON(opts.attributePath, &attr); err != nil {
		return err
	}
	var payload pim.ValuePayload
	if err := readJSON(opts.payloadPath, &payload); err != nil {
		return err
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	var conv pim.ValueConverter
	if opts.useDB {
		pool, err := factory.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if conv, err = factory.NewValueConverterWithConfig(ctx, cfg, pool); err != nil {
			return err
		}
	} else {
		conv = internal.NewValueConverter(pim.Collaborators{}, cfg.Conversion)
	}

	var result any
	switch opts.direction {
	case "to":
		vv, err := conv.ConvertTo(ctx, &payload, &attr)
		if err != nil {
			return err
		}
		result = convertToOutput{Payload: &payload, Virtual: vv}
	case "from":
		mode := pim.ModeDefault
		if opts.export {
			mode = pim.ModeExport
		}
		if err := conv.ConvertFrom(ctx, &payload, &attr, pim.ConvertFromOptions{Mode: mode, Preserve: opts.preserve}); err != nil {
			return err
		}
		result = &payload
	default:
		return fmt.Errorf("unknown direction %q", opts.direction)
	}

	zap.S().Debugw("converted value", "attribute", attr.ID, "type", attr.Type, "direction", opts.direction)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
