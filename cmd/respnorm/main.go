package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"respnorm/internal"
	"respnorm/internal/config"
	"respnorm/internal/logger"
	"respnorm/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logger.Init(cfg.LogLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		source := fs.String("source", "", "responses file, class directory, or archive")
		class := fs.String("class", "", "comma-separated class ids")
		tz := fs.String("tz", cfg.TimeZone, "IANA time zone for datetime columns")
		out := fs.String("out", "", "output path (.xlsx or .csv)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*source) == "" {
			must(fmt.Errorf("--source is required"))
		}

		res, err := pipeline.ProcessPath(*source, pipeline.Options{Classes: splitClasses(*class), TimeZone: *tz})
		must(err)
		for _, w := range res.Warnings {
			logger.Log.Warn(w)
		}
		lookupRows := 0
		if res.Table.Lookup != nil {
			lookupRows = res.Table.Lookup.NumRows()
		}
		logger.Log.Info("processed responses",
			zap.Int("rows", res.Table.NumRows()),
			zap.Int("columns", len(res.Table.Columns)),
			zap.Int("questions", lookupRows))

		if strings.TrimSpace(*out) != "" {
			must(exportTable(res.Table, *out))
			logger.Log.Info("wrote output", zap.String("path", *out))
		}
	case "options":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		source := fs.String("source", "", "responses file, class directory, or archive")
		class := fs.String("class", "", "comma-separated class ids")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*source) == "" {
			must(fmt.Errorf("--source is required"))
		}

		res, err := pipeline.ProcessPath(*source, pipeline.Options{Classes: splitClasses(*class), TimeZone: cfg.TimeZone})
		must(err)
		if res.Table.Lookup == nil {
			must(fmt.Errorf("no option lookup derived from %s", *source))
		}
		printLookup(*res.Table.Lookup)
	default:
		usage()
		os.Exit(1)
	}
}

func exportTable(t internal.Table, out string) error {
	switch strings.ToLower(filepath.Ext(out)) {
	case ".xlsx":
		return pipeline.ExportTableToXLSX(t, out)
	case ".csv":
		return pipeline.ExportTableToCSV(t, out)
	default:
		return fmt.Errorf("unsupported output format: %s", out)
	}
}

func printLookup(lookup internal.Table) {
	fmt.Println(strings.Join(lookup.ColumnNames(), "\t"))
	rows := lookup.NumRows()
	for r := 0; r < rows; r++ {
		parts := make([]string, 0, len(lookup.Columns))
		for _, col := range lookup.Columns {
			if col.Cells[r] == nil {
				parts = append(parts, "")
				continue
			}
			parts = append(parts, fmt.Sprint(col.Cells[r]))
		}
		fmt.Println(strings.Join(parts, "\t"))
	}
}

func splitClasses(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func usage() {
	fmt.Println("usage: respnorm <command>")
	fmt.Println("commands:")
	fmt.Println("  process --source=<path> [--class=a,b] [--tz=UTC] [--out=result.xlsx|.csv]")
	fmt.Println("  options --source=<path> [--class=a,b]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
