package pipeline

import (
	"fmt"
	"time"

	"respnorm/internal"
)

// Options configures one pipeline run.
type Options struct {
	// Classes restricts directory/archive sources to the named class
	// subdirectories. Empty means all classes.
	Classes []string
	// TimeZone is the IANA zone applied to every datetime column.
	// Empty means UTC.
	TimeZone string
}

// Result is the processed response table. The derived option lookup rides on
// Table.Lookup; Warnings aggregates the stage warnings in stage order.
type Result struct {
	Table    internal.Table
	Warnings []string
}

// ProcessPath loads a source path (file, class directory tree, or archive)
// and runs the full pipeline on it.
func ProcessPath(path string, opts Options) (Result, error) {
	t, err := LoadSource(path, opts.Classes)
	if err != nil {
		return Result{}, err
	}
	return ProcessTable(t, opts)
}

// ProcessTable runs validation, type coercion and option resolution over an
// in-memory raw table. The three stages are order-independent; this fixed
// order is just the one the pipeline reports warnings in.
func ProcessTable(t internal.Table, opts Options) (Result, error) {
	loc := time.UTC
	if opts.TimeZone != "" {
		parsed, err := time.LoadLocation(opts.TimeZone)
		if err != nil {
			return Result{}, fmt.Errorf("invalid time zone %q: %w", opts.TimeZone, err)
		}
		loc = parsed
	}

	validated, warnings, err := Validate(t)
	if err != nil {
		return Result{}, err
	}
	coerced := CoerceTypes(validated, loc)
	resolved, more, err := ResolveOptions(coerced)
	if err != nil {
		return Result{}, err
	}
	return Result{Table: resolved, Warnings: append(warnings, more...)}, nil
}
