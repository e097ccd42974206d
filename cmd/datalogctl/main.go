// Command datalogctl runs a textual Datalog program against one or more
// queries, exiting 0 on success and non-zero on validation failure, with
// results printed one ground atom per line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitrdm/godatalog/internal/dlread"
	"github.com/gitrdm/godatalog/pkg/datalog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		workers   int
		chunkSize int
		engine    string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "datalogctl PROGRAM_FILE [QUERY...]",
		Short: "Evaluate a Datalog program and answer queries against it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), runOpts{
				path:      args[0],
				queries:   args[1:],
				workers:   workers,
				chunkSize: chunkSize,
				variant:   engine,
				verbose:   verbose,
			})
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (0 = hardware concurrency)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 64, "work-item chunk size for the chunked-concurrent engine")
	cmd.Flags().StringVar(&engine, "engine", "chunked-concurrent",
		"evaluation strategy: seminaive-serial|seminaive-concurrent|chunked-concurrent|magic-set-over-concurrent")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level structured logging")

	return cmd
}

type runOpts struct {
	path      string
	queries   []string
	workers   int
	chunkSize int
	variant   string
	verbose   bool
}

func run(ctx context.Context, opts runOpts) error {
	log, err := newLogger(opts.verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	variant, err := parseVariant(opts.variant)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(opts.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", opts.path, err)
	}

	syms := datalog.NewSymbolTable()
	reader := dlread.NewReader(syms)
	doc, err := reader.Read(string(src))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", opts.path, err)
	}

	eng := datalog.NewEngine(datalog.EngineConfig{
		Variant:   variant,
		Workers:   opts.workers,
		ChunkSize: opts.chunkSize,
		Log:       log,
	})
	if err := eng.Init(doc.Clauses, datalog.DefaultValidatorConfig()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	queries := doc.Queries
	for _, q := range opts.queries {
		qdoc, err := reader.Read(q)
		if err != nil {
			return fmt.Errorf("parsing query %q: %w", q, err)
		}
		queries = append(queries, qdoc.Queries...)
	}
	if len(queries) == 0 {
		return fmt.Errorf("no queries given: pass one or more on the command line or end clauses in the program file with '?'")
	}

	for _, q := range queries {
		results, err := eng.Query(ctx, q)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return err
		}
		for _, r := range results {
			fmt.Println(r.String())
		}
	}
	return nil
}

func parseVariant(s string) (datalog.Variant, error) {
	switch s {
	case "seminaive-serial":
		return datalog.SeminaiveSerial, nil
	case "seminaive-concurrent":
		return datalog.SeminaiveConcurrent, nil
	case "chunked-concurrent":
		return datalog.ChunkedConcurrent, nil
	case "magic-set-over-concurrent":
		return datalog.MagicSetOverConcurrent, nil
	default:
		return 0, fmt.Errorf("unknown --engine %q", s)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}
