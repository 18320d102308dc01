// cmd/naga-migrate/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/starkjeffrey/naga-migration/pkg/cleaner"
	"github.com/starkjeffrey/naga-migration/pkg/config"
	"github.com/starkjeffrey/naga-migration/pkg/model"
	"github.com/starkjeffrey/naga-migration/pkg/pipeline"
	"github.com/starkjeffrey/naga-migration/pkg/report"
	"github.com/starkjeffrey/naga-migration/pkg/store"
	"github.com/starkjeffrey/naga-migration/pkg/transform"
)

// Exit codes: 0 success (row rejections are an expected outcome, not a
// failure), 1 stage or chunk failure, 2 configuration error.
const (
	exitOK          = 0
	exitStageFailed = 1
	exitConfigError = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env is a convenience for local runs; deployed runs set real
	// environment variables.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitConfigError
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitConfigError
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cleaning := cleaner.NewDefaultRegistry()
	transforms := transform.NewDefaultRegistry()

	tables := config.NewRegistry(cleaning, transforms)
	for _, tc := range config.BuiltinTables() {
		if err := tables.Register(tc); err != nil {
			logger.Error("Invalid table configuration", zap.Error(err))
			return exitConfigError
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", zap.Error(err))
		return exitConfigError
	}
	defer st.Close()

	// -chunk on run commands overrides the configured chunk size.
	newRunner := func(chunkSize int) *pipeline.Runner {
		if chunkSize <= 0 {
			chunkSize = cfg.ChunkSize
		}
		return pipeline.NewRunner(st, tables, cleaning, transforms, cfg.DataDir, chunkSize, logger)
	}
	reporter := report.NewReporter(st, tables, logger)

	if len(os.Args) < 2 {
		usage()
		return exitConfigError
	}

	switch os.Args[1] {
	case "run":
		return cmdRun(ctx, newRunner, tables, logger, os.Args[2:])
	case "run-stage":
		return cmdRunStage(ctx, newRunner, logger, os.Args[2:])
	case "report":
		return cmdReport(ctx, reporter, os.Args[2:])
	case "rejections":
		return cmdRejections(ctx, reporter, os.Args[2:])
	case "profiles":
		return cmdProfiles(ctx, reporter, os.Args[2:])
	case "verify":
		return cmdVerify(ctx, st, logger, os.Args[2:])
	default:
		usage()
		return exitConfigError
	}
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zc zap.Config
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.Postgres != nil {
		return store.NewPostgresStore(ctx, cfg.Postgres, logger)
	}
	logger.Warn("No PostgreSQL configured, using in-memory store; results are not persisted")
	return store.NewMemoryStore(), nil
}

// cmdRun executes the full pipeline for one table or, without -table,
// for every registered table.
func cmdRun(ctx context.Context, newRunner func(int) *pipeline.Runner, tables *config.Registry, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	tableID := fs.String("table", "", "table to migrate (default: all tables)")
	chunkSize := fs.Int("chunk", 0, "chunk size override")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}

	ids := tables.TableIDs()
	if *tableID != "" {
		ids = []string{*tableID}
	}

	runner := newRunner(*chunkSize)
	for _, id := range ids {
		if _, err := runner.RunAll(ctx, id); err != nil {
			logger.Error("Pipeline failed", zap.String("table", id), zap.Error(err))
			return exitStageFailed
		}
	}
	return exitOK
}

func cmdRunStage(ctx context.Context, newRunner func(int) *pipeline.Runner, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("run-stage", flag.ContinueOnError)
	tableID := fs.String("table", "", "table to migrate")
	stage := fs.String("stage", "", "stage to run (import, profile, clean, validate, transform)")
	chunkSize := fs.Int("chunk", 0, "chunk size override")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}
	if *tableID == "" || *stage == "" {
		fmt.Fprintln(os.Stderr, "run-stage requires -table and -stage")
		return exitConfigError
	}

	if _, err := newRunner(*chunkSize).RunStage(ctx, *tableID, parseStage(*stage)); err != nil {
		logger.Error("Stage failed",
			zap.String("table", *tableID),
			zap.String("stage", *stage),
			zap.Error(err))
		return exitStageFailed
	}
	return exitOK
}

func cmdReport(ctx context.Context, reporter *report.Reporter, args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	tableID := fs.String("table", "", "table to report on")
	stage := fs.String("stage", "transform", "stage to cut the scorecard at")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}
	if *tableID == "" {
		fmt.Fprintln(os.Stderr, "report requires -table")
		return exitConfigError
	}

	card, err := reporter.Scorecard(ctx, *tableID, parseStage(*stage))
	if err != nil {
		fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
		return exitStageFailed
	}
	return printJSON(card)
}

func cmdRejections(ctx context.Context, reporter *report.Reporter, args []string) int {
	fs := flag.NewFlagSet("rejections", flag.ContinueOnError)
	tableID := fs.String("table", "", "table to export rejections for")
	outPath := fs.String("out", "", "output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}
	if *tableID == "" {
		fmt.Fprintln(os.Stderr, "rejections requires -table")
		return exitConfigError
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rejections export failed: %v\n", err)
			return exitStageFailed
		}
		defer f.Close()
		out = f
	}

	if _, err := reporter.ExportRejections(ctx, *tableID, out); err != nil {
		fmt.Fprintf(os.Stderr, "rejections export failed: %v\n", err)
		return exitStageFailed
	}
	return exitOK
}

func cmdProfiles(ctx context.Context, reporter *report.Reporter, args []string) int {
	fs := flag.NewFlagSet("profiles", flag.ContinueOnError)
	tableID := fs.String("table", "", "table to show column profiles for")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}
	if *tableID == "" {
		fmt.Fprintln(os.Stderr, "profiles requires -table")
		return exitConfigError
	}

	profiles, err := reporter.Profiles(ctx, *tableID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "profiles failed: %v\n", err)
		return exitStageFailed
	}
	return printJSON(profiles)
}

func cmdVerify(ctx context.Context, st store.Store, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	tableID := fs.String("table", "", "table to verify")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}
	if *tableID == "" {
		fmt.Fprintln(os.Stderr, "verify requires -table")
		return exitConfigError
	}

	report, err := pipeline.NewVerifier(st, logger).Verify(ctx, *tableID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verification failed: %v\n", err)
		return exitStageFailed
	}
	if code := printJSON(report); code != exitOK {
		return code
	}
	if !report.Passed() {
		return exitStageFailed
	}
	return exitOK
}

func parseStage(s string) model.StageKind {
	return model.StageKind(s)
}

func printJSON(v interface{}) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode output: %v\n", err)
		return exitStageFailed
	}
	return exitOK
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: naga-migrate <command> [flags]

commands:
  run         run the full pipeline (-table to restrict to one table)
  run-stage   run a single stage (-table, -stage)
  report      print the quality scorecard (-table, -stage)
  rejections  export rejected rows as JSON (-table, -out)
  profiles    print column profiles from the profiling stage (-table)
  verify      check stored stage output for row conservation (-table)`)
}
