// Command radiotts renders radio clips from items sheets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/radio-tts-service/internal/config"
	"github.com/book-expert/radio-tts-service/internal/core"
	"github.com/book-expert/radio-tts-service/internal/export"
	"github.com/book-expert/radio-tts-service/internal/fileutil"
	"github.com/book-expert/radio-tts-service/internal/history"
	"github.com/book-expert/radio-tts-service/internal/item"
	"github.com/book-expert/radio-tts-service/internal/orchestrator"
	"github.com/book-expert/radio-tts-service/internal/report"
	"github.com/book-expert/radio-tts-service/internal/tts"
)

// Flag names.
const (
	flagItems    = "items"
	flagInputDir = "inputdir"
	flagVoice    = "voice"
	flagNoise    = "noise"
	flagOut      = "out"
	flagConfig   = "config"
	flagHealth   = "health"
)

// Flag descriptions.
const (
	flagItemsDesc    = "Comma-separated items files (.csv or .toml)"
	flagInputDirDesc = "Directory of items files; names starting with ~ or _ are skipped"
	flagVoiceDesc    = "Voice used for every item, overriding the sheet"
	flagNoiseDesc    = "Background noise level in dB for every item, overriding the sheet"
	flagOutDesc      = "Output root directory (defaults to paths.output_dir)"
	flagConfigDesc   = "Path to a TOML configuration file"
	flagHealthDesc   = "Check the synthesis oracle health and exit"
)

// Log and console messages.
const (
	logFileName         = "radiotts.log"
	logStarted          = "radiotts started with provider %s, output root %s"
	logProcessingItems  = "Processing %d items from %s into %s"
	logReportWritten    = "Report written to %s"
	logHistoryRecorded  = "Run %s recorded in history"
	logBatchFinished    = "Finished %s: %d items, %d failed, %s"
	msgServiceHealthy   = "Synthesis oracle is healthy"
	errHealthCheckFmt   = "health check failed: %w"
	errItemsFileFmt     = "failed to process items file %s: %w"
	errHistoryRecordFmt = "Failed to record run for %s: %v"
)

const healthTimeout = 10 * time.Second

var (
	// ErrItemsRequired is returned when no items file is given.
	ErrItemsRequired = errors.New("at least one items file must be provided with --items or --inputdir")
	// ErrInvalidNoise is returned when --noise is not an integer dB level.
	ErrInvalidNoise = errors.New("noise must be an integer dB level")
	// ErrItemsFailed is returned when at least one clip could not be produced.
	ErrItemsFailed = errors.New("one or more items failed")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	items    []string
	inputDir string
	voice    string
	noise    item.Optional[int]
	out      string
	config   string
	health   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses args into appFlags. The items flag takes a comma list
// and the files found in the input directory are appended to it.
func parseFlags(args []string, output io.Writer) (appFlags, error) {
	var (
		flags appFlags
		items string
	)

	flagSet := flag.NewFlagSet("radiotts", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&items, flagItems, "", flagItemsDesc)
	flagSet.StringVar(&flags.inputDir, flagInputDir, "", flagInputDirDesc)
	flagSet.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flagSet.Func(flagNoise, flagNoiseDesc, func(value string) error {
		db, convErr := strconv.Atoi(strings.TrimSpace(value))
		if convErr != nil {
			return fmt.Errorf("%w: %q", ErrInvalidNoise, value)
		}

		flags.noise = item.Some(db)

		return nil
	})
	flagSet.StringVar(&flags.out, flagOut, "", flagOutDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	flagSet.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	for _, path := range strings.Split(items, ",") {
		path = strings.TrimSpace(path)
		if path != "" {
			flags.items = append(flags.items, path)
		}
	}

	if flags.inputDir != "" {
		dirItems, dirErr := item.FilesInDir(flags.inputDir)
		if dirErr != nil {
			return appFlags{}, dirErr
		}

		flags.items = append(flags.items, dirItems...)
	}

	if !flags.health && len(flags.items) == 0 {
		return appFlags{}, ErrItemsRequired
	}

	return flags, nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}

	return config.LoadFile(path)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags, err := parseFlags(args, stdout)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags.config)
	if err != nil {
		return err
	}

	logDir := cfg.Paths.BaseLogsDir
	if logDir == "" {
		logDir = os.TempDir()
	}

	log, err := logger.New(logDir, logFileName)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	synth, err := tts.New(cfg.Oracle)
	if err != nil {
		return err
	}

	if flags.health {
		return handleHealthCheck(ctx, synth, stdout)
	}

	outRoot := flags.out
	if outRoot == "" {
		outRoot = cfg.Paths.OutputDir
	}

	log.System(logStarted, cfg.Oracle.Provider, outRoot)

	store, err := openHistory(ctx, cfg.History)
	if err != nil {
		return err
	}

	if store != nil {
		defer func() { _ = store.Close() }()
	}

	app := &batchRunner{
		cfg:     cfg,
		orch:    orchestrator.FromConfig(cfg, synth, orchestrator.Overrides{Voice: flags.voice, Noise: flags.noise}, log),
		history: store,
		log:     log,
		stdout:  stdout,
	}

	anyFailed := false

	for _, path := range flags.items {
		failed, batchErr := app.processItemsFile(ctx, path, outRoot)
		if batchErr != nil {
			return fmt.Errorf(errItemsFileFmt, path, batchErr)
		}

		anyFailed = anyFailed || failed > 0
	}

	if anyFailed {
		return ErrItemsFailed
	}

	return nil
}

func handleHealthCheck(ctx context.Context, synth core.Synthesizer, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	err := tts.CheckHealth(ctx, synth)
	if err != nil {
		return fmt.Errorf(errHealthCheckFmt, err)
	}

	fmt.Fprintln(stdout, msgServiceHealthy)

	return nil
}

func openHistory(ctx context.Context, cfg config.HistoryConfig) (*history.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	return history.Open(ctx, cfg.Path)
}

// batchRunner runs items files through one orchestrator.
type batchRunner struct {
	cfg     config.Config
	orch    *orchestrator.Orchestrator
	history *history.Store
	log     *logger.Logger
	stdout  io.Writer
}

// processItemsFile renders one items file and returns its failure count.
func (b *batchRunner) processItemsFile(ctx context.Context, path, outRoot string) (int, error) {
	records, err := item.ReadFile(path, b.cfg.Batch.Separator(), item.WithWarner(b.log))
	if err != nil {
		return 0, err
	}

	stem := fileutil.Stem(path)
	outDir := filepath.Join(outRoot, stem)

	exporter, err := export.NewFileExporter(outDir, b.cfg.Batch.OutputFormat, b.cfg.Batch.FFmpegPath, b.log)
	if err != nil {
		return 0, err
	}

	b.log.Info(logProcessingItems, len(records), path, outDir)

	startedAt := time.Now()
	rows := b.orch.ProcessBatch(ctx, records, exporter)
	finishedAt := time.Now()

	reportPath, err := writeReport(outDir, stem, rows, b.cfg.Batch.Separator())
	if err != nil {
		return 0, err
	}

	b.log.Info(logReportWritten, reportPath)

	fmt.Fprintln(b.stdout, report.RenderTable(rows))

	if b.history != nil {
		runID, recordErr := b.history.RecordRun(ctx, history.Run{
			Source:     path,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
		}, rows)
		if recordErr != nil {
			b.log.Warn(errHistoryRecordFmt, path, recordErr)
		} else {
			b.log.Info(logHistoryRecorded, runID)
		}
	}

	failed := report.Failed(rows)
	elapsed := fileutil.FormatDuration(finishedAt.Sub(startedAt).Seconds())
	b.log.Info(logBatchFinished, path, len(rows), failed, elapsed)

	return failed, nil
}

func writeReport(outDir, stem string, rows []report.Row, separator rune) (string, error) {
	dirErr := fileutil.EnsureDir(outDir)
	if dirErr != nil {
		return "", dirErr
	}

	reportPath := filepath.Join(outDir, report.FileName(stem))

	file, err := os.Create(reportPath)
	if err != nil {
		return "", fmt.Errorf("failed to create report %s: %w", reportPath, err)
	}

	writeErr := report.WriteCSV(file, rows, separator)
	closeErr := file.Close()

	if writeErr != nil {
		return "", writeErr
	}

	if closeErr != nil {
		return "", fmt.Errorf("failed to close report %s: %w", reportPath, closeErr)
	}

	return reportPath, nil
}
