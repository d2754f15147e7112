// main package for the radio clip service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/radio-tts-service/internal/config"
	"github.com/book-expert/radio-tts-service/internal/export"
	"github.com/book-expert/radio-tts-service/internal/objectstore"
	"github.com/book-expert/radio-tts-service/internal/orchestrator"
	"github.com/book-expert/radio-tts-service/internal/tts"
	"github.com/book-expert/radio-tts-service/internal/worker"
)

const clipKeyPrefix = "clips"

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run(ctx context.Context) error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), "radiotts-service-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, "radiotts-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	synth, err := tts.New(cfg.Oracle)
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	js, err := jetstream.New(natsConnection)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(ctx, js, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return err
	}

	workerInstance := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.ClipRequestedSubject,
		cfg.NATS.ClipQueueGroup,
		store,
		export.NewObjectStoreExporter(store, clipKeyPrefix),
		orchestrator.FromConfig(cfg, synth, orchestrator.Overrides{}, finalLog),
		time.Duration(cfg.Batch.ItemTimeoutSeconds)*time.Second,
		finalLog,
	)

	finalLog.System("Radio clip service listening for jobs on subject: %s", cfg.NATS.ClipRequestedSubject)

	runErr := workerInstance.Run(ctx)
	if runErr != nil {
		return fmt.Errorf("worker stopped: %w", runErr)
	}

	finalLog.System("Radio clip service stopped")

	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
