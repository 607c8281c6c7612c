package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/bunnyhook/internal/publish"
	"github.com/your-org/bunnyhook/pkg/bunny"
	"github.com/your-org/bunnyhook/pkg/callback"
	"github.com/your-org/bunnyhook/pkg/config"
	"github.com/your-org/bunnyhook/pkg/kafka"
	"github.com/your-org/bunnyhook/pkg/logger"
	"github.com/your-org/bunnyhook/pkg/metadata"
	"github.com/your-org/bunnyhook/pkg/storage/objectstore"
	"github.com/your-org/bunnyhook/pkg/tracing"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the hook and returns the process exit status. Deferred
// cleanup finishes before main exits.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("post-publish", flag.ContinueOnError)
	flags.SetOutput(stderr)
	meetingID := flags.String("meeting-id", "", "Meeting id to archive")
	format := flags.String("format", "", "Playback format name")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *meetingID == "" || *format == "" {
		flags.Usage()
		return 2
	}

	recording, err := config.LoadRecording()
	if err != nil {
		fmt.Fprintf(stderr, "load recording config: %v\n", err)
		return 1
	}
	if *format != recording.VideoFormat {
		fmt.Fprintf(stdout, "Skipping Bunny Stream upload: format is '%s', not '%s'.\n", *format, recording.VideoFormat)
		return 0
	}

	// The upload is not cancellable once started.
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.LogOutputs)
	if err != nil {
		fmt.Fprintf(stderr, "init logger: %v\n", err)
		return 1
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     tracing.ParseAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
	})
	if err != nil {
		logr.Error("init tracing", zap.Error(err))
		return 1
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	client := bunny.New(bunny.Config{
		BaseURL:   cfg.Bunny.BaseURL,
		LibraryID: cfg.Bunny.LibraryID,
		APIKey:    cfg.Bunny.APIKey,
		Timeout:   cfg.Bunny.Timeout,
	}, logr)

	params := publish.Params{
		Registrar:     client,
		Streamer:      client,
		Notifier:      callback.NewNotifier(nil, cfg.Callback.Timeout, logr),
		Paths:         cfg.Recording,
		LoadMetadata:  metadata.Load,
		Logger:        logr,
		VideoFormat:   cfg.Recording.VideoFormat,
		TitlePrefix:   cfg.Bunny.TitlePrefix,
		CallbackKey:   cfg.Callback.MetadataKey,
		ReceiptPrefix: cfg.Storage.ReceiptPrefix,
	}

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.OutcomeTopic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.Retries,
		})
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := producer.Close(closeCtx); err != nil {
				logr.Warn("kafka producer close failed", zap.Error(err))
			}
		}()
		params.Publisher = producer
	}

	if cfg.Storage.Enabled() {
		store, err := objectstore.New(objectstore.Config{
			Provider:  cfg.Storage.Provider,
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			Bucket:    cfg.Storage.Bucket,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			logr.Warn("receipt store disabled", zap.Error(err))
		} else {
			defer store.Close() //nolint:errcheck
			params.Receipts = store
		}
	}

	outcome := publish.New(params).Run(ctx, publish.Request{MeetingID: *meetingID, Format: *format})

	switch outcome.Kind {
	case publish.OutcomeSkipped:
		fmt.Fprintf(stdout, "Skipping Bunny Stream upload: format is '%s', not '%s'.\n", *format, cfg.Recording.VideoFormat)
	case publish.OutcomeFailure:
		fmt.Fprintf(stdout, "Process failed: %s\n", outcome.Reason)
	}
	return 0
}
