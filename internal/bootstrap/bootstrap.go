package bootstrap

import (
	"context"
	"fmt"

	"github.com/gferro/mediatext/internal/config"
	"github.com/gferro/mediatext/internal/core/ports"
	"github.com/gferro/mediatext/internal/core/usecase"
	"github.com/gferro/mediatext/internal/infrastructure/batchlog"
	"github.com/gferro/mediatext/internal/infrastructure/extractor/document"
	"github.com/gferro/mediatext/internal/infrastructure/extractor/remote"
	natsnotify "github.com/gferro/mediatext/internal/infrastructure/notify/nats"
	"github.com/gferro/mediatext/internal/infrastructure/queue/rabbitmq"
	"github.com/gferro/mediatext/internal/infrastructure/repository/postgres"
	"github.com/gferro/mediatext/internal/infrastructure/resilience"
	"github.com/gferro/mediatext/internal/infrastructure/storage/localfs"
)

// App wires every adapter behind the ports the use cases need. Both binaries
// share this wiring; cmd/api serves the ingest surface, cmd/worker consumes
// the task queues.
type App struct {
	Config config.Config

	Store    *postgres.ContentRepository
	Queue    *rabbitmq.Manager
	Files    ports.FileLifecycle
	Notifier *natsnotify.Notifier

	IngestUC *usecase.IngestArchiveUseCase
	HandleUC *usecase.HandleTaskUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	store, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.DBPoolSize)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	files, err := localfs.New(cfg.UploadDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init upload storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	// Publishes are fail-fast: a task either reaches the broker on the
	// first try or the file is quarantined, so only the breaker applies.
	queue := rabbitmq.New(cfg.AMQPURL, rabbitmq.Options{
		MessageTTL:         cfg.QueueMessageTTL,
		MaxPriority:        cfg.QueueMaxPriority,
		ConnectRetries:     cfg.BrokerConnectRetries,
		ReconnectWait:      cfg.BrokerReconnectWait,
		ResilienceExecutor: resilience.NewExecutor(resilience.SingleAttempt()),
	})
	if err := queue.Initialize(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("init broker: %w", err)
	}

	notifier, err := natsnotify.New(cfg.NATSURL, cfg.NATSSubject, natsnotify.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		queue.Close()
		store.Close()
		return nil, fmt.Errorf("init refresh notifier: %w", err)
	}

	batchLog, err := batchlog.New(cfg.LogDir)
	if err != nil {
		notifier.Close()
		queue.Close()
		store.Close()
		return nil, fmt.Errorf("init batch log: %w", err)
	}

	registry, err := usecase.NewExtractorRegistry(
		remote.New(cfg.TranscribeServiceURL, "transcribe", executor),
		document.NewExtractor(),
		remote.New(cfg.OCRServiceURL, "ocr", executor),
		remote.New(cfg.VideoServiceURL, "video", executor),
	)
	if err != nil {
		notifier.Close()
		queue.Close()
		store.Close()
		return nil, fmt.Errorf("build extractor registry: %w", err)
	}

	ingestUC := usecase.NewIngestArchiveUseCase(
		store, queue, files, registry, batchLog, notifier, cfg.DispatchMode,
	)
	handleUC := usecase.NewHandleTaskUseCase(store, files, registry)

	return &App{
		Config: cfg,

		Store:    store,
		Queue:    queue,
		Files:    files,
		Notifier: notifier,

		IngestUC: ingestUC,
		HandleUC: handleUC,

		closeFn: func() {
			notifier.Close()
			queue.Close()
			store.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
