package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gferro/mediatext/internal/bootstrap"
	"github.com/gferro/mediatext/internal/config"
	"github.com/gferro/mediatext/internal/core/domain"
	"github.com/gferro/mediatext/internal/infrastructure/queue/rabbitmq"
	"github.com/gferro/mediatext/internal/observability/logging"
	"github.com/gferro/mediatext/internal/observability/metrics"
)

const queueDepthInterval = 30 * time.Second

func main() {
	cfg := config.Load()
	logging.Setup("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")

	for _, media := range domain.MediaTypes() {
		mediaType := media
		handler := func(taskCtx context.Context, task domain.Task) error {
			workerMetrics.StartTask()
			start := time.Now()
			err := app.HandleUC.HandleTask(taskCtx, task)
			workerMetrics.FinishTask(string(mediaType), time.Since(start), err)
			return err
		}
		if err := app.Queue.SetupConsumer(ctx, mediaType.QueueName(), handler); err != nil {
			log.Fatalf("setup consumer for %s: %v", mediaType.QueueName(), err)
		}
	}

	go sampleQueueDepth(ctx, app.Queue, workerMetrics)

	metricsServer := &http.Server{
		Addr:        ":" + cfg.WorkerMetricsPort,
		Handler:     workerMetrics.Handler(),
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("worker metrics listening on :%s", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

func sampleQueueDepth(ctx context.Context, queue *rabbitmq.Manager, workerMetrics *metrics.WorkerMetrics) {
	ticker := time.NewTicker(queueDepthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range rabbitmq.QueueNames() {
				messages, _, err := queue.QueueStatus(name)
				if err != nil {
					continue
				}
				workerMetrics.SetQueueDepth(name, messages)
			}
		}
	}
}
