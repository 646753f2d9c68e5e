package usecase

import (
	"context"
	"log/slog"
	"os"

	"github.com/gferro/mediatext/internal/core/domain"
	"github.com/gferro/mediatext/internal/core/ports"
)

// HandleTaskUseCase is the consumer-side pipeline: verify the source file,
// extract, persist, and drive the file to its terminal directory.
type HandleTaskUseCase struct {
	store    ports.ContentStore
	files    ports.FileLifecycle
	registry *ExtractorRegistry
}

func NewHandleTaskUseCase(
	store ports.ContentStore,
	files ports.FileLifecycle,
	registry *ExtractorRegistry,
) *HandleTaskUseCase {
	return &HandleTaskUseCase{
		store:    store,
		files:    files,
		registry: registry,
	}
}

// HandleTask processes one dequeued task. A returned error means the
// delivery should be dead-lettered; the file has already been moved to
// unprocessed by then. A duplicate row is not an error and the file still
// reaches processed.
func (uc *HandleTaskUseCase) HandleTask(ctx context.Context, task domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(task.FilePath); err != nil {
		return domain.WrapError(domain.ErrMissingSource, "handle task", err)
	}

	extractor, err := uc.registry.For(task.MediaType)
	if err != nil {
		uc.toUnprocessed(task)
		return err
	}

	text, err := extractor.Extract(ctx, task.FilePath)
	if err != nil {
		uc.toUnprocessed(task)
		return domain.WrapError(domain.ErrExtraction, "extract "+string(task.MediaType), err)
	}

	inserted, err := uc.store.SaveProcessedContent(ctx, &domain.ProcessedContent{
		FileName:    task.FileName,
		FileType:    task.MediaType,
		ContentType: "text/plain",
		Content:     text,
		Metadata:    map[string]string{"source_path": task.FilePath},
	})
	if err != nil {
		uc.toUnprocessed(task)
		return err
	}
	if !inserted {
		slog.Info("content already stored", "file", task.FileName, "media_type", task.MediaType)
	}

	if _, err := uc.files.MoveToProcessed(task.FilePath); err != nil {
		// The file must still end up in a terminal directory.
		uc.toUnprocessed(task)
		return domain.WrapError(domain.ErrPersistence, "move to processed", err)
	}

	slog.Info("task processed",
		"file", task.FileName,
		"media_type", task.MediaType,
		"inserted", inserted,
	)
	return nil
}

func (uc *HandleTaskUseCase) toUnprocessed(task domain.Task) {
	if _, err := uc.files.MoveToUnprocessed(task.FilePath); err != nil {
		slog.Warn("move to unprocessed failed", "file", task.FileName, "error", err)
	}
}
