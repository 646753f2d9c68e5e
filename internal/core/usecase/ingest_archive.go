package usecase

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/gferro/mediatext/internal/core/domain"
	"github.com/gferro/mediatext/internal/core/ports"
)

const (
	DispatchQueue  = "queue"
	DispatchDirect = "direct"
)

// IngestArchiveUseCase expands an uploaded archive into staging and drives
// every staged file through classification, dispatch, and batch accounting.
type IngestArchiveUseCase struct {
	store    ports.ContentStore
	queue    ports.TaskQueue
	files    ports.FileLifecycle
	registry *ExtractorRegistry
	batchLog ports.BatchLogWriter
	notifier ports.RefreshNotifier
	mode     string
}

func NewIngestArchiveUseCase(
	store ports.ContentStore,
	queue ports.TaskQueue,
	files ports.FileLifecycle,
	registry *ExtractorRegistry,
	batchLog ports.BatchLogWriter,
	notifier ports.RefreshNotifier,
	mode string,
) *IngestArchiveUseCase {
	if mode != DispatchDirect {
		mode = DispatchQueue
	}
	return &IngestArchiveUseCase{
		store:    store,
		queue:    queue,
		files:    files,
		registry: registry,
		batchLog: batchLog,
		notifier: notifier,
		mode:     mode,
	}
}

// ProcessArchive expands the zip into staging and processes every entry.
// Per-entry failures relocate the file to unprocessed and are recorded in
// the batch stats; they never abort the batch. Total counts only entries
// with a supported extension.
func (uc *IngestArchiveUseCase) ProcessArchive(ctx context.Context, archivePath string) (*domain.BatchStats, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open archive", err)
	}
	defer reader.Close()

	stats := domain.NewBatchStats()
	seen := make(map[string]int)
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		base := filepath.Base(entry.Name)
		if base == "." || base == string(filepath.Separator) {
			continue
		}
		name := uniqueName(base, seen[base])
		seen[base]++

		stagedPath, err := uc.stageEntry(entry, name)
		if err != nil {
			stats.AddError(name, fmt.Errorf("stage entry: %w", err))
			continue
		}

		media, supported := domain.ClassifyFile(name)
		if !supported {
			uc.quarantine(stagedPath, name, stats,
				domain.WrapError(domain.ErrUnsupportedMedia, "classify file", errors.New(filepath.Ext(name))))
			continue
		}

		stats.TotalFiles++
		switch uc.mode {
		case DispatchDirect:
			uc.processStaged(ctx, stagedPath, name, media, stats)
		default:
			uc.enqueueStaged(ctx, stagedPath, name, media, stats)
		}
	}

	uc.finishBatch(ctx, archivePath, stats)
	return stats, nil
}

// ProcessFile runs the direct pipeline for one already-staged file,
// regardless of the configured dispatch mode.
func (uc *IngestArchiveUseCase) ProcessFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return domain.WrapError(domain.ErrMissingSource, "process file", err)
	}

	name := filepath.Base(path)
	media, supported := domain.ClassifyFile(name)
	if !supported {
		if _, moveErr := uc.files.MoveToUnprocessed(path); moveErr != nil {
			slog.Warn("move to unprocessed failed", "file", name, "error", moveErr)
		}
		return domain.WrapError(domain.ErrUnsupportedMedia, "process file", errors.New(filepath.Ext(name)))
	}

	if err := uc.extractAndPersist(ctx, path, name, media); err != nil {
		if _, moveErr := uc.files.MoveToUnprocessed(path); moveErr != nil {
			slog.Warn("move to unprocessed failed", "file", name, "error", moveErr)
		}
		return err
	}
	if _, err := uc.files.MoveToProcessed(path); err != nil {
		if _, moveErr := uc.files.MoveToUnprocessed(path); moveErr != nil {
			slog.Warn("move to unprocessed failed", "file", name, "error", moveErr)
		}
		return domain.WrapError(domain.ErrPersistence, "move to processed", err)
	}
	return nil
}

// uniqueName disambiguates archive entries whose base names collide after
// directory flattening, so one staged file cannot overwrite another.
func uniqueName(base string, collisions int) string {
	if collisions == 0 {
		return base
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, ext), collisions, ext)
}

func (uc *IngestArchiveUseCase) stageEntry(entry *zip.File, name string) (string, error) {
	src, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	// Entry names are flattened to their base name, which also defuses
	// path traversal inside the archive.
	stagedPath := uc.files.StagingPath(name)
	dst, err := os.OpenFile(stagedPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(stagedPath)
		return "", err
	}
	return stagedPath, nil
}

func (uc *IngestArchiveUseCase) enqueueStaged(ctx context.Context, stagedPath, name string, media domain.MediaType, stats *domain.BatchStats) {
	task := domain.Task{
		FilePath:       stagedPath,
		FileName:       name,
		StagingDir:     uc.files.StagingDir(),
		ProcessedDir:   uc.files.ProcessedDir(),
		UnprocessedDir: uc.files.UnprocessedDir(),
		MediaType:      media,
	}
	if err := uc.queue.EnqueueTask(ctx, media, task); err != nil {
		uc.quarantine(stagedPath, name, stats, fmt.Errorf("enqueue task: %w", err))
		return
	}
	// Queue mode accounts at enqueue time; extraction outcomes surface
	// through worker metrics and the dead-letter queues.
	stats.ProcessedFiles++
}

func (uc *IngestArchiveUseCase) processStaged(ctx context.Context, stagedPath, name string, media domain.MediaType, stats *domain.BatchStats) {
	inserted, err := uc.extractAndPersistCount(ctx, stagedPath, name, media)
	if err != nil {
		uc.quarantine(stagedPath, name, stats, err)
		return
	}
	if _, err := uc.files.MoveToProcessed(stagedPath); err != nil {
		// The file must still end up in a terminal directory.
		uc.quarantine(stagedPath, name, stats, fmt.Errorf("move to processed: %w", err))
		return
	}
	stats.ProcessedFiles++
	if inserted {
		stats.SavedToDB++
	}
}

func (uc *IngestArchiveUseCase) extractAndPersist(ctx context.Context, path, name string, media domain.MediaType) error {
	_, err := uc.extractAndPersistCount(ctx, path, name, media)
	return err
}

func (uc *IngestArchiveUseCase) extractAndPersistCount(ctx context.Context, path, name string, media domain.MediaType) (bool, error) {
	extractor, err := uc.registry.For(media)
	if err != nil {
		return false, err
	}
	text, err := extractor.Extract(ctx, path)
	if err != nil {
		return false, domain.WrapError(domain.ErrExtraction, "extract "+string(media), err)
	}

	inserted, err := uc.store.SaveProcessedContent(ctx, &domain.ProcessedContent{
		FileName:    name,
		FileType:    media,
		ContentType: "text/plain",
		Content:     text,
		Metadata:    map[string]string{"source_path": path},
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		slog.Info("content already stored", "file", name, "media_type", media)
	}
	return inserted, nil
}

func (uc *IngestArchiveUseCase) quarantine(stagedPath, name string, stats *domain.BatchStats, cause error) {
	stats.AddError(name, cause)
	if _, err := uc.files.MoveToUnprocessed(stagedPath); err != nil {
		slog.Warn("move to unprocessed failed", "file", name, "error", err)
	}
}

func (uc *IngestArchiveUseCase) finishBatch(ctx context.Context, archivePath string, stats *domain.BatchStats) {
	archiveName := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	report := stats.Report()

	if uc.batchLog != nil {
		if path, err := uc.batchLog.Write(archiveName, report); err != nil {
			slog.Error("write batch log failed", "archive", archiveName, "error", err)
		} else {
			slog.Info("batch finished",
				"archive", archiveName,
				"total", report.TotalFiles,
				"processed", report.ProcessedFiles,
				"failed", report.FailedFiles,
				"success_rate", report.SuccessRate,
				"log", path,
			)
		}
	}

	if uc.notifier != nil {
		batchID := uuid.NewString()
		if err := uc.notifier.NotifyContentRefreshed(ctx, batchID); err != nil {
			slog.Warn("content refresh notification failed", "batch_id", batchID, "error", err)
		}
	}
}
