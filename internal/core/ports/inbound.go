package ports

import (
	"context"

	"github.com/gferro/mediatext/internal/core/domain"
)

// ArchiveIngestor is the inbound contract for batch and single-file ingestion.
type ArchiveIngestor interface {
	ProcessArchive(ctx context.Context, archivePath string) (*domain.BatchStats, error)
	ProcessFile(ctx context.Context, path string) error
}

// TaskHandler is the inbound contract for consumer-side task processing.
type TaskHandler interface {
	HandleTask(ctx context.Context, task domain.Task) error
}

// ContentReader is the inbound read model for the persisted content set.
type ContentReader interface {
	ListProcessedContent(ctx context.Context) ([]domain.ProcessedContent, error)
}
