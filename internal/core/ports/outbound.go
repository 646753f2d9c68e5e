package ports

import (
	"context"

	"github.com/gferro/mediatext/internal/core/domain"
)

// ContentStore persists extracted content idempotently under the
// (file_name, file_type) key.
type ContentStore interface {
	// SaveProcessedContent reports false when a row for the same logical
	// key already existed; that is not an error.
	SaveProcessedContent(ctx context.Context, content *domain.ProcessedContent) (bool, error)
	ListProcessedContent(ctx context.Context) ([]domain.ProcessedContent, error)
	UpdateSummary(ctx context.Context, id, summary string) error
}

// TaskQueue distributes per-file tasks over durable media-type queues.
type TaskQueue interface {
	EnqueueTask(ctx context.Context, media domain.MediaType, task domain.Task) error
	// QueueStatus passively reports (messages, consumers) for a queue.
	QueueStatus(queue string) (int, int, error)
	PurgeQueue(queue string) error
	PurgeQueues() error
}

// Extractor converts one file into extracted text. Implementations must not
// have side effects on the file.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// FileLifecycle resolves and drives the on-disk file state machine.
type FileLifecycle interface {
	StagingDir() string
	ProcessedDir() string
	UnprocessedDir() string
	StagingPath(filename string) string
	ProcessedPath(filename string) string
	UnprocessedPath(filename string) string
	MoveToProcessed(path string) (string, error)
	MoveToUnprocessed(path string) (string, error)
}

// RefreshNotifier signals the read side that new content is available.
type RefreshNotifier interface {
	NotifyContentRefreshed(ctx context.Context, batchID string) error
}

// BatchLogWriter persists a frozen batch report.
type BatchLogWriter interface {
	Write(archiveName string, report domain.BatchReport) (string, error)
}
