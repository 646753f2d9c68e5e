package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gferro/mediatext/internal/core/domain"
	"github.com/gferro/mediatext/internal/core/ports"
)

type storeFake struct {
	saved    []*domain.ProcessedContent
	inserted bool
	err      error
}

func (f *storeFake) SaveProcessedContent(_ context.Context, content *domain.ProcessedContent) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	copyContent := *content
	f.saved = append(f.saved, &copyContent)
	return f.inserted, nil
}

func (f *storeFake) ListProcessedContent(context.Context) ([]domain.ProcessedContent, error) {
	return nil, errors.New("not implemented")
}

func (f *storeFake) UpdateSummary(context.Context, string, string) error {
	return errors.New("not implemented")
}

type queueFake struct {
	enqueued []domain.Task
	err      error
}

func (f *queueFake) EnqueueTask(_ context.Context, _ domain.MediaType, task domain.Task) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, task)
	return nil
}

func (f *queueFake) QueueStatus(string) (int, int, error) { return 0, 0, errors.New("not implemented") }
func (f *queueFake) PurgeQueue(string) error              { return errors.New("not implemented") }
func (f *queueFake) PurgeQueues() error                   { return errors.New("not implemented") }

// lifecycleFake drives real files through temp directories so move
// semantics can be asserted on disk.
type lifecycleFake struct {
	staging     string
	processed   string
	unprocessed string
}

func newLifecycleFake(t *testing.T) *lifecycleFake {
	t.Helper()
	root := t.TempDir()
	f := &lifecycleFake{
		staging:     root,
		processed:   filepath.Join(root, "processed"),
		unprocessed: filepath.Join(root, "unprocessed"),
	}
	for _, dir := range []string{f.processed, f.unprocessed} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return f
}

func (f *lifecycleFake) StagingDir() string     { return f.staging }
func (f *lifecycleFake) ProcessedDir() string   { return f.processed }
func (f *lifecycleFake) UnprocessedDir() string { return f.unprocessed }

func (f *lifecycleFake) StagingPath(name string) string {
	return filepath.Join(f.staging, filepath.Base(name))
}

func (f *lifecycleFake) ProcessedPath(name string) string {
	return filepath.Join(f.processed, filepath.Base(name))
}

func (f *lifecycleFake) UnprocessedPath(name string) string {
	return filepath.Join(f.unprocessed, filepath.Base(name))
}

func (f *lifecycleFake) MoveToProcessed(path string) (string, error) {
	target := f.ProcessedPath(filepath.Base(path))
	return target, os.Rename(path, target)
}

func (f *lifecycleFake) MoveToUnprocessed(path string) (string, error) {
	target := f.UnprocessedPath(filepath.Base(path))
	return target, os.Rename(path, target)
}

func (f *lifecycleFake) stage(t *testing.T, name, body string) string {
	t.Helper()
	path := f.StagingPath(name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("stage %s: %v", name, err)
	}
	return path
}

// processedMoveFailLifecycle simulates an unavailable processed volume
// while the unprocessed side keeps working.
type processedMoveFailLifecycle struct {
	*lifecycleFake
}

func (f *processedMoveFailLifecycle) MoveToProcessed(string) (string, error) {
	return "", errors.New("processed volume unavailable")
}

type extractorFake struct {
	text  string
	err   error
	paths []string
}

func (f *extractorFake) Extract(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type batchLogFake struct {
	archive string
	report  domain.BatchReport
	calls   int
}

func (f *batchLogFake) Write(archiveName string, report domain.BatchReport) (string, error) {
	f.calls++
	f.archive = archiveName
	f.report = report
	return "/logs/" + archiveName + ".json", nil
}

type notifierFake struct {
	batchIDs []string
	err      error
}

func (f *notifierFake) NotifyContentRefreshed(_ context.Context, batchID string) error {
	if f.err != nil {
		return f.err
	}
	f.batchIDs = append(f.batchIDs, batchID)
	return nil
}

func newTestRegistry(t *testing.T, document ports.Extractor) *ExtractorRegistry {
	t.Helper()
	if document == nil {
		document = &extractorFake{text: "document text"}
	}
	registry, err := NewExtractorRegistry(
		&extractorFake{text: "audio text"},
		document,
		&extractorFake{text: "image text"},
		&extractorFake{text: "video text"},
	)
	if err != nil {
		t.Fatalf("NewExtractorRegistry() error = %v", err)
	}
	return registry
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
