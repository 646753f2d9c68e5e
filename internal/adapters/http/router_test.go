package httpadapter

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gferro/mediatext/internal/config"
	"github.com/gferro/mediatext/internal/core/domain"
)

type ingestFake struct {
	stats       *domain.BatchStats
	archiveErr  error
	fileErr     error
	archivePath string
	filePath    string
}

func (f *ingestFake) ProcessArchive(_ context.Context, archivePath string) (*domain.BatchStats, error) {
	f.archivePath = archivePath
	if f.archiveErr != nil {
		return nil, f.archiveErr
	}
	return f.stats, nil
}

func (f *ingestFake) ProcessFile(_ context.Context, path string) error {
	f.filePath = path
	return f.fileErr
}

type readerFake struct {
	content []domain.ProcessedContent
	err     error
}

func (f *readerFake) ListProcessedContent(context.Context) ([]domain.ProcessedContent, error) {
	return f.content, f.err
}

type summaryStoreFake struct {
	id      string
	summary string
	err     error
}

func (f *summaryStoreFake) SaveProcessedContent(context.Context, *domain.ProcessedContent) (bool, error) {
	return false, errors.New("not implemented")
}

func (f *summaryStoreFake) ListProcessedContent(context.Context) ([]domain.ProcessedContent, error) {
	return nil, errors.New("not implemented")
}

func (f *summaryStoreFake) UpdateSummary(_ context.Context, id, summary string) error {
	if f.err != nil {
		return f.err
	}
	f.id = id
	f.summary = summary
	return nil
}

type queueStatusFake struct {
	messages  int
	consumers int
	statusErr error
	purged    []string
	purgedAll bool
}

func (f *queueStatusFake) EnqueueTask(context.Context, domain.MediaType, domain.Task) error {
	return errors.New("not implemented")
}

func (f *queueStatusFake) QueueStatus(string) (int, int, error) {
	if f.statusErr != nil {
		return 0, 0, f.statusErr
	}
	return f.messages, f.consumers, nil
}

func (f *queueStatusFake) PurgeQueue(queue string) error {
	f.purged = append(f.purged, queue)
	return nil
}

func (f *queueStatusFake) PurgeQueues() error {
	f.purgedAll = true
	return nil
}

type stagingFake struct {
	dir string
}

func (f *stagingFake) StagingDir() string              { return f.dir }
func (f *stagingFake) ProcessedDir() string            { return f.dir }
func (f *stagingFake) UnprocessedDir() string          { return f.dir }
func (f *stagingFake) StagingPath(name string) string  { return filepath.Join(f.dir, filepath.Base(name)) }
func (f *stagingFake) ProcessedPath(name string) string {
	return filepath.Join(f.dir, filepath.Base(name))
}
func (f *stagingFake) UnprocessedPath(name string) string {
	return filepath.Join(f.dir, filepath.Base(name))
}
func (f *stagingFake) MoveToProcessed(path string) (string, error)   { return path, nil }
func (f *stagingFake) MoveToUnprocessed(path string) (string, error) { return path, nil }

func newTestHandler(t *testing.T, cfg config.Config, ingest *ingestFake, reader *readerFake, queue *queueStatusFake) http.Handler {
	return newTestHandlerWithStore(t, cfg, ingest, &summaryStoreFake{}, reader, queue)
}

func newTestHandlerWithStore(t *testing.T, cfg config.Config, ingest *ingestFake, store *summaryStoreFake, reader *readerFake, queue *queueStatusFake) http.Handler {
	t.Helper()
	if ingest == nil {
		ingest = &ingestFake{stats: domain.NewBatchStats()}
	}
	if reader == nil {
		reader = &readerFake{}
	}
	if queue == nil {
		queue = &queueStatusFake{}
	}
	return NewRouter(cfg, ingest, store, reader, queue, &stagingFake{dir: t.TempDir()}, nil).Handler()
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func zipBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	entry, err := writer.Create("a.txt")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := entry.Write([]byte("alpha")); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUploadArchiveSuccess(t *testing.T) {
	stats := domain.NewBatchStats()
	stats.TotalFiles = 1
	stats.ProcessedFiles = 1
	ingest := &ingestFake{stats: stats}
	handler := newTestHandler(t, config.Config{}, ingest, nil, nil)

	body, contentType := multipartBody(t, "batch.zip", zipBytes(t))
	req := httptest.NewRequest(http.MethodPost, "/v1/archives", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var report map[string]any
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report["total_files"] != float64(1) || report["success_rate"] != "100.00%" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if ingest.archivePath == "" {
		t.Fatalf("expected archive handed to ingestor")
	}
	if _, err := os.Stat(ingest.archivePath); !os.IsNotExist(err) {
		t.Fatalf("expected spooled archive removed after processing")
	}
}

func TestUploadArchiveRejectsNonZip(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil, nil, nil)

	body, contentType := multipartBody(t, "batch.tar", []byte("tar"))
	req := httptest.NewRequest(http.MethodPost, "/v1/archives", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadArchiveMissingMultipartField(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/archives", bytes.NewBufferString("plain"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadFileUnsupportedMedia(t *testing.T) {
	ingest := &ingestFake{
		fileErr: domain.WrapError(domain.ErrUnsupportedMedia, "process file", errors.New(".bin")),
	}
	handler := newTestHandler(t, config.Config{}, ingest, nil, nil)

	body, contentType := multipartBody(t, "blob.bin", []byte{0x00})
	req := httptest.NewRequest(http.MethodPost, "/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", res.Code)
	}
}

func TestUploadFileSuccess(t *testing.T) {
	ingest := &ingestFake{}
	handler := newTestHandler(t, config.Config{}, ingest, nil, nil)

	body, contentType := multipartBody(t, "notes.txt", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	raw, err := os.ReadFile(ingest.filePath)
	if err != nil {
		t.Fatalf("expected staged file: %v", err)
	}
	if string(raw) != "hello" {
		t.Fatalf("expected staged body hello, got %q", raw)
	}
}

func TestListDocuments(t *testing.T) {
	reader := &readerFake{content: []domain.ProcessedContent{
		{ID: "c1", FileName: "a.txt", FileType: domain.MediaDocument, CreatedAt: time.Now().UTC()},
	}}
	handler := newTestHandler(t, config.Config{}, nil, reader, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp struct {
		Count     int                       `json:"count"`
		Documents []domain.ProcessedContent `json:"documents"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || resp.Documents[0].ID != "c1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestListDocumentsTemporaryFailure(t *testing.T) {
	reader := &readerFake{err: domain.WrapError(domain.ErrTemporary, "list", errors.New("db starting"))}
	handler := newTestHandler(t, config.Config{}, nil, reader, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestUpdateSummary(t *testing.T) {
	store := &summaryStoreFake{}
	handler := newTestHandlerWithStore(t, config.Config{}, nil, store, nil, nil)

	body := bytes.NewBufferString(`{"summary":"short recap"}`)
	req := httptest.NewRequest(http.MethodPut, "/v1/documents/c1/summary", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if store.id != "c1" || store.summary != "short recap" {
		t.Fatalf("unexpected update: %+v", store)
	}
}

func TestUpdateSummaryUnknownContent(t *testing.T) {
	store := &summaryStoreFake{err: domain.WrapError(domain.ErrContentNotFound, "update summary", errors.New("no row"))}
	handler := newTestHandlerWithStore(t, config.Config{}, nil, store, nil, nil)

	body := bytes.NewBufferString(`{"summary":"recap"}`)
	req := httptest.NewRequest(http.MethodPut, "/v1/documents/missing/summary", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestUpdateSummaryRequiresBody(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil, nil, nil)

	body := bytes.NewBufferString(`{"summary":"  "}`)
	req := httptest.NewRequest(http.MethodPut, "/v1/documents/c1/summary", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestQueueStatusSingleQueue(t *testing.T) {
	queue := &queueStatusFake{messages: 3, consumers: 1}
	handler := newTestHandler(t, config.Config{}, nil, nil, queue)

	req := httptest.NewRequest(http.MethodGet, "/v1/queues/status?queue=document_processing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var status map[string]struct {
		Messages  int `json:"messages"`
		Consumers int `json:"consumers"`
	}
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status["document_processing"].Messages != 3 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestQueueStatusAllQueues(t *testing.T) {
	queue := &queueStatusFake{}
	handler := newTestHandler(t, config.Config{}, nil, nil, queue)

	req := httptest.NewRequest(http.MethodGet, "/v1/queues/status", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var status map[string]any
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(status) != 4 {
		t.Fatalf("expected 4 queues, got %d", len(status))
	}
}

func TestPurgeAllQueues(t *testing.T) {
	queue := &queueStatusFake{}
	handler := newTestHandler(t, config.Config{}, nil, nil, queue)

	req := httptest.NewRequest(http.MethodPost, "/v1/queues/purge", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !queue.purgedAll {
		t.Fatalf("expected PurgeQueues call")
	}
}

func TestPurgeSingleQueue(t *testing.T) {
	queue := &queueStatusFake{}
	handler := newTestHandler(t, config.Config{}, nil, nil, queue)

	body := bytes.NewBufferString(`{"queue":"audio_processing"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/queues/purge", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(queue.purged) != 1 || queue.purged[0] != "audio_processing" {
		t.Fatalf("expected single purge, got %+v", queue.purged)
	}
}
