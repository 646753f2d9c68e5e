package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gferro/mediatext/internal/config"
	"github.com/gferro/mediatext/internal/core/domain"
	"github.com/gferro/mediatext/internal/core/ports"
	"github.com/gferro/mediatext/internal/observability/metrics"
)

const backpressureWait = 100 * time.Millisecond

type Router struct {
	cfg     config.Config
	ingest  ports.ArchiveIngestor
	store   ports.ContentStore
	reader  ports.ContentReader
	queue   ports.TaskQueue
	files   ports.FileLifecycle
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingest ports.ArchiveIngestor,
	store ports.ContentStore,
	reader ports.ContentReader,
	queue ports.TaskQueue,
	files ports.FileLifecycle,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:     cfg,
		ingest:  ingest,
		store:   store,
		reader:  reader,
		queue:   queue,
		files:   files,
		metrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/archives", rt.uploadArchive)
	mux.HandleFunc("/v1/files", rt.uploadFile)
	mux.HandleFunc("/v1/documents", rt.listDocuments)
	mux.HandleFunc("/v1/documents/", rt.updateSummary)
	mux.HandleFunc("/v1/queues/status", rt.queueStatus)
	mux.HandleFunc("/v1/queues/purge", rt.purgeQueues)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	if filepath.Ext(fileHeader.Filename) != ".zip" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a .zip archive is required"})
		return
	}

	archivePath, err := spoolUpload(file, "archive-*.zip")
	if err != nil {
		writeError(w, err)
		return
	}
	defer os.Remove(archivePath)

	stats, err := rt.ingest.ProcessArchive(r.Context(), archivePath)
	if err != nil {
		writeError(w, err)
		return
	}

	report := stats.Report()
	if rt.metrics != nil {
		rt.metrics.RecordBatch("api", report.TotalFiles, report.ProcessedFiles, report.FailedFiles)
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) uploadFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	stagedPath := rt.files.StagingPath(fileHeader.Filename)
	dst, err := os.OpenFile(stagedPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(stagedPath)
		writeError(w, err)
		return
	}
	if err := dst.Close(); err != nil {
		writeError(w, err)
		return
	}

	if err := rt.ingest.ProcessFile(r.Context(), stagedPath); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"file":   filepath.Base(fileHeader.Filename),
		"status": "processed",
	})
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	content, err := rt.reader.ListProcessedContent(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if content == nil {
		content = []domain.ProcessedContent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": content,
		"count":     len(content),
	})
}

// updateSummary is the summary backfill hook for the external summarizer:
// PUT /v1/documents/{id}/summary with {"summary": ...}.
func (rt *Router) updateSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, ok := strings.CutSuffix(rest, "/summary")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
		return
	}

	var req struct {
		Summary string `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Summary) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "summary is required"})
		return
	}

	if err := rt.store.UpdateSummary(r.Context(), id, req.Summary); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "updated"})
}

func (rt *Router) queueStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	type queueState struct {
		Messages  int `json:"messages"`
		Consumers int `json:"consumers"`
	}

	queues := []string{}
	if name := r.URL.Query().Get("queue"); name != "" {
		queues = append(queues, name)
	} else {
		for _, media := range domain.MediaTypes() {
			queues = append(queues, media.QueueName())
		}
	}

	status := make(map[string]queueState, len(queues))
	for _, name := range queues {
		messages, consumers, err := rt.queue.QueueStatus(name)
		if err != nil {
			writeError(w, err)
			return
		}
		status[name] = queueState{Messages: messages, Consumers: consumers}
	}
	writeJSON(w, http.StatusOK, status)
}

func (rt *Router) purgeQueues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Queue string `json:"queue"`
	}
	if r.Body != nil {
		// An empty body means purge everything.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var err error
	if req.Queue != "" {
		err = rt.queue.PurgeQueue(req.Queue)
	} else {
		err = rt.queue.PurgeQueues()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

func spoolUpload(src io.Reader, pattern string) (string, error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
