package batchlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gferro/mediatext/internal/core/domain"
)

// Writer drops one timestamped JSON report per processed archive.
type Writer struct {
	dir string
}

func New(dir string) (*Writer, error) {
	if dir == "" {
		dir = "./data/logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Write serializes a frozen batch report to
// processing_<timestamp>_<archive>.json and returns the file path.
func (w *Writer) Write(archiveName string, report domain.BatchReport) (string, error) {
	timestamp := time.Now().UTC().Format("20060102_150405")
	name := fmt.Sprintf("processing_%s_%s.json", timestamp, filepath.Base(archiveName))
	path := filepath.Join(w.dir, name)

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal batch report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write batch report: %w", err)
	}

	slog.Info("batch report written",
		"path", path,
		"processed", report.ProcessedFiles,
		"total", report.TotalFiles,
		"success_rate", report.SuccessRate,
	)
	return path, nil
}
