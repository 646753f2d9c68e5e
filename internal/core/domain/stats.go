package domain

import (
	"fmt"
	"time"
)

// BatchError records one per-file failure inside a batch.
type BatchError struct {
	File      string    `json:"file"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// BatchStats accumulates per-archive processing counters. It is created per
// batch, mutated by the orchestrator only, and frozen into a report when the
// batch completes.
type BatchStats struct {
	TotalFiles     int          `json:"total_files"`
	ProcessedFiles int          `json:"processed_files"`
	FailedFiles    int          `json:"failed_files"`
	SavedToDB      int          `json:"saved_to_db"`
	Errors         []BatchError `json:"errors"`
}

func NewBatchStats() *BatchStats {
	return &BatchStats{Errors: []BatchError{}}
}

// AddError records a failure and bumps the failed counter.
func (s *BatchStats) AddError(file string, err error) {
	s.FailedFiles++
	s.Errors = append(s.Errors, BatchError{
		File:      file,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	})
}

// SuccessRate renders processed/total as a percentage string, "0%" for an
// empty batch.
func (s *BatchStats) SuccessRate() string {
	if s.TotalFiles == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(s.ProcessedFiles)/float64(s.TotalFiles)*100)
}

// BatchReport is the serialized form written to the batch log.
type BatchReport struct {
	TotalFiles     int          `json:"total_files"`
	ProcessedFiles int          `json:"processed_files"`
	FailedFiles    int          `json:"failed_files"`
	SavedToDB      int          `json:"saved_to_db"`
	SuccessRate    string       `json:"success_rate"`
	Errors         []BatchError `json:"errors"`
}

func (s *BatchStats) Report() BatchReport {
	return BatchReport{
		TotalFiles:     s.TotalFiles,
		ProcessedFiles: s.ProcessedFiles,
		FailedFiles:    s.FailedFiles,
		SavedToDB:      s.SavedToDB,
		SuccessRate:    s.SuccessRate(),
		Errors:         s.Errors,
	}
}
