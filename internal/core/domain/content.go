package domain

import "time"

// ProcessedContent is one extracted-text record. The logical key is
// (FileName, FileType); the store enforces it with a unique constraint and
// conflict-ignore inserts, so redelivered tasks collapse to one row.
type ProcessedContent struct {
	ID          string            `json:"id"`
	FileName    string            `json:"file_name"`
	FileType    MediaType         `json:"file_type"`
	ContentType string            `json:"content_type"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
