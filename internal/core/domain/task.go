package domain

import "errors"

// Task is the broker-owned message dispatched per staged file. It exists
// from publish to ack/reject and carries every path the consumer needs so
// workers stay stateless.
type Task struct {
	FilePath       string    `json:"file_path"`
	FileName       string    `json:"file_name"`
	StagingDir     string    `json:"staging_dir"`
	ProcessedDir   string    `json:"processed_dir"`
	UnprocessedDir string    `json:"unprocessed_dir"`
	MediaType      MediaType `json:"media_type"`
}

// Validate reports the first missing required field. A task failing
// validation is discarded by the consumer, not dead-lettered.
func (t Task) Validate() error {
	switch {
	case t.FilePath == "":
		return WrapError(ErrMalformedTask, "validate task", errors.New("file_path is required"))
	case t.FileName == "":
		return WrapError(ErrMalformedTask, "validate task", errors.New("file_name is required"))
	case t.ProcessedDir == "":
		return WrapError(ErrMalformedTask, "validate task", errors.New("processed_dir is required"))
	case t.UnprocessedDir == "":
		return WrapError(ErrMalformedTask, "validate task", errors.New("unprocessed_dir is required"))
	case t.MediaType == "":
		return WrapError(ErrMalformedTask, "validate task", errors.New("media_type is required"))
	}
	return nil
}
