package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedTask    = errors.New("malformed task")
	ErrMissingSource    = errors.New("source file missing")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrExtraction       = errors.New("extraction failed")
	ErrPersistence      = errors.New("persistence failed")
	ErrContentNotFound  = errors.New("content not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
