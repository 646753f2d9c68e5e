package localfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Paths is the single source of truth for the on-disk file lifecycle:
// files are staged under the upload root and end up in exactly one of
// processed/ or unprocessed/.
type Paths struct {
	root        string
	processed   string
	unprocessed string
}

// New creates processed/ and unprocessed/ under the upload root. Safe to
// call repeatedly.
func New(root string) (*Paths, error) {
	if root == "" {
		root = "./data/uploads"
	}
	p := &Paths{
		root:        root,
		processed:   filepath.Join(root, "processed"),
		unprocessed: filepath.Join(root, "unprocessed"),
	}
	for _, dir := range []string{p.root, p.processed, p.unprocessed} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return p, nil
}

func (p *Paths) StagingDir() string     { return p.root }
func (p *Paths) ProcessedDir() string   { return p.processed }
func (p *Paths) UnprocessedDir() string { return p.unprocessed }

func (p *Paths) StagingPath(filename string) string {
	return filepath.Join(p.root, filepath.Base(filename))
}

func (p *Paths) ProcessedPath(filename string) string {
	return filepath.Join(p.processed, filepath.Base(filename))
}

func (p *Paths) UnprocessedPath(filename string) string {
	return filepath.Join(p.unprocessed, filepath.Base(filename))
}

// MoveToProcessed relocates a file to its terminal processed location.
func (p *Paths) MoveToProcessed(path string) (string, error) {
	dst := p.ProcessedPath(filepath.Base(path))
	if err := moveFile(path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// MoveToUnprocessed relocates a file to its terminal unprocessed location.
func (p *Paths) MoveToUnprocessed(path string) (string, error) {
	dst := p.UnprocessedPath(filepath.Base(path))
	if err := moveFile(path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// moveFile renames, falling back to copy+remove across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("move %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	return os.Remove(src)
}
