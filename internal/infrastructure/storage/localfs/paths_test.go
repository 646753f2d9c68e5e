package localfs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewCreatesTerminalDirectories(t *testing.T) {
	root := t.TempDir()
	p, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, dir := range []string{p.ProcessedDir(), p.UnprocessedDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected dir %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %s to be a directory", dir)
		}
	}

	// Repeat initialization is idempotent.
	if _, err := New(root); err != nil {
		t.Fatalf("second New() error = %v", err)
	}
}

func TestMoveToProcessedRelocatesFile(t *testing.T) {
	p, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	src := p.StagingPath("a.pdf")
	if err := os.WriteFile(src, []byte("content"), 0o644); err != nil {
		t.Fatalf("stage file: %v", err)
	}

	dst, err := p.MoveToProcessed(src)
	if err != nil {
		t.Fatalf("MoveToProcessed() error = %v", err)
	}
	if dst != p.ProcessedPath("a.pdf") {
		t.Fatalf("unexpected destination %s", dst)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected staging copy to be gone")
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected processed copy: %v", err)
	}
}

func TestMoveToUnprocessedStripsDirectories(t *testing.T) {
	p, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	nested := filepath.Join(p.StagingDir(), "inner")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	src := filepath.Join(nested, "b.xyz")
	if err := os.WriteFile(src, []byte("content"), 0o644); err != nil {
		t.Fatalf("stage file: %v", err)
	}

	dst, err := p.MoveToUnprocessed(src)
	if err != nil {
		t.Fatalf("MoveToUnprocessed() error = %v", err)
	}
	if dst != p.UnprocessedPath("b.xyz") {
		t.Fatalf("expected flat unprocessed path, got %s", dst)
	}
}
