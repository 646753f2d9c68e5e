package document

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractPlaintext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("  hello world\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	text, err := NewExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "hello world" {
		t.Fatalf("expected trimmed text, got %q", text)
	}
}

func TestExtractPlaintextRejectsBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x01}, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := NewExtractor().Extract(context.Background(), path); err == nil {
		t.Fatalf("expected error for binary content")
	}
}

func TestExtractDocx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.docx")
	writeDocx(t, path, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>first paragraph</w:t></w:r></w:p>
    <w:p><w:r><w:t>second </w:t></w:r><w:r><w:t>paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	text, err := NewExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "first paragraph\nsecond paragraph"
	if text != want {
		t.Fatalf("expected %q, got %q", want, text)
	}
}

func TestExtractDocxWithoutDocumentXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.docx")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	zw := zip.NewWriter(f)
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	if _, err := NewExtractor().Extract(context.Background(), path); err == nil {
		t.Fatalf("expected error for docx without document.xml")
	}
}

func TestExtractMissingFile(t *testing.T) {
	if _, err := NewExtractor().Extract(context.Background(), filepath.Join(t.TempDir(), "gone.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func writeDocx(t *testing.T, path, documentXML string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}
