package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/mkorolev/docbrief/internal/core/domain"
)

type storageFake struct {
	blobs map[string][]byte
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.blobs == nil {
		f.blobs = map[string][]byte{}
	}
	f.blobs[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.blobs[key])), nil
}

func (f *storageFake) Remove(context.Context, string) error { return nil }

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := entry.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractPlaintext(t *testing.T) {
	storage := &storageFake{blobs: map[string][]byte{
		"k1": []byte("  hello world  "),
	}}
	e := New(storage)

	text, err := e.Extract(context.Background(), "k1", "notes.txt")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "hello world" {
		t.Fatalf("expected trimmed text, got %q", text)
	}
}

func TestExtractRejectsBinaryPlaintext(t *testing.T) {
	storage := &storageFake{blobs: map[string][]byte{
		"k1": {0xff, 0xfe, 0x00, 0x01},
	}}
	e := New(storage)

	if _, err := e.Extract(context.Background(), "k1", "notes.txt"); err == nil {
		t.Fatalf("expected error for invalid utf-8")
	}
}

func TestExtractDocxParagraphs(t *testing.T) {
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	storage := &storageFake{blobs: map[string][]byte{
		"k1": buildDocx(t, docXML),
	}}
	e := New(storage)

	text, err := e.Extract(context.Background(), "k1", "report.docx")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	lines := strings.Split(text, "\n")
	if len(lines) != 2 || lines[0] != "First paragraph." || lines[1] != "Second paragraph." {
		t.Fatalf("unexpected docx text: %q", text)
	}
}

func TestExtractRejectsUnsupportedExtension(t *testing.T) {
	storage := &storageFake{blobs: map[string][]byte{"k1": []byte("x")}}
	e := New(storage)

	_, err := e.Extract(context.Background(), "k1", "image.png")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestExtractRejectsEmptyText(t *testing.T) {
	storage := &storageFake{blobs: map[string][]byte{"k1": []byte("   \n ")}}
	e := New(storage)

	_, err := e.Extract(context.Background(), "k1", "empty.txt")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}
