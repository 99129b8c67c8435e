package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Quarterly Results</w:t></w:r></w:p>
    <w:p><w:r><w:t>Revenue grew</w:t></w:r><w:r><w:t xml:space="preserve"> by 40%.</w:t></w:r></w:p>
    <w:p><w:r><w:t>First</w:t><w:br/><w:t>Second</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeTestDocx(t *testing.T, dir string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(docxBody)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	path := filepath.Join(dir, "report.docx")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write docx: %v", err)
	}
	return path
}

func TestDetect(t *testing.T) {
	pngHead := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	mime, err := Detect("chart.png", pngHead)
	if err != nil {
		t.Fatalf("Detect png failed: %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("unexpected mime %s", mime)
	}

	if _, err := Detect("notes.txt", []byte("hello")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType for txt, got %v", err)
	}

	// png extension but text payload
	if _, err := Detect("fake.png", []byte("just some text here")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType for mismatched content, got %v", err)
	}
}

func TestDetectDocxSniffsAsZip(t *testing.T) {
	zipHead := append([]byte("PK\x03\x04"), make([]byte, 64)...)
	mime, err := Detect("report.docx", zipHead)
	if err != nil {
		t.Fatalf("Detect docx failed: %v", err)
	}
	if !strings.Contains(mime, "wordprocessingml") {
		t.Fatalf("unexpected mime %s", mime)
	}
}

func TestExtractDocx(t *testing.T) {
	svc, err := NewService(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	path := writeTestDocx(t, t.TempDir())

	text, err := svc.Extract(context.Background(), path, acceptedTypes[".docx"])
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !strings.Contains(text, "Quarterly Results") {
		t.Fatalf("heading text missing: %q", text)
	}
	if !strings.Contains(text, "Revenue grew by 40%.") {
		t.Fatalf("runs not joined within a paragraph: %q", text)
	}
	if !strings.Contains(text, "First\nSecond") {
		t.Fatalf("line break not preserved: %q", text)
	}
}

type fakeTranscriber struct {
	text string
	err  error
	mime string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, data []byte, mime string) (string, error) {
	f.mime = mime
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func TestExtractImageUsesOCR(t *testing.T) {
	svc, err := NewService(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	ocr := &fakeTranscriber{text: "text from the image"}
	svc.ocr = ocr

	path := filepath.Join(t.TempDir(), "scan.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	text, err := svc.Extract(context.Background(), path, "image/png")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "text from the image" {
		t.Fatalf("unexpected text %q", text)
	}
	if ocr.mime != "image/png" {
		t.Fatalf("mime not forwarded to transcriber: %q", ocr.mime)
	}
}

func TestExtractImageWithoutOCR(t *testing.T) {
	svc, err := NewService(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "scan.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if _, err := svc.Extract(context.Background(), path, "application/pdf"); err == nil {
		t.Fatalf("expected error without ocr configured")
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	svc, err := NewService(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	svc.ocr = &fakeTranscriber{text: "   "}

	path := filepath.Join(t.TempDir(), "blank.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if _, err := svc.Extract(context.Background(), path, "image/png"); err == nil {
		t.Fatalf("expected error for blank transcription")
	}
}
