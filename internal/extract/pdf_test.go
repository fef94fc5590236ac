package extract

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTextMissingFile(t *testing.T) {
	if _, err := Text(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTextInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-pdf.pdf")
	if err := os.WriteFile(path, []byte("this is plain text, not a pdf"), 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	if _, err := Text(path); err == nil {
		t.Fatal("expected error for invalid pdf content")
	}
}
