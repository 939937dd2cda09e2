package doctext

import (
	"errors"
	"testing"
)

func TestPlainTextPassesThrough(t *testing.T) {
	got, err := PlainText{}.ExtractText([]byte("A clinical trial report.\nWith two lines."))
	if err != nil {
		t.Fatal(err)
	}
	if got != "A clinical trial report.\nWith two lines." {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestPlainTextRejectsPDF(t *testing.T) {
	_, err := PlainText{}.ExtractText([]byte("%PDF-1.7\nbinary..."))
	var dfe *DocumentFormatError
	if !errors.As(err, &dfe) {
		t.Fatalf("expected DocumentFormatError, got %v", err)
	}
}

func TestPlainTextRejectsBinary(t *testing.T) {
	_, err := PlainText{}.ExtractText([]byte{0x00, 0x01, 0x02, 0xff, 0xfe})
	var dfe *DocumentFormatError
	if !errors.As(err, &dfe) {
		t.Fatalf("expected DocumentFormatError, got %v", err)
	}
}

func TestPlainTextRejectsEmpty(t *testing.T) {
	if _, err := (PlainText{}).ExtractText(nil); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestPlainTextStripsControlRunes(t *testing.T) {
	got, err := PlainText{}.ExtractText([]byte("clean\x07text\tkeeps\ttabs"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "cleantext\tkeeps\ttabs" {
		t.Fatalf("unexpected: %q", got)
	}
}
