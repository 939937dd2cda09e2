// Package doctext is the seam to the document-to-text collaborator. The
// pipeline itself only consumes normalized text; how bytes become text (PDF
// parsing, OCR) lives behind the Extractor interface.
package doctext

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DocumentFormatError reports input bytes that cannot be decoded into text.
type DocumentFormatError struct {
	Reason string
}

func (e *DocumentFormatError) Error() string {
	return fmt.Sprintf("unsupported document format: %s", e.Reason)
}

type Extractor interface {
	ExtractText(doc []byte) (string, error)
}

// PlainText handles UTF-8 text and markdown documents. Binary formats are
// rejected so a misrouted PDF fails loudly instead of producing garbage
// chunks.
type PlainText struct{}

func (PlainText) ExtractText(doc []byte) (string, error) {
	if len(doc) == 0 {
		return "", &DocumentFormatError{Reason: "empty document"}
	}
	if bytes.HasPrefix(doc, []byte("%PDF-")) {
		return "", &DocumentFormatError{Reason: "PDF input requires the PDF extraction collaborator"}
	}
	if !utf8.Valid(doc) {
		return "", &DocumentFormatError{Reason: "not valid UTF-8 text"}
	}
	text := string(doc)
	if isMostlyControl(text) {
		return "", &DocumentFormatError{Reason: "binary content"}
	}
	return strings.Map(dropControl, text), nil
}

func isMostlyControl(s string) bool {
	if len(s) == 0 {
		return true
	}
	control := 0
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			control++
		}
	}
	return control*10 > len(s)
}

func dropControl(r rune) rune {
	if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
		return -1
	}
	return r
}
