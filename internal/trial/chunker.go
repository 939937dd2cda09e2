package trial

import (
	"errors"
	"strings"
)

// ErrEmptyInput is returned when a document has no extractable text after
// normalization. It is fatal: there is nothing to run the pipeline on.
var ErrEmptyInput = errors.New("no extractable text in document")

const (
	DefaultMaxChars      = 10000
	DefaultOverlapChars  = 500
	DefaultMinChunkChars = 200
)

type ChunkOptions struct {
	// MaxChars bounds the payload of one extraction call.
	MaxChars int
	// OverlapChars is the redundancy window: each chunk after the first
	// begins this many characters before the previous chunk's end, so no
	// clinical fact is fully confined to a chunk boundary.
	OverlapChars int
	// MinChunkChars folds a pathologically small trailing chunk into its
	// predecessor.
	MinChunkChars int
}

func (o *ChunkOptions) applyDefaults() {
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}
	if o.OverlapChars < 0 {
		o.OverlapChars = 0
	}
	if o.OverlapChars == 0 {
		o.OverlapChars = DefaultOverlapChars
	}
	if o.OverlapChars >= o.MaxChars {
		o.OverlapChars = o.MaxChars / 4
	}
	if o.MinChunkChars <= 0 {
		o.MinChunkChars = DefaultMinChunkChars
	}
}

// NormalizeText canonicalizes line endings and trims surrounding whitespace.
// Chunk ranges index into this normalized form.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

// Chunk splits normalized document text into bounded, slightly overlapping
// segments. Splits prefer paragraph then sentence boundaries within MaxChars;
// when no boundary exists a hard cut is made. The union of the returned ranges
// covers the whole normalized text with no gap.
func Chunk(text string, opts ChunkOptions) ([]TextChunk, error) {
	opts.applyDefaults()
	text = NormalizeText(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	var chunks []TextChunk
	start := 0
	for start < len(text) {
		end := start + opts.MaxChars
		if end >= len(text) {
			end = len(text)
		} else {
			end = splitPoint(text, start, end)
		}
		chunks = append(chunks, TextChunk{
			Index: len(chunks),
			Text:  text[start:end],
			Start: start,
			End:   end,
		})
		if end == len(text) {
			break
		}
		next := end - opts.OverlapChars
		if next <= start {
			// Overlap would stall progress on a short chunk.
			next = end
		}
		start = next
	}

	// Fold a tiny trailing chunk into its predecessor rather than sending a
	// fragment to the extraction service.
	if n := len(chunks); n > 1 && len(chunks[n-1].Text) < opts.MinChunkChars {
		prev := &chunks[n-2]
		prev.End = chunks[n-1].End
		prev.Text = text[prev.Start:prev.End]
		chunks = chunks[:n-1]
	}
	return chunks, nil
}

// splitPoint finds the cut position for a chunk starting at start with hard
// limit at limit. Boundaries in the back half of the window are preferred so
// chunks stay reasonably sized.
func splitPoint(text string, start, limit int) int {
	window := text[start:limit]
	floor := len(window) / 2

	if i := strings.LastIndex(window, "\n\n"); i > floor {
		return start + i + 2
	}
	for _, sep := range []string{". ", ".\n", "! ", "? "} {
		if i := strings.LastIndex(window, sep); i > floor {
			return start + i + len(sep)
		}
	}
	return limit
}
