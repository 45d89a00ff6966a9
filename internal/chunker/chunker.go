// Package chunker splits extracted policy text into overlapping segments
// sized for embedding and retrieval.
package chunker

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/coverscan/policy-analyst/internal/document"
)

// ErrBadChunkParams reports an unusable size/overlap combination.
var ErrBadChunkParams = errors.New("bad chunk parameters")

// Chunk is a bounded text segment, the unit of retrieval.
type Chunk struct {
	Text       string
	SourcePage int // 1-based PDF page the segment came from
	Index      int // position in document order (0, 1, 2...)
}

// Chunker splits text into segments of at most size runes, with consecutive
// segments sharing overlap runes. Cut points prefer semantic boundaries:
// paragraph break, line break, sentence-ending punctuation, whitespace, then
// a hard rune cut, falling down the list only when the preferred boundary
// would not fit within the size budget.
type Chunker struct {
	size    int
	overlap int
}

// New validates the parameters and returns a Chunker.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrBadChunkParams, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, size %d)", ErrBadChunkParams, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split chunks each page independently so every chunk carries an exact source
// page, assigning document-order indices across pages. Every character of the
// input appears in at least one chunk.
func (c *Chunker) Split(pages []document.Page) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		for _, text := range c.SplitText(page.Text) {
			chunks = append(chunks, Chunk{
				Text:       text,
				SourcePage: page.Number,
				Index:      len(chunks),
			})
		}
	}
	return chunks
}

// SplitText splits a single text into overlapping segments.
func (c *Chunker) SplitText(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var segments []string
	start := 0
	for {
		end := start + c.size
		if end >= n {
			segments = append(segments, string(runes[start:n]))
			break
		}
		cut := c.findCut(runes, start, end)
		segments = append(segments, string(runes[start:cut]))
		start = cut - c.overlap
	}
	return segments
}

// findCut picks the cut point in (start, end]. The cut must land after
// start+overlap so the next segment makes forward progress.
func (c *Chunker) findCut(runes []rune, start, end int) int {
	lo := start + c.overlap + 1

	// Paragraph break: cut after a blank line.
	for j := end - 1; j >= lo; j-- {
		if runes[j-1] == '\n' && j >= 2 && runes[j-2] == '\n' {
			return j
		}
	}
	// Line break.
	for j := end - 1; j >= lo; j-- {
		if runes[j-1] == '\n' {
			return j
		}
	}
	// Sentence-ending punctuation followed by whitespace.
	for j := end - 1; j >= lo; j-- {
		if isSentenceEnd(runes[j-1]) && j < len(runes) && unicode.IsSpace(runes[j]) {
			return j
		}
	}
	// Any whitespace.
	for j := end - 1; j >= lo; j-- {
		if unicode.IsSpace(runes[j-1]) {
			return j
		}
	}
	// Unbreakable run: hard cut at the size budget.
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
