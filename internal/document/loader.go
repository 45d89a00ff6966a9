// Package document loads uploaded PDF policies into page-addressed text.
package document

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadableDocument reports a PDF that could not be parsed or contains no
// extractable text.
var ErrUnreadableDocument = errors.New("unreadable document")

// Page is the text of a single PDF page.
type Page struct {
	Number int // 1-based
	Text   string
}

// Document is an uploaded policy after text extraction. It lives for the
// duration of one processing session; the raw bytes are not retained.
type Document struct {
	Filename    string
	Pages       []Page
	Fingerprint string // SHA-256 hex of the raw bytes, the index cache key
}

// PageCount returns the number of pages with extractable text.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Text returns the concatenated page text.
func (d *Document) Text() string {
	var b strings.Builder
	for i, p := range d.Pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// LoadPDF reads the entire content of r and extracts per-page plain text.
// The document fingerprint is computed over the raw bytes so that re-uploading
// unchanged content hits the persisted index instead of rebuilding it.
func LoadPDF(filename string, r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnreadableDocument)
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	sum := sha256.Sum256(raw)
	doc := &Document{
		Filename:    filename,
		Fingerprint: hex.EncodeToString(sum[:]),
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single damaged page should not lose the rest of the policy.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		doc.Pages = append(doc.Pages, Page{Number: i, Text: text})
	}

	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%w: no extractable text", ErrUnreadableDocument)
	}
	return doc, nil
}
