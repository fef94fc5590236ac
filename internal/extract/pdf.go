// Package extract turns uploaded PDF files into ordered text segments.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a PDF parses but contains no extractable text.
var ErrNoText = errors.New("no text extracted from pdf")

// Segment is the text of one page, in page order.
type Segment struct {
	Page int
	Text string
}

// Text extracts per-page text segments from the PDF at path. Pages that fail
// to decode are skipped; the whole call fails only when the file is unreadable,
// not a valid PDF, or yields no text at all.
func Text(path string) ([]Segment, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var segments []Segment
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Page: i, Text: text})
	}

	if len(segments) == 0 {
		return nil, ErrNoText
	}
	return segments, nil
}
