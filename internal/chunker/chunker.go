// Package chunker splits extracted document text into overlapping chunks
// sized for embedding and retrieval.
package chunker

import (
	"strings"
)

const (
	// DefaultSize and DefaultOverlap are measured in characters.
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// defaultSeparators are tried in order; the empty string is the hard-cut
// fallback when no natural break exists.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter produces chunks of at most Size characters with Overlap characters
// shared between consecutive chunks, preferring paragraph, line, and word
// boundaries over hard cuts. Splitting is deterministic for a fixed input.
type Splitter struct {
	Size    int
	Overlap int
}

// New returns a Splitter with the given policy. Non-positive size or a
// negative/oversized overlap falls back to the defaults.
func New(size, overlap int) Splitter {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return Splitter{Size: size, Overlap: overlap}
}

// Split breaks text into chunks according to the splitter's policy.
// Whitespace-only input yields no chunks.
func (s Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, defaultSeparators)
}

// SplitTexts splits each text independently and concatenates the results,
// preserving input order. Page segments are never merged across boundaries.
func (s Splitter) SplitTexts(texts []string) []string {
	var chunks []string
	for _, t := range texts {
		chunks = append(chunks, s.Split(t)...)
	}
	return chunks
}

func (s Splitter) split(text string, separators []string) []string {
	// Pick the first separator that actually occurs in the text.
	sep := separators[len(separators)-1]
	var remaining []string
	for i, candidate := range separators {
		if candidate == "" {
			sep = ""
			remaining = nil
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			remaining = separators[i+1:]
			break
		}
	}

	if sep == "" {
		return s.hardSplit(text)
	}

	var chunks []string
	var fitting []string
	for _, part := range strings.Split(text, sep) {
		if part == "" {
			continue
		}
		if runeLen(part) <= s.Size {
			fitting = append(fitting, part)
			continue
		}
		// Oversized part: flush what fits, then recurse with finer separators.
		chunks = append(chunks, s.merge(fitting, sep)...)
		fitting = nil
		if len(remaining) == 0 {
			chunks = append(chunks, s.hardSplit(part)...)
		} else {
			chunks = append(chunks, s.split(part, remaining)...)
		}
	}
	chunks = append(chunks, s.merge(fitting, sep)...)
	return chunks
}

// merge greedily joins parts with sep into chunks of at most Size characters,
// carrying a tail of at most Overlap characters into the next chunk.
func (s Splitter) merge(parts []string, sep string) []string {
	if len(parts) == 0 {
		return nil
	}

	sepLen := runeLen(sep)
	var chunks []string
	var current []string
	total := 0

	addLen := func(part string) int {
		n := runeLen(part)
		if len(current) > 0 {
			n += sepLen
		}
		return n
	}

	for _, part := range parts {
		if len(current) > 0 && total+runeLen(part)+sepLen > s.Size {
			if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			// Drop leading parts until the carried tail fits within the
			// overlap and leaves room for the incoming part.
			for len(current) > 0 && (total > s.Overlap || total+runeLen(part)+sepLen > s.Size) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		total += addLen(part)
		current = append(current, part)
	}

	if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// hardSplit cuts text into fixed windows when no separator is available.
func (s Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	if len(runes) <= s.Size {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	stride := s.Size - s.Overlap
	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + s.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func runeLen(s string) int {
	return len([]rune(s))
}
