package chunker

import (
	"strings"
	"testing"
)

func TestSplitEmpty(t *testing.T) {
	s := New(1000, 200)
	if got := s.Split(""); got != nil {
		t.Errorf("Split(\"\") = %v, want nil", got)
	}
	if got := s.Split("   \n\n  "); got != nil {
		t.Errorf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplitShortText(t *testing.T) {
	s := New(1000, 200)
	chunks := s.Split("A short paragraph.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "A short paragraph." {
		t.Errorf("chunk = %q", chunks[0])
	}
}

func TestSplitRespectsSize(t *testing.T) {
	s := New(100, 20)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)

	for i, chunk := range s.Split(text) {
		if n := len([]rune(chunk)); n > 100 {
			t.Errorf("chunk %d has %d chars, exceeds size 100", i, n)
		}
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	s := New(100, 20)
	para1 := strings.Repeat("aaaa ", 15) // ~75 chars
	para2 := strings.Repeat("bbbb ", 15)
	chunks := s.Split(strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2))

	if len(chunks) != 2 {
		t.Fatalf("expected paragraph-aligned chunks, got %d: %v", len(chunks), chunks)
	}
	if strings.Contains(chunks[0], "bbbb") {
		t.Errorf("first chunk crosses the paragraph break: %q", chunks[0])
	}
}

func TestSplitDeterministic(t *testing.T) {
	s := New(1000, 200)
	text := strings.Repeat("Sentence one goes here. Sentence two follows it.\n", 200)

	first := s.Split(text)
	second := s.Split(text)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitOverlap(t *testing.T) {
	s := New(100, 30)
	text := strings.Repeat("word ", 200)
	chunks := s.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// Consecutive word-boundary chunks share trailing/leading content.
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		tail := prevWords[len(prevWords)-1]
		if !strings.Contains(chunks[i], tail) {
			t.Errorf("chunk %d does not overlap with chunk %d", i, i-1)
		}
	}
}

func TestHardSplitNoSeparators(t *testing.T) {
	s := New(50, 10)
	text := strings.Repeat("x", 200)
	chunks := s.Split(text)

	if len(chunks) < 4 {
		t.Fatalf("expected hard-cut chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 50 {
			t.Errorf("chunk %d has %d chars, exceeds size 50", i, len(chunk))
		}
	}
	// Stride is size-overlap, so consecutive chunks repeat 10 chars.
	if !strings.HasPrefix(chunks[1], strings.Repeat("x", 10)) {
		t.Error("expected overlap in hard-cut chunks")
	}
}

func TestNewClampsPolicy(t *testing.T) {
	s := New(0, -5)
	if s.Size != DefaultSize || s.Overlap != DefaultOverlap {
		t.Errorf("New(0,-5) = %+v, want defaults", s)
	}

	s = New(100, 100)
	if s.Overlap >= s.Size {
		t.Errorf("overlap %d must be below size %d", s.Overlap, s.Size)
	}
}

func TestSplitTextsKeepsSegmentBoundaries(t *testing.T) {
	s := New(1000, 200)
	chunks := s.SplitTexts([]string{"page one text", "", "page two text"})
	want := []string{"page one text", "page two text"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}
