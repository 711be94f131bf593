package splitter

import (
	"strings"
	"testing"
)

func TestSplit_NoOverlap(t *testing.T) {
	s := NewSplitter(10, 0)
	text := strings.Repeat("a", 25)

	chunks, err := s.Split(text, "doc1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	wantLens := []int{10, 10, 5}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Fatalf("chunk %d: expected index %d, got %d", i, i, chunk.Index)
		}
		if chunk.DocumentID != "doc1" {
			t.Fatalf("chunk %d: expected document id doc1, got %q", i, chunk.DocumentID)
		}
		if len(chunk.Content) != wantLens[i] {
			t.Fatalf("chunk %d: expected length %d, got %d", i, wantLens[i], len(chunk.Content))
		}
		if chunk.ID == "" {
			t.Fatalf("chunk %d: expected non-empty id", i)
		}
	}
}

func TestSplit_Overlap(t *testing.T) {
	s := NewSplitter(5, 2)
	chunks, err := s.Split("abcdefghij", "doc1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	want := []string{"abcde", "defgh", "ghij"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Content != want[i] {
			t.Fatalf("chunk %d: expected %q, got %q", i, want[i], chunk.Content)
		}
	}

	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1].Content[len(chunks[i-1].Content)-2:]
		if !strings.HasPrefix(chunks[i].Content, tail) {
			t.Fatalf("chunk %d does not repeat the overlap %q of its predecessor", i, tail)
		}
	}
}

func TestSplit_ExactMultiple(t *testing.T) {
	s := NewSplitter(5, 0)
	chunks, err := s.Split("abcdefghij", "doc1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks without a trailing empty one, got %d", len(chunks))
	}
}

func TestSplit_EmptyText(t *testing.T) {
	s := NewSplitter(10, 0)
	chunks, err := s.Split("", "doc1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for empty text, got %d", len(chunks))
	}
	if chunks[0].Content != "" {
		t.Fatalf("expected empty content, got %q", chunks[0].Content)
	}
}

func TestSplit_ShortText(t *testing.T) {
	s := NewSplitter(100, 20)
	chunks, err := s.Split("hello", "doc1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "hello" {
		t.Fatalf("expected full text, got %q", chunks[0].Content)
	}
}

func TestSplit_MultibyteRunes(t *testing.T) {
	s := NewSplitter(3, 0)
	chunks, err := s.Split("日本語テキスト", "doc1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	want := []string{"日本語", "テキス", "ト"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Content != want[i] {
			t.Fatalf("chunk %d: expected %q, got %q", i, want[i], chunk.Content)
		}
	}
}

func TestNewSplitter_OverlapClamped(t *testing.T) {
	s := NewSplitter(3, 5)
	chunks, err := s.Split("abcdef", "doc1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least 1 chunk")
	}
	if chunks[0].Content != "abc" {
		t.Fatalf("expected first chunk abc, got %q", chunks[0].Content)
	}
}

func TestNewSplitter_PanicsOnInvalidSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for size 0")
		}
	}()
	NewSplitter(0, 0)
}
