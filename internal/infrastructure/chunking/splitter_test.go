package chunking

import (
	"strings"
	"testing"
)

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(100, 20)
	if got := s.Split(""); got != nil {
		t.Fatalf("Split(\"\") = %v, want nil", got)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(100, 20)
	got := s.Split("um texto curto")
	if len(got) != 1 || got[0] != "um texto curto" {
		t.Fatalf("unexpected chunks: %v", got)
	}
}

func TestSplitOverlapsConsecutiveChunks(t *testing.T) {
	s := NewSplitter(10, 4)
	text := "abcdefghijklmnopqrstuvwxyz"
	got := s.Split(text)

	if len(got) < 3 {
		t.Fatalf("expected at least 3 chunks, got %v", got)
	}
	// Step is chunkSize-overlap, so each chunk restarts 4 runes back.
	if got[0] != "abcdefghij" || got[1] != "ghijklmnop" {
		t.Fatalf("unexpected chunk boundaries: %v", got)
	}
}

func TestSplitCountsRunesNotBytes(t *testing.T) {
	s := NewSplitter(5, 0)
	got := s.Split("éééééééééé")
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks of 5 runes, got %v", got)
	}
	for _, chunk := range got {
		if n := len([]rune(chunk)); n != 5 {
			t.Fatalf("chunk %q has %d runes", chunk, n)
		}
	}
}

func TestNewSplitterClampsInvalidOverlap(t *testing.T) {
	s := NewSplitter(100, 100)
	if s.Overlap >= s.ChunkSize {
		t.Fatalf("overlap %d not clamped below chunk size %d", s.Overlap, s.ChunkSize)
	}
}

func TestSplitTrimsWhitespaceChunks(t *testing.T) {
	s := NewSplitter(10, 0)
	got := s.Split("abc       " + strings.Repeat(" ", 10) + "def")
	for _, chunk := range got {
		if strings.TrimSpace(chunk) == "" {
			t.Fatalf("whitespace-only chunk survived: %q", got)
		}
	}
}
