package services

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkShortTextPassesThrough(t *testing.T) {
	c := NewChunker(800, 150, 100)

	text := "A short note about Go concurrency."
	chunks := c.Chunk(text)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("short text should pass through unchanged, got %q", chunks[0])
	}
}

func TestChunkLongTextSplitsWithOverlap(t *testing.T) {
	c := NewChunker(200, 50, 30)

	sentence := "The quick brown fox jumps over the lazy dog near the riverbank every single morning."
	text := strings.TrimSpace(strings.Repeat(sentence+" ", 10))

	chunks := c.Chunk(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for %d chars, got %d", len(text), len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) == 0 {
			t.Errorf("chunk %d is empty", i)
		}
		// Overlap can push a chunk past the limit by one sentence, but
		// not unboundedly.
		if len(chunk) > c.ChunkSize+len(sentence)+c.Overlap {
			t.Errorf("chunk %d length %d far exceeds limit", i, len(chunk))
		}
	}
}

func TestChunkOverlapCarriesTailForward(t *testing.T) {
	c := NewChunker(100, 40, 10)

	text := "First sentence ends here with words. Second sentence also carries meaning forward. Third sentence closes out the sample text nicely."
	chunks := c.Chunk(text)

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}

	// The second chunk must begin with the tail of the first.
	tail := strings.TrimSpace(chunks[0][len(chunks[0])-c.Overlap:])
	if !strings.HasPrefix(chunks[1], tail) {
		t.Errorf("chunk 1 %q does not start with overlap tail %q", chunks[1], tail)
	}
}

func TestChunkDropsRuntsUnlessEmpty(t *testing.T) {
	c := NewChunker(60, 0, 50)

	text := "A fairly long opening sentence with plenty of characters inside. Tiny end."
	chunks := c.Chunk(text)

	for _, chunk := range chunks {
		if len(chunk) < c.MinChunkSize {
			t.Errorf("runt chunk survived: %q (%d chars)", chunk, len(chunk))
		}
	}
	if len(chunks) == 0 {
		t.Fatal("chunking must never return zero chunks for non-empty input")
	}
}

func TestChunkNeverEmptyForNonEmptyInput(t *testing.T) {
	c := NewChunker(50, 10, 200)

	// Every produced chunk is under MinChunkSize; the original text must
	// come back whole.
	text := "Short one. Short two. Short three. Short four. Short five. Short six."
	chunks := c.Chunk(text)

	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("expected original text as fallback, got %v", chunks)
	}
}

func TestChunkOverlapCountsCharactersNotBytes(t *testing.T) {
	c := NewChunker(250, 41, 10)

	// Three-byte runes make any byte-indexed overlap land mid-rune.
	sentence := strings.Repeat("日本語", 20) + "."
	text := sentence + " " + sentence + " " + sentence

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, chunk)
		}
	}

	runes := []rune(chunks[0])
	overlap := strings.TrimSpace(string(runes[len(runes)-c.Overlap:]))
	if !strings.HasPrefix(chunks[1], overlap) {
		t.Errorf("chunk 1 missing %d-character overlap:\nwant prefix %q\ngot         %q", c.Overlap, overlap, chunks[1])
	}
}
