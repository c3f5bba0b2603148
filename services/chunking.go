package services

import (
	"regexp"
	"strings"
)

// Chunker splits text into overlapping chunks along sentence boundaries.
type Chunker struct {
	ChunkSize    int
	Overlap      int
	MinChunkSize int
}

func NewChunker(chunkSize, overlap, minChunkSize int) *Chunker {
	return &Chunker{ChunkSize: chunkSize, Overlap: overlap, MinChunkSize: minChunkSize}
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+\s+`)

// splitSentences splits after terminal punctuation, keeping the
// punctuation attached to the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceSplitRe.FindAllStringIndex(text, -1) {
		// Keep the punctuation run, drop the trailing whitespace.
		end := loc[1]
		for end > loc[0] && (text[end-1] == ' ' || text[end-1] == '\t' || text[end-1] == '\n' || text[end-1] == '\r') {
			end--
		}
		sentences = append(sentences, text[last:end])
		last = loc[1]
	}
	if last < len(text) {
		sentences = append(sentences, text[last:])
	}
	if len(sentences) == 0 {
		sentences = append(sentences, text)
	}
	return sentences
}

// Chunk splits text into chunks of at most ChunkSize characters with
// Overlap characters carried between consecutive chunks. Text at or
// under ChunkSize passes through untouched. Non-empty input always
// yields at least one chunk.
func (c *Chunker) Chunk(text string) []string {
	if len(text) <= c.ChunkSize {
		return []string{text}
	}

	var chunks []string
	sentences := splitSentences(text)
	current := ""

	for _, sentence := range sentences {
		if len(current)+len(sentence) > c.ChunkSize && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))

			// Overlap counts characters, not bytes; slicing mid-rune
			// would corrupt multi-byte text.
			if runes := []rune(current); c.Overlap > 0 && len(runes) >= c.Overlap {
				overlapText := strings.TrimSpace(string(runes[len(runes)-c.Overlap:]))
				current = overlapText + " " + sentence
			} else {
				current = sentence
			}
		} else {
			if current != "" {
				current += " " + sentence
			} else {
				current = sentence
			}
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	// Runt chunks add noise to retrieval; drop them unless that would
	// leave nothing.
	if len(chunks) > 1 {
		kept := chunks[:0]
		for _, chunk := range chunks {
			if len(chunk) >= c.MinChunkSize {
				kept = append(kept, chunk)
			}
		}
		chunks = kept
	}

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
