package ai

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidChunking = errors.New("invalid chunking configuration")

// Chunker splits text into fixed size windows of runes that overlap by a
// fixed amount.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || size-overlap <= 0 {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk returns the trimmed, non-empty windows of text in source order. The
// slice position is the chunk index.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	total := len(runes)
	if total == 0 {
		return []string{}
	}
	chunks := make([]string, 0, total/(c.size-c.overlap)+1)
	start := 0
	for {
		end := min(start+c.size, total)
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			chunks = append(chunks, piece)
		}
		if end == total {
			break
		}
		start = end - c.overlap
	}
	return chunks
}
