// Package chunker splits text into overlapping fixed-size windows for
// vector indexing.
package chunker

import (
	"fmt"
	"strings"
)

const (
	// DefaultChunkSize is the default window size in characters.
	DefaultChunkSize = 512

	// DefaultOverlap is the default overlap between consecutive windows.
	DefaultOverlap = 64
)

// Chunk splits text into consecutive windows of chunkSize characters, each
// window starting overlap characters before the previous one ended. The last
// chunk may be shorter than chunkSize. Input is trimmed first; empty input
// yields no chunks.
//
// overlap must be non-negative and strictly smaller than chunkSize, otherwise
// the window start would not advance.
func Chunk(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunker: chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("chunker: overlap must be in [0, %d), got %d", chunkSize, overlap)
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		// A window that reached the end is the final chunk; only it may be
		// shorter than chunkSize.
		if end == len(runes) {
			break
		}
		start += chunkSize - overlap
	}
	return chunks, nil
}
