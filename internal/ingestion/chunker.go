package ingestion

import (
	"fmt"
	"strings"
)

// ChunkText splits text into overlapping character windows for retrieval.
// Window i+1 starts overlap characters before window i ends; each window is
// trimmed and blank windows are dropped. Deterministic and pure.
func ChunkText(text string, maxChars, overlap int) ([]string, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("maxChars must be positive, got %d", maxChars)
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > maxChars-1 {
		overlap = maxChars - 1
	}

	runes := []rune(text)
	length := len(runes)

	var chunks []string
	start := 0

	for start < length {
		end := start + maxChars
		if end > length {
			end = length
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == length {
			break
		}
		start = end - overlap
	}

	return chunks, nil
}
