package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	t.Run("empty text yields no chunks", func(t *testing.T) {
		chunks, err := ChunkText("", 100, 10)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("short text yields single chunk", func(t *testing.T) {
		chunks, err := ChunkText("hello world", 100, 10)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "hello world", chunks[0])
	})

	t.Run("invalid max chars", func(t *testing.T) {
		_, err := ChunkText("hello", 0, 0)
		assert.Error(t, err)

		_, err = ChunkText("hello", -5, 0)
		assert.Error(t, err)
	})

	t.Run("windows overlap by the configured amount", func(t *testing.T) {
		text := "abcdefghij"
		chunks, err := ChunkText(text, 4, 2)
		require.NoError(t, err)

		// Windows start at 0, 2, 4, 6, 8.
		assert.Equal(t, []string{"abcd", "cdef", "efgh", "ghij"}, chunks)
	})

	t.Run("overlap clamped below window size", func(t *testing.T) {
		chunks, err := ChunkText("abcdef", 2, 10)
		require.NoError(t, err)

		// Clamped overlap of 1 advances one rune per window.
		assert.Equal(t, []string{"ab", "bc", "cd", "de", "ef"}, chunks)
	})

	t.Run("negative overlap treated as zero", func(t *testing.T) {
		chunks, err := ChunkText("abcdef", 3, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"abc", "def"}, chunks)
	})

	t.Run("blank windows dropped", func(t *testing.T) {
		text := "ab" + strings.Repeat(" ", 10) + "cd"
		chunks, err := ChunkText(text, 4, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"ab", "cd"}, chunks)
	})

	t.Run("chunks are trimmed", func(t *testing.T) {
		chunks, err := ChunkText("  ab  ", 6, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"ab"}, chunks)
	})

	t.Run("multibyte runes are not split", func(t *testing.T) {
		text := strings.Repeat("é", 7)
		chunks, err := ChunkText(text, 3, 1)
		require.NoError(t, err)
		for _, chunk := range chunks {
			assert.True(t, len([]rune(chunk)) <= 3)
		}
		assert.Equal(t, "ééé", chunks[0])
	})

	t.Run("final partial window kept", func(t *testing.T) {
		chunks, err := ChunkText("abcdefg", 3, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"abc", "def", "g"}, chunks)
	})
}
