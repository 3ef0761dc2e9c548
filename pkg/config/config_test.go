package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 1200, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 150, cfg.Retrieval.ChunkOverlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.Retrieval.TopSources)
	assert.Equal(t, 10, cfg.Limits.QuestionsPerDay)
	assert.Equal(t, 10, cfg.Limits.QuestionsPerSession)
	assert.Equal(t, 500, cfg.Limits.CharsPerQuestion)
	assert.Equal(t, 60, cfg.RateLimit.WindowSeconds)
	assert.Equal(t, 30, cfg.RateLimit.MaxRequests)
	assert.True(t, cfg.Grounding.Strict)
	assert.True(t, cfg.Grounding.CitationsRequired)
	assert.False(t, cfg.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Retrieval: RetrievalConfig{ChunkSize: 1200, ChunkOverlap: 150},
		Limits:    LimitsConfig{HashSalt: "salt"},
	}
	assert.NoError(t, valid.Validate())

	t.Run("rejects non-positive chunk size", func(t *testing.T) {
		cfg := valid
		cfg.Retrieval.ChunkSize = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects negative overlap", func(t *testing.T) {
		cfg := valid
		cfg.Retrieval.ChunkOverlap = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects empty salt", func(t *testing.T) {
		cfg := valid
		cfg.Limits.HashSalt = ""
		assert.Error(t, cfg.Validate())
	})
}
