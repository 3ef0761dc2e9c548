package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildContext(t *testing.T) {
	sources := []Source{
		{
			ID:           "S1",
			PageTitle:    "Fixed Rates",
			SourceURL:    "https://example.gov/fixed",
			Jurisdiction: "CA",
			Excerpts: []Excerpt{
				{ChunkID: "a-0", Score: 0.9, Text: "Fixed rates stay constant."},
				{ChunkID: "a-1", Score: 0.8, Text: "  "},
			},
		},
		{
			ID:    "S2",
			Title: "Variable Rates",
			Excerpts: []Excerpt{
				{ChunkID: "b-0", Score: 0.7, Text: "Variable rates can change."},
			},
		},
	}

	block := buildContext(sources)

	assert.Contains(t, block, "[S1] Fixed rates stay constant.")
	assert.Contains(t, block, "Source: Fixed Rates | https://example.gov/fixed | CA")

	// Blank excerpts are skipped.
	assert.Equal(t, 1, strings.Count(block, "[S1]"))

	// Missing URL and jurisdiction get placeholders, and Title backs up a
	// missing PageTitle.
	assert.Contains(t, block, "[S2] Variable rates can change.")
	assert.Contains(t, block, "Source: Variable Rates | URL unavailable | N/A")
}

func TestBuildContextEmpty(t *testing.T) {
	assert.Empty(t, buildContext(nil))
	assert.Empty(t, buildContext([]Source{{ID: "S1"}}))
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := buildUserPrompt("[S1] context text", "What is an escrow account?")

	assert.Contains(t, prompt, "Context:\n[S1] context text")
	assert.Contains(t, prompt, "User question:\nWhat is an escrow account?")
	assert.Contains(t, prompt, "only the provided context")
}
