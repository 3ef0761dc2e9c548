package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mortgage-agent/backend/internal/storage/sqlite"
	"github.com/mortgage-agent/backend/internal/vector/flat"
)

// fakeEmbedder returns one deterministic vector per input, recording the
// batches it sees.
type fakeEmbedder struct {
	batches [][]string
	err     error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.batches = append(f.batches, texts)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i + 1), 1, 0}
	}
	return vectors, nil
}

func newTestProcessor(t *testing.T, embedder *fakeEmbedder, chunkSize, overlap int) (*Processor, *sqlite.Client, string) {
	t.Helper()

	dir := t.TempDir()
	corpusDir := filepath.Join(dir, "corpus")
	indexPath := filepath.Join(dir, "index.vec")

	db, err := sqlite.NewClient(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	processor := NewProcessor(db, embedder, Config{
		CorpusPath:    corpusDir,
		IndexPath:     indexPath,
		CorpusVersion: "test",
		ChunkSize:     chunkSize,
		ChunkOverlap:  overlap,
	})

	return processor, db, corpusDir
}

func TestIngestCorpus(t *testing.T) {
	embedder := &fakeEmbedder{}
	processor, db, corpusDir := newTestProcessor(t, embedder, 40, 0)

	writeCorpusFile(t, mkdir(t, corpusDir), "a_first.txt", `page_title: First Doc
source_url: https://example.gov/first
---
`+"This body is long enough to produce more than one chunk in this test run.")

	writeCorpusFile(t, corpusDir, "b_second.txt", `page_title: Second Doc
---
Short body.`)

	result, err := processor.IngestCorpus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.DocumentsIngested)
	assert.Equal(t, 3, result.ChunksIndexed)

	docs, err := db.CountDocuments()
	require.NoError(t, err)
	assert.Equal(t, 2, docs)

	chunks, err := db.CountChunks()
	require.NoError(t, err)
	assert.Equal(t, 3, chunks)

	// One global embedding batch for the whole corpus.
	require.Len(t, embedder.batches, 1)
	batch := embedder.batches[0]
	require.Len(t, batch, 3)

	// embedding_index must follow batch order exactly.
	for i, text := range batch {
		hit, err := db.GetChunkByEmbeddingIndex(i)
		require.NoError(t, err)
		require.NotNil(t, hit)
		assert.Equal(t, text, hit.Text)
	}

	index, err := flat.Load(result.IndexPath)
	require.NoError(t, err)
	assert.Equal(t, 3, index.Len())
	assert.Equal(t, 3, index.Dimension())
}

func TestIngestCorpusEmptyDirectory(t *testing.T) {
	embedder := &fakeEmbedder{}
	processor, db, _ := newTestProcessor(t, embedder, 40, 0)

	result, err := processor.IngestCorpus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.DocumentsIngested)
	assert.Equal(t, 0, result.ChunksIndexed)
	assert.Empty(t, embedder.batches)

	docs, err := db.CountDocuments()
	require.NoError(t, err)
	assert.Equal(t, 0, docs)
}

func TestIngestCorpusBodylessDocumentsRemoveStaleIndex(t *testing.T) {
	embedder := &fakeEmbedder{}
	processor, db, corpusDir := newTestProcessor(t, embedder, 40, 0)

	writeCorpusFile(t, mkdir(t, corpusDir), "full.txt", "page_title: Full\n---\nSome body text.")

	result, err := processor.IngestCorpus(context.Background())
	require.NoError(t, err)
	require.True(t, flat.Exists(result.IndexPath))

	// Replace the corpus with a header-only file; the old index must go.
	writeCorpusFile(t, corpusDir, "full.txt", "page_title: Full\n---\n")

	result, err = processor.IngestCorpus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.DocumentsIngested)
	assert.Equal(t, 0, result.ChunksIndexed)
	assert.False(t, flat.Exists(result.IndexPath))

	chunks, err := db.CountChunks()
	require.NoError(t, err)
	assert.Equal(t, 0, chunks)
}

func TestIngestCorpusEmbeddingFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("embedding service down")}
	processor, db, corpusDir := newTestProcessor(t, embedder, 40, 0)

	writeCorpusFile(t, mkdir(t, corpusDir), "doc.txt", "page_title: Doc\n---\nBody text here.")

	_, err := processor.IngestCorpus(context.Background())
	require.Error(t, err)

	// No chunks were written, and no index was built.
	chunks, dbErr := db.CountChunks()
	require.NoError(t, dbErr)
	assert.Equal(t, 0, chunks)
}

func TestIngestCorpusReplacesPreviousRun(t *testing.T) {
	embedder := &fakeEmbedder{}
	processor, db, corpusDir := newTestProcessor(t, embedder, 40, 0)

	writeCorpusFile(t, mkdir(t, corpusDir), "a_first.txt", `page_title: First Doc
---
`+"This body is long enough to produce more than one chunk in this test run.")

	writeCorpusFile(t, corpusDir, "b_second.txt", `page_title: Second Doc
---
Short body.`)

	// indexedPairs walks the dense embedding indexes and records which
	// (title, text) pair sits at each row.
	indexedPairs := func() [][2]string {
		count, err := db.CountChunks()
		require.NoError(t, err)

		pairs := make([][2]string, 0, count)
		for i := 0; i < count; i++ {
			hit, err := db.GetChunkByEmbeddingIndex(i)
			require.NoError(t, err)
			require.NotNil(t, hit)
			pairs = append(pairs, [2]string{hit.Title, hit.Text})
		}
		return pairs
	}

	_, err := processor.IngestCorpus(context.Background())
	require.NoError(t, err)
	firstRun := indexedPairs()
	require.Len(t, firstRun, 3)

	result, err := processor.IngestCorpus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.DocumentsIngested)

	docs, err := db.CountDocuments()
	require.NoError(t, err)
	assert.Equal(t, 2, docs)

	// Re-ingesting the same corpus yields the same indexed content, not
	// duplicates appended to the first run.
	secondRun := indexedPairs()
	assert.ElementsMatch(t, firstRun, secondRun)
}

func mkdir(t *testing.T, dir string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	return dir
}
