package flat

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuild(t *testing.T) {
	t.Run("rejects mismatched dimensions", func(t *testing.T) {
		ix := New()
		err := ix.Rebuild([][]float32{{1, 0}, {1, 0, 0}})
		assert.Error(t, err)
	})

	t.Run("rejects empty vectors", func(t *testing.T) {
		ix := New()
		err := ix.Rebuild([][]float32{{}})
		assert.Error(t, err)
	})

	t.Run("copies input", func(t *testing.T) {
		vec := []float32{1, 0}
		ix := New()
		require.NoError(t, ix.Rebuild([][]float32{vec}))

		vec[0] = 99
		hits, err := ix.Search([]float32{1, 0}, 1)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-6)
	})
}

func TestSearch(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Rebuild([][]float32{
		{1, 0},     // row 0
		{0, 1},     // row 1
		{0.6, 0.8}, // row 2
	}))

	t.Run("orders by descending score", func(t *testing.T) {
		hits, err := ix.Search([]float32{0, 1}, 3)
		require.NoError(t, err)
		require.Len(t, hits, 3)

		assert.Equal(t, 1, hits[0].Row)
		assert.Equal(t, 2, hits[1].Row)
		assert.Equal(t, 0, hits[2].Row)
	})

	t.Run("ties broken by lowest row", func(t *testing.T) {
		tied := New()
		require.NoError(t, tied.Rebuild([][]float32{{1, 0}, {1, 0}, {1, 0}}))

		hits, err := tied.Search([]float32{1, 0}, 3)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, []int{hits[0].Row, hits[1].Row, hits[2].Row})
	})

	t.Run("pads when k exceeds size", func(t *testing.T) {
		hits, err := ix.Search([]float32{1, 0}, 5)
		require.NoError(t, err)
		require.Len(t, hits, 5)

		assert.Equal(t, -1, hits[3].Row)
		assert.Equal(t, -1, hits[4].Row)
	})

	t.Run("truncates to k", func(t *testing.T) {
		hits, err := ix.Search([]float32{1, 0}, 2)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("rejects non-positive k", func(t *testing.T) {
		_, err := ix.Search([]float32{1, 0}, 0)
		assert.Error(t, err)
	})

	t.Run("rejects dimension mismatch", func(t *testing.T) {
		_, err := ix.Search([]float32{1, 0, 0}, 1)
		assert.Error(t, err)
	})

	t.Run("empty index returns only padding", func(t *testing.T) {
		empty := New()
		hits, err := empty.Search([]float32{1, 2, 3}, 2)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, -1, hits[0].Row)
		assert.Equal(t, -1, hits[1].Row)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("scales to unit length", func(t *testing.T) {
		vec := []float32{3, 4}
		Normalize(vec)

		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
		assert.InDelta(t, 0.6, float64(vec[0]), 1e-6)
		assert.InDelta(t, 0.8, float64(vec[1]), 1e-6)
	})

	t.Run("zero vector untouched", func(t *testing.T) {
		vec := []float32{0, 0, 0}
		Normalize(vec)
		assert.Equal(t, []float32{0, 0, 0}, vec)
	})
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.vec")

	vectors := [][]float32{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
	}

	ix := New()
	require.NoError(t, ix.Rebuild(vectors))
	require.NoError(t, ix.Save(path))

	assert.True(t, Exists(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, 3, loaded.Dimension())

	query := []float32{0.4, 0.5, 0.6}
	want, err := ix.Search(query, 2)
	require.NoError(t, err)
	got, err := loaded.Search(query, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveLoadEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.vec")

	ix := New()
	require.NoError(t, ix.Rebuild(nil))
	require.NoError(t, ix.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.vec"))
	assert.Error(t, err)
	assert.False(t, Exists(filepath.Join(t.TempDir(), "absent.vec")))
}
