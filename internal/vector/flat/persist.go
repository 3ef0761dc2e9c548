package flat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File format: 4-byte magic, uint32 dimension, uint32 vector count, then
// count*dimension little-endian float32 values in row order.
var fileMagic = [4]byte{'F', 'V', 'I', '1'}

// Save writes the index to path via a rename, so readers never observe a
// partially written file.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(fileMagic[:]); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write index header: %w", err)
	}

	header := []uint32{uint32(ix.dim), uint32(len(ix.vectors))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write index header: %w", err)
		}
	}

	for _, vec := range ix.vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write index vectors: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close index file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}

	return nil
}

// Load reads an index file written by Save. The caller is responsible for
// treating a missing file as "no corpus ingested yet" via Exists.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}
	if magic != fileMagic {
		return nil, fmt.Errorf("not a vector index file: %s", path)
	}

	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("failed to read index dimension: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read index count: %w", err)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("failed to read vector %d: %w", i, err)
		}
		vectors[i] = vec
	}

	ix := New()
	if count > 0 {
		if err := ix.Rebuild(vectors); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

// Exists reports whether an index artifact is present at path. Absence is a
// normal application state, not an error.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
