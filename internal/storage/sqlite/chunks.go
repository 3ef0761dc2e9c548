package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mortgage-agent/backend/internal/storage/models"
)

// InsertChunks writes all chunk rows of an ingestion run in one transaction,
// so the embedding_index column is either fully populated or untouched.
func (c *Client) InsertChunks(chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (chunk_id, doc_id, chunk_index, text, embedding_index)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.Exec(chunk.ChunkID, chunk.DocID, chunk.ChunkIndex, chunk.Text, chunk.EmbeddingIndex); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// GetChunkByEmbeddingIndex joins a search hit's row offset back to its chunk
// text and owning document. Returns (nil, nil) when the row has no chunk,
// which indicates the index and metadata have diverged.
func (c *Client) GetChunkByEmbeddingIndex(embeddingIndex int) (*models.ChunkHit, error) {
	query := `
		SELECT c.chunk_id, c.doc_id, c.text,
			d.title, COALESCE(d.page_title, ''), COALESCE(d.jurisdiction, ''),
			COALESCE(d.source_url, ''), d.source_name
		FROM chunks c
		JOIN documents d ON c.doc_id = d.doc_id
		WHERE c.embedding_index = ?
	`

	var hit models.ChunkHit
	err := c.db.QueryRow(query, embeddingIndex).Scan(
		&hit.ChunkID,
		&hit.DocID,
		&hit.Text,
		&hit.Title,
		&hit.PageTitle,
		&hit.Jurisdiction,
		&hit.SourceURL,
		&hit.SourceName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk for embedding index %d: %w", embeddingIndex, err)
	}

	return &hit, nil
}

func (c *Client) CountChunks() (int, error) {
	var count int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}
