package sqlite

import (
	"fmt"

	"github.com/mortgage-agent/backend/internal/storage/models"
)

func (c *Client) InsertDocument(doc *models.Document) error {
	query := `
		INSERT INTO documents (doc_id, title, page_title, source_name, source_url, source_domain,
			jurisdiction, published_date, retrieved_date, corpus_version, content_type, is_approved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	approved := 0
	if doc.IsApproved {
		approved = 1
	}

	_, err := c.db.Exec(
		query,
		doc.DocID,
		doc.Title,
		nullable(doc.PageTitle),
		doc.SourceName,
		nullable(doc.SourceURL),
		nullable(doc.SourceDomain),
		doc.Jurisdiction,
		nullable(doc.PublishedDate),
		doc.RetrievedDate,
		doc.CorpusVersion,
		doc.ContentType,
		approved,
	)

	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return nil
}

func (c *Client) CountDocuments() (int, error) {
	var count int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// DeleteAllDocuments clears both documents and their chunks. Ingestion is a
// full corpus replace, never an incremental merge.
func (c *Client) DeleteAllDocuments() error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM documents"); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit corpus reset: %w", err)
	}
	return nil
}

// nullable maps "" to NULL so optional header fields stay distinguishable
// from empty strings in the schema.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
