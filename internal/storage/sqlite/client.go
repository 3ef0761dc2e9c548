package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mortgage-agent/backend/pkg/logger"
)

// Client owns the metadata database: documents and chunks written by
// ingestion, sessions and daily usage mutated by the quota tracker, plus the
// event log and feedback rows.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	// _txlock=immediate makes every transaction take the write lock at BEGIN,
	// which the quota check-and-increment depends on under concurrency.
	db, err := sql.Open("sqlite3", dbPath+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Quota check-and-increment runs read-then-write transactions from
	// concurrent request handlers; a busy timeout keeps them queued instead
	// of failing immediately on lock contention.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		doc_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		page_title TEXT,
		source_name TEXT NOT NULL,
		source_url TEXT,
		source_domain TEXT,
		jurisdiction TEXT,
		published_date TEXT,
		retrieved_date TEXT NOT NULL,
		corpus_version TEXT NOT NULL,
		content_type TEXT,
		is_approved INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding_index INTEGER NOT NULL,
		FOREIGN KEY (doc_id) REFERENCES documents(doc_id)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks(embedding_index);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		user_id_hash TEXT NOT NULL,
		created_at TEXT NOT NULL,
		question_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS daily_usage (
		usage_date TEXT NOT NULL,
		user_id_hash TEXT NOT NULL,
		question_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (usage_date, user_id_hash)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		event_type TEXT NOT NULL,
		request_id TEXT,
		session_id TEXT,
		user_id_hash TEXT,
		payload_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		session_id TEXT,
		helpful INTEGER NOT NULL,
		comment TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_request ON feedback(request_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}
