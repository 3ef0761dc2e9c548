package models

import "time"

// Document is one ingested corpus file. The full document set is replaced on
// every ingestion run.
type Document struct {
	DocID         string
	Title         string
	PageTitle     string
	SourceName    string
	SourceURL     string
	SourceDomain  string
	Jurisdiction  string
	PublishedDate string
	RetrievedDate string
	CorpusVersion string
	ContentType   string
	IsApproved    bool
}

// Chunk is the unit of embedding and retrieval. EmbeddingIndex is the row
// offset of its vector in the flat index; rows are dense 0..N-1 in batch
// order and must stay in lockstep with the index file.
type Chunk struct {
	ChunkID        string
	DocID          string
	ChunkIndex     int
	Text           string
	EmbeddingIndex int
}

// ChunkHit is a chunk joined with its document metadata, as recovered for a
// single search result row.
type ChunkHit struct {
	ChunkID      string
	DocID        string
	Text         string
	Title        string
	PageTitle    string
	Jurisdiction string
	SourceURL    string
	SourceName   string
}

type Session struct {
	SessionID     string
	UserIDHash    string
	CreatedAt     time.Time
	QuestionCount int
}

type DailyUsage struct {
	UsageDate     string
	UserIDHash    string
	QuestionCount int
}

type Event struct {
	ID         int64
	Timestamp  time.Time
	EventType  string
	RequestID  string
	SessionID  string
	UserIDHash string
	Payload    map[string]any
}

type Feedback struct {
	ID        int64
	RequestID string
	SessionID string
	Helpful   bool
	Comment   string
	CreatedAt time.Time
}
