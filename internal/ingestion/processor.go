package ingestion

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mortgage-agent/backend/internal/llm"
	"github.com/mortgage-agent/backend/internal/metrics"
	"github.com/mortgage-agent/backend/internal/storage/models"
	"github.com/mortgage-agent/backend/internal/storage/sqlite"
	"github.com/mortgage-agent/backend/internal/vector/flat"
	"github.com/mortgage-agent/backend/pkg/logger"
)

// Processor rebuilds the searchable corpus from raw text files: parse, chunk,
// embed in one global batch, rebuild the flat index, rewrite chunk metadata.
// Every run is a full replace of documents, chunks, and index.
type Processor struct {
	db       *sqlite.Client
	embedder llm.Embedder

	corpusPath    string
	indexPath     string
	corpusVersion string
	chunkSize     int
	chunkOverlap  int

	// Only one ingestion run may execute at a time; concurrent readers are
	// still exposed to torn state mid-run (documented scoping limit).
	mu sync.Mutex
}

type Result struct {
	DocumentsIngested int    `json:"documents_ingested"`
	ChunksIndexed     int    `json:"chunks_indexed"`
	IndexPath         string `json:"index_path"`
}

type Config struct {
	CorpusPath    string
	IndexPath     string
	CorpusVersion string
	ChunkSize     int
	ChunkOverlap  int
}

func NewProcessor(db *sqlite.Client, embedder llm.Embedder, cfg Config) *Processor {
	return &Processor{
		db:            db,
		embedder:      embedder,
		corpusPath:    cfg.CorpusPath,
		indexPath:     cfg.IndexPath,
		corpusVersion: cfg.CorpusVersion,
		chunkSize:     cfg.ChunkSize,
		chunkOverlap:  cfg.ChunkOverlap,
	}
}

// IngestCorpus runs one full ingestion pass. Document rows already written
// are not rolled back if embedding fails; the next successful run replaces
// them wholesale.
func (p *Processor) IngestCorpus(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	files, err := listCorpusFiles(p.corpusPath)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		logger.Info("Corpus directory is empty, nothing to ingest", zap.String("path", p.corpusPath))
		return &Result{IndexPath: p.indexPath}, nil
	}

	if err := p.db.DeleteAllDocuments(); err != nil {
		return nil, err
	}

	// Chunk ids and texts accumulate across all documents before any
	// embedding call: embedding_index is a position in this one global batch,
	// so the batch order has to be fixed first.
	var chunkTexts []string
	var chunkMeta []models.Chunk
	docCount := 0

	for _, path := range files {
		file, err := parseCorpusFile(path)
		if err != nil {
			return nil, err
		}

		docID := uuid.New().String()
		doc := &models.Document{
			DocID:         docID,
			Title:         file.Title(),
			PageTitle:     file.Header["page_title"],
			SourceName:    file.headerOr("source_name", "unknown"),
			SourceURL:     file.Header["source_url"],
			SourceDomain:  file.Header["source_domain"],
			Jurisdiction:  file.Header["jurisdiction"],
			RetrievedDate: file.RetrievedDate(),
			CorpusVersion: p.corpusVersion,
			ContentType:   file.headerOr("content_type", "extracted"),
			IsApproved:    true,
		}

		if err := p.db.InsertDocument(doc); err != nil {
			return nil, err
		}
		docCount++

		if file.Body == "" {
			continue
		}

		chunks, err := ChunkText(file.Body, p.chunkSize, p.chunkOverlap)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk %s: %w", path, err)
		}

		for idx, text := range chunks {
			chunkTexts = append(chunkTexts, text)
			chunkMeta = append(chunkMeta, models.Chunk{
				ChunkID:    fmt.Sprintf("%s_%d", docID, idx),
				DocID:      docID,
				ChunkIndex: idx,
				Text:       text,
			})
		}
	}

	if len(chunkTexts) == 0 {
		// An index with zero vectors must not linger from a previous run.
		if flat.Exists(p.indexPath) {
			if err := os.Remove(p.indexPath); err != nil {
				return nil, fmt.Errorf("failed to remove stale index: %w", err)
			}
		}
		logger.Info("Corpus produced no chunks, index removed", zap.Int("documents", docCount))
		return &Result{DocumentsIngested: docCount, IndexPath: p.indexPath}, nil
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, chunkTexts)
	if err != nil {
		logger.Error("Embedding failed mid-ingestion, document rows left in place",
			zap.Error(err),
			zap.Int("documents", docCount),
		)
		return nil, fmt.Errorf("failed to embed corpus: %w", err)
	}
	if len(embeddings) != len(chunkTexts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunkTexts))
	}

	for _, vec := range embeddings {
		flat.Normalize(vec)
	}

	index := flat.New()
	if err := index.Rebuild(embeddings); err != nil {
		return nil, fmt.Errorf("failed to rebuild index: %w", err)
	}
	if err := index.Save(p.indexPath); err != nil {
		return nil, err
	}

	for i := range chunkMeta {
		chunkMeta[i].EmbeddingIndex = i
	}
	if err := p.db.InsertChunks(chunkMeta); err != nil {
		return nil, err
	}

	metrics.DocumentsIngested.Add(float64(docCount))
	metrics.ChunksIndexed.Add(float64(len(chunkMeta)))

	logger.Info("Corpus ingested",
		zap.Int("documents", docCount),
		zap.Int("chunks", len(chunkMeta)),
		zap.String("index_path", p.indexPath),
	)

	return &Result{
		DocumentsIngested: docCount,
		ChunksIndexed:     len(chunkMeta),
		IndexPath:         p.indexPath,
	}, nil
}
