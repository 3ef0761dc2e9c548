package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mortgage-agent/backend/internal/llm"
	"github.com/mortgage-agent/backend/internal/metrics"
	"github.com/mortgage-agent/backend/internal/storage/sqlite"
	"github.com/mortgage-agent/backend/internal/vector/flat"
	"github.com/mortgage-agent/backend/pkg/logger"
	"github.com/mortgage-agent/backend/pkg/utils"
)

// maxExcerptsPerSource bounds how much text from one source can enter the
// prompt context.
const maxExcerptsPerSource = 3

type Excerpt struct {
	ChunkID string  `json:"chunk_id"`
	Score   float32 `json:"score"`
	Text    string  `json:"text"`
}

// Source is a deduplicated group of retrieved chunks sharing an origin
// document or URL. ID is the per-response citation label (S1, S2, ...);
// it is never persisted and never stable across responses.
type Source struct {
	ID           string    `json:"source_id"`
	SourceURL    string    `json:"source_url,omitempty"`
	SourceName   string    `json:"source_name"`
	Title        string    `json:"title"`
	PageTitle    string    `json:"page_title,omitempty"`
	Jurisdiction string    `json:"jurisdiction"`
	DocID        string    `json:"doc_id"`
	Score        float32   `json:"score"`
	Excerpts     []Excerpt `json:"excerpts"`
}

type RetrievalResult struct {
	Sources         []Source `json:"sources"`
	ChunksRetrieved int      `json:"chunks_retrieved"`
	SourcesDeduped  int      `json:"sources_deduped"`
}

// EmbeddingCache holds query embeddings keyed by text hash. The redis cache
// client satisfies it; a nil cache disables caching.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// Retriever turns a question into a small ordered set of citable sources.
type Retriever struct {
	db         *sqlite.Client
	embedder   llm.Embedder
	cache      EmbeddingCache
	indexPath  string
	maxSources int
	cacheTTL   time.Duration
}

func NewRetriever(db *sqlite.Client, embedder llm.Embedder, cache EmbeddingCache, indexPath string, maxSources int, cacheTTL time.Duration) *Retriever {
	if maxSources <= 0 {
		maxSources = 1
	}
	return &Retriever{
		db:         db,
		embedder:   embedder,
		cache:      cache,
		indexPath:  indexPath,
		maxSources: maxSources,
		cacheTTL:   cacheTTL,
	}
}

type chunkHit struct {
	rank  int
	score float32

	chunkID      string
	docID        string
	text         string
	title        string
	pageTitle    string
	jurisdiction string
	sourceURL    string
	sourceName   string
}

type sourceGroup struct {
	key       string
	bestScore float32
	firstRank int
	hits      []chunkHit
}

// Retrieve embeds the query, searches the flat index for topK rows, joins
// chunk metadata, and groups, ranks, and trims the hits into citable sources.
// A blank query, a missing index artifact, or a non-positive topK yields an
// empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (*RetrievalResult, error) {
	empty := &RetrievalResult{Sources: []Source{}}

	cleaned := strings.TrimSpace(query)
	if cleaned == "" || topK <= 0 {
		return empty, nil
	}
	if !flat.Exists(r.indexPath) {
		return empty, nil
	}

	queryVec, err := r.queryEmbedding(ctx, cleaned)
	if err != nil {
		return nil, err
	}
	if queryVec == nil {
		return empty, nil
	}

	index, err := flat.Load(r.indexPath)
	if err != nil {
		return nil, err
	}

	results, err := index.Search(queryVec, topK)
	if err != nil {
		return nil, err
	}

	var hits []chunkHit
	for _, hit := range results {
		if hit.Row < 0 {
			continue
		}

		meta, err := r.db.GetChunkByEmbeddingIndex(hit.Row)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			// The index has a row the metadata store does not know about:
			// the two artifacts have diverged. Drop the hit but alert.
			logger.Error("Index row has no chunk metadata, artifacts have diverged",
				zap.Int("embedding_index", hit.Row),
				zap.String("index_path", r.indexPath),
			)
			continue
		}

		hits = append(hits, chunkHit{
			rank:         len(hits),
			score:        hit.Score,
			chunkID:      meta.ChunkID,
			docID:        meta.DocID,
			text:         meta.Text,
			title:        meta.Title,
			pageTitle:    meta.PageTitle,
			jurisdiction: meta.Jurisdiction,
			sourceURL:    meta.SourceURL,
			sourceName:   meta.SourceName,
		})
	}

	if len(hits) == 0 {
		return empty, nil
	}

	groups := groupHits(hits)

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].bestScore != groups[j].bestScore {
			return groups[i].bestScore > groups[j].bestScore
		}
		return groups[i].firstRank < groups[j].firstRank
	})

	deduped := len(groups)
	if len(groups) > r.maxSources {
		groups = groups[:r.maxSources]
	}

	sources := make([]Source, 0, len(groups))
	for i, group := range groups {
		sources = append(sources, group.toSource(fmt.Sprintf("S%d", i+1)))
	}

	return &RetrievalResult{
		Sources:         sources,
		ChunksRetrieved: len(hits),
		SourcesDeduped:  deduped,
	}, nil
}

// queryEmbedding returns the normalized query vector, consulting the
// embedding cache before calling the embedder. Cache failures degrade to a
// direct embed; a nil return with nil error means the embedder produced
// nothing.
func (r *Retriever) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	var key string
	if r.cache != nil {
		key = utils.HashString(query)
		vec, found, err := r.cache.GetEmbedding(ctx, key)
		switch {
		case err != nil:
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		case found:
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			return vec, nil
		default:
			metrics.CacheMisses.WithLabelValues("embedding").Inc()
		}
	}

	embeddings, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, nil
	}
	vec := embeddings[0]
	flat.Normalize(vec)

	// Cached post-normalization, so hits skip that step too.
	if r.cache != nil {
		if err := r.cache.SetEmbedding(ctx, key, vec, r.cacheTTL); err != nil {
			logger.Warn("Embedding cache store failed", zap.Error(err))
		}
	}

	return vec, nil
}

// groupHits buckets hits by source URL, falling back to document id for
// documents without one, preserving first-appearance order.
func groupHits(hits []chunkHit) []*sourceGroup {
	byKey := make(map[string]*sourceGroup)
	var ordered []*sourceGroup

	for _, hit := range hits {
		key := hit.sourceURL
		if key == "" {
			key = hit.docID
		}

		group, ok := byKey[key]
		if !ok {
			group = &sourceGroup{
				key:       key,
				bestScore: hit.score,
				firstRank: hit.rank,
			}
			byKey[key] = group
			ordered = append(ordered, group)
		}

		group.hits = append(group.hits, hit)
		if hit.score > group.bestScore {
			group.bestScore = hit.score
		}
	}

	return ordered
}

func (g *sourceGroup) toSource(citationID string) Source {
	hits := make([]chunkHit, len(g.hits))
	copy(hits, g.hits)
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if len(hits) > maxExcerptsPerSource {
		hits = hits[:maxExcerptsPerSource]
	}

	excerpts := make([]Excerpt, 0, len(hits))
	for _, hit := range hits {
		excerpts = append(excerpts, Excerpt{
			ChunkID: hit.chunkID,
			Score:   hit.score,
			Text:    hit.text,
		})
	}

	first := g.hits[0]
	title := first.title
	if title == "" {
		title = "Untitled Source"
	}

	return Source{
		ID:           citationID,
		SourceURL:    first.sourceURL,
		SourceName:   first.sourceName,
		Title:        title,
		PageTitle:    first.pageTitle,
		Jurisdiction: first.jurisdiction,
		DocID:        first.docID,
		Score:        g.bestScore,
		Excerpts:     excerpts,
	}
}
