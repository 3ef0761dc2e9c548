package query

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mortgage-agent/backend/internal/cache/redis"
	"github.com/mortgage-agent/backend/internal/grounding"
	"github.com/mortgage-agent/backend/internal/llm"
	"github.com/mortgage-agent/backend/internal/metrics"
	"github.com/mortgage-agent/backend/internal/quota"
	"github.com/mortgage-agent/backend/internal/storage/sqlite"
	"github.com/mortgage-agent/backend/internal/vector/flat"
	"github.com/mortgage-agent/backend/pkg/logger"
	"github.com/mortgage-agent/backend/pkg/utils"
)

// fallbackAnswer replaces any answer that cannot be grounded in verified
// sources. The reason code still reaches the caller.
const fallbackAnswer = "I can't answer confidently from my verified sources right now."

// Rejection reason for oversized questions, alongside the quota package's.
const ReasonCharLimit = "CHAR_LIMIT"

// Fallback reasons attached to safe-mode responses.
const (
	FallbackNoIndex         = "NO_INDEX"
	FallbackNoContext       = "NO_CONTEXT"
	FallbackLLMError        = "LLM_ERROR"
	FallbackGroundingFailed = "GROUNDING_FAILED"
)

type ChatRequest struct {
	Message   string
	SessionID string
	UserID    string
}

type Citation struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	URL          string   `json:"url,omitempty"`
	Jurisdiction string   `json:"jurisdiction,omitempty"`
	Score        float32  `json:"score"`
	Previews     []string `json:"previews"`
}

type ChatResponse struct {
	RequestID      string     `json:"request_id"`
	SessionID      string     `json:"session_id"`
	Answer         string     `json:"answer,omitempty"`
	Citations      []Citation `json:"citations"`
	FallbackReason string     `json:"fallback_reason,omitempty"`

	// Rejected marks a policy outcome (quota, char limit); RejectReason
	// carries the code. Distinct from FallbackReason, which accompanies a
	// served (fallback) answer.
	Rejected     bool   `json:"-"`
	RejectReason string `json:"-"`
	LatencyMS    int    `json:"latency_ms"`
}

// Engine orchestrates one question end to end: admission, retrieval,
// generation, grounding validation, and fallback selection.
type Engine struct {
	retriever *Retriever
	generator llm.Generator
	tracker   *quota.Tracker
	db        *sqlite.Client
	cache     *redis.Client

	topK              int
	charLimit         int
	citationsRequired bool
	strict            bool
	indexPath         string
	cacheTTL          time.Duration
}

type EngineConfig struct {
	TopK              int
	CharLimit         int
	CitationsRequired bool
	Strict            bool
	IndexPath         string
	CacheTTLSec       int
}

func NewEngine(retriever *Retriever, generator llm.Generator, tracker *quota.Tracker, db *sqlite.Client, cache *redis.Client, cfg EngineConfig) *Engine {
	return &Engine{
		retriever:         retriever,
		generator:         generator,
		tracker:           tracker,
		db:                db,
		cache:             cache,
		topK:              cfg.TopK,
		charLimit:         cfg.CharLimit,
		citationsRequired: cfg.CitationsRequired,
		strict:            cfg.Strict,
		indexPath:         cfg.IndexPath,
		cacheTTL:          time.Duration(cfg.CacheTTLSec) * time.Second,
	}
}

func (e *Engine) ProcessChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	requestID := "req_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "sess_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	}

	resp := &ChatResponse{RequestID: requestID, SessionID: sessionID, Citations: []Citation{}}

	if len([]rune(req.Message)) > e.charLimit {
		e.logEvent("limit_rejected", requestID, sessionID, "", map[string]any{
			"reason":      ReasonCharLimit,
			"char_limit":  e.charLimit,
			"message_len": len([]rune(req.Message)),
		})
		metrics.QuestionsTotal.WithLabelValues("rejected").Inc()
		resp.Rejected = true
		resp.RejectReason = ReasonCharLimit
		return resp, nil
	}

	// Daily limits need a stable identity; anonymous users fall back to
	// their session, which scopes the day limit to that session.
	rawUser := req.UserID
	if rawUser == "" {
		rawUser = sessionID
	}
	userHash := e.tracker.HashIdentity(rawUser)

	if err := e.tracker.EnsureSession(sessionID, userHash); err != nil {
		return nil, err
	}

	e.logEvent("chat_request", requestID, sessionID, userHash, map[string]any{
		"message_len":     len(req.Message),
		"message_preview": preview(req.Message, 120),
	})

	allowed, reason, err := e.tracker.CheckAndIncrement(userHash, sessionID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		e.logEvent("limit_rejected", requestID, sessionID, userHash, map[string]any{"reason": reason})
		metrics.QuotaRejections.WithLabelValues(reason).Inc()
		metrics.QuestionsTotal.WithLabelValues("rejected").Inc()
		resp.Rejected = true
		resp.RejectReason = reason
		return resp, nil
	}

	if cached := e.cachedResponse(ctx, req.Message); cached != nil {
		cached.RequestID = requestID
		cached.SessionID = sessionID
		cached.LatencyMS = int(time.Since(start).Milliseconds())
		metrics.QuestionsTotal.WithLabelValues("cached").Inc()
		return cached, nil
	}

	retrieval, err := e.retriever.Retrieve(ctx, req.Message, e.topK)
	if err != nil {
		e.logEvent("retrieval_error", requestID, sessionID, userHash, map[string]any{"error": err.Error()})
		logger.Warn("Retrieval failed, degrading to no sources", zap.Error(err), zap.String("request_id", requestID))
		retrieval = &RetrievalResult{Sources: []Source{}}
	}

	e.logEvent("retrieval_completed", requestID, sessionID, userHash, map[string]any{
		"chunks_retrieved": retrieval.ChunksRetrieved,
		"sources_deduped":  retrieval.SourcesDeduped,
		"top_scores":       topScores(retrieval.Sources, 3),
	})
	metrics.ChunksRetrieved.Observe(float64(retrieval.ChunksRetrieved))
	metrics.SourcesReturned.Observe(float64(len(retrieval.Sources)))

	answer, citations, fallbackReason := e.generateGrounded(ctx, requestID, sessionID, userHash, req.Message, retrieval)

	resp.Answer = answer
	resp.Citations = citations
	resp.FallbackReason = fallbackReason
	resp.LatencyMS = int(time.Since(start).Milliseconds())

	e.logEvent("chat_response", requestID, sessionID, userHash, map[string]any{
		"response_len":    len(answer),
		"citation_count":  len(citations),
		"fallback_reason": fallbackReason,
	})

	if fallbackReason == "" {
		metrics.QuestionsTotal.WithLabelValues("answered").Inc()
		e.storeCachedResponse(ctx, req.Message, resp)
	} else {
		metrics.QuestionsTotal.WithLabelValues("fallback").Inc()
	}

	return resp, nil
}

// generateGrounded runs generation and grounding validation, and decides
// between the generated answer and the fixed fallback.
func (e *Engine) generateGrounded(ctx context.Context, requestID, sessionID, userHash, question string, retrieval *RetrievalResult) (string, []Citation, string) {
	sources := retrieval.Sources
	fullCitations := citationPayload(sources)

	if len(sources) == 0 {
		reason := FallbackNoContext
		if !flat.Exists(e.indexPath) {
			reason = FallbackNoIndex
		}
		metrics.GroundingOutcomes.WithLabelValues(reason).Inc()
		return fallbackAnswer, []Citation{}, reason
	}

	allowedIDs := make([]string, 0, len(sources))
	for _, source := range sources {
		allowedIDs = append(allowedIDs, source.ID)
	}

	contextBlock := buildContext(sources)
	output, llmErr := e.generator.Complete(ctx, systemPrompt, buildUserPrompt(contextBlock, question))

	var result grounding.Result
	switch {
	case llmErr != nil:
		result = grounding.Result{OK: false, Reason: "LLM_ERROR"}
	case strings.TrimSpace(output) == "":
		result = grounding.Result{OK: false, Reason: "EMPTY_COMPLETION"}
	default:
		result = grounding.Validate(output, allowedIDs, e.citationsRequired, e.strict)
	}

	e.logEvent("llm_completed", requestID, sessionID, userHash, map[string]any{
		"error":               errString(llmErr),
		"output_len":          len(output),
		"output_preview":      preview(output, 200),
		"extracted_citations": result.Citations,
		"allowed_citations":   allowedIDs,
		"grounding_ok":        result.OK,
		"grounding_reason":    result.Reason,
	})

	if !result.OK {
		reason := FallbackGroundingFailed
		if llmErr != nil || result.Reason == "EMPTY_COMPLETION" {
			reason = FallbackLLMError
		}
		metrics.GroundingOutcomes.WithLabelValues(result.Reason).Inc()
		// Retrieval did find sources; surface them so the caller can still
		// point the user at verified material.
		return fallbackAnswer, fullCitations, reason
	}

	metrics.GroundingOutcomes.WithLabelValues("ok").Inc()

	used := grounding.ExtractCitations(result.Text)
	return result.Text, filterCitations(fullCitations, used), ""
}

func (e *Engine) cachedResponse(ctx context.Context, message string) *ChatResponse {
	if e.cache == nil {
		return nil
	}

	var cached ChatResponse
	found, err := e.cache.GetResponse(ctx, utils.HashString(message), &cached)
	if err != nil {
		logger.Warn("Response cache lookup failed", zap.Error(err))
		return nil
	}
	if !found {
		metrics.CacheMisses.WithLabelValues("response").Inc()
		return nil
	}
	metrics.CacheHits.WithLabelValues("response").Inc()
	return &cached
}

func (e *Engine) storeCachedResponse(ctx context.Context, message string, resp *ChatResponse) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetResponse(ctx, utils.HashString(message), resp, e.cacheTTL); err != nil {
		logger.Warn("Response cache store failed", zap.Error(err))
	}
}

func (e *Engine) logEvent(eventType, requestID, sessionID, userHash string, payload map[string]any) {
	if err := e.db.LogEvent(eventType, requestID, sessionID, userHash, payload); err != nil {
		logger.Warn("Failed to log event", zap.String("event_type", eventType), zap.Error(err))
	}
}

func citationPayload(sources []Source) []Citation {
	citations := make([]Citation, 0, len(sources))
	for _, source := range sources {
		title := source.PageTitle
		if title == "" {
			title = source.Title
		}

		previews := make([]string, 0, len(source.Excerpts))
		for _, excerpt := range source.Excerpts {
			if excerpt.Text == "" {
				continue
			}
			previews = append(previews, preview(excerpt.Text, 200))
		}

		citations = append(citations, Citation{
			ID:           source.ID,
			Title:        title,
			URL:          source.SourceURL,
			Jurisdiction: source.Jurisdiction,
			Score:        source.Score,
			Previews:     previews,
		})
	}
	return citations
}

// filterCitations keeps only the citations whose ids appear in usedIDs, in
// usedIDs order.
func filterCitations(citations []Citation, usedIDs []string) []Citation {
	byID := make(map[string]Citation, len(citations))
	for _, c := range citations {
		byID[c.ID] = c
	}

	filtered := make([]Citation, 0, len(usedIDs))
	for _, id := range usedIDs {
		if c, ok := byID[id]; ok {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func topScores(sources []Source, n int) []float32 {
	scores := make([]float32, 0, n)
	for i, source := range sources {
		if i >= n {
			break
		}
		scores = append(scores, source.Score)
	}
	return scores
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
