package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mortgage-agent/backend/internal/cache/redis"
	"github.com/mortgage-agent/backend/internal/ingestion"
	"github.com/mortgage-agent/backend/internal/storage/sqlite"
	"github.com/mortgage-agent/backend/internal/vector/flat"
	"github.com/mortgage-agent/backend/pkg/logger"
)

type AdminHandler struct {
	processor *ingestion.Processor
	db        *sqlite.Client
	cache     *redis.Client
	indexPath string
}

func NewAdminHandler(processor *ingestion.Processor, db *sqlite.Client, cache *redis.Client, indexPath string) *AdminHandler {
	return &AdminHandler{
		processor: processor,
		db:        db,
		cache:     cache,
		indexPath: indexPath,
	}
}

// HandleIngest rebuilds the corpus index from the corpus directory. The
// rebuild is synchronous; ingestion serializes internally, so concurrent
// calls queue rather than interleave.
func (h *AdminHandler) HandleIngest(c *fiber.Ctx) error {
	start := time.Now()

	result, err := h.processor.IngestCorpus(c.Context())
	if err != nil {
		logger.Error("Corpus ingestion failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Ingestion failed",
		})
	}

	if h.cache != nil {
		if err := h.cache.InvalidateResponses(c.Context()); err != nil {
			logger.Warn("Failed to invalidate response cache", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"documents_ingested": result.DocumentsIngested,
		"chunks_indexed":     result.ChunksIndexed,
		"index_path":         result.IndexPath,
		"duration_ms":        time.Since(start).Milliseconds(),
	})
}

func (h *AdminHandler) HandleHealth(c *fiber.Ctx) error {
	documents, err := h.db.CountDocuments()
	if err != nil {
		logger.Error("Health check failed to query documents", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
		})
	}

	chunks, err := h.db.CountChunks()
	if err != nil {
		logger.Error("Health check failed to query chunks", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
		})
	}

	return c.JSON(fiber.Map{
		"status":      "healthy",
		"documents":   documents,
		"chunks":      chunks,
		"index_ready": flat.Exists(h.indexPath),
		"time":        time.Now().Unix(),
	})
}
