package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/compliance-rag/backend/internal/ingestion"
	"github.com/compliance-rag/backend/internal/storage/sqlite"
	"github.com/compliance-rag/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	db        *sqlite.Client
}

func NewDocumentHandler(processor *ingestion.Processor, db *sqlite.Client) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		db:        db,
	}
}

// UploadDocument accepts a multipart file upload and ingests it into the
// regulatory document index.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A file upload is required",
		})
	}

	userID := c.FormValue("user_id", "anonymous")

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}

	result, err := h.processor.ProcessDocument(c.Context(), userID, fileHeader.Filename, content)
	if err != nil {
		logger.Error("Failed to process document",
			zap.String("filename", fileHeader.Filename),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}

	return c.JSON(fiber.Map{
		"message":        "Document processed successfully",
		"doc_id":         result.DocID,
		"filename":       result.Filename,
		"regulation":     result.Regulation,
		"chunks_created": result.ChunksCreated,
		"content_hash":   result.ContentHash,
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	docs, err := h.db.ListDocuments()
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	return c.JSON(fiber.Map{
		"count":     len(docs),
		"documents": docs,
	})
}
