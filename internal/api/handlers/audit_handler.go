package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/compliance-rag/backend/internal/audit"
	"github.com/compliance-rag/backend/pkg/logger"
)

type AuditHandler struct {
	store *audit.Store
}

func NewAuditHandler(store *audit.Store) *AuditHandler {
	return &AuditHandler{
		store: store,
	}
}

func (h *AuditHandler) GetQueryHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	records, err := h.store.QueryHistory(userID, limit)
	if err != nil {
		logger.Error("Failed to read query audit log", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read query audit log",
		})
	}

	return c.JSON(fiber.Map{
		"count":   len(records),
		"queries": records,
	})
}

func (h *AuditHandler) GetAlerts(c *fiber.Ctx) error {
	severity := c.Query("severity")
	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	alerts, err := h.store.Alerts(severity, limit)
	if err != nil {
		logger.Error("Failed to read alert log", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read alert log",
		})
	}

	return c.JSON(fiber.Map{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (h *AuditHandler) GetAccessLogs(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	records, err := h.store.AccessLogs(limit)
	if err != nil {
		logger.Error("Failed to read access log", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read access log",
		})
	}

	return c.JSON(fiber.Map{
		"count":   len(records),
		"records": records,
	})
}

func (h *AuditHandler) GetDocumentLogs(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	records, err := h.store.DocumentLogs(limit)
	if err != nil {
		logger.Error("Failed to read document log", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read document log",
		})
	}

	return c.JSON(fiber.Map{
		"count":   len(records),
		"records": records,
	})
}

func (h *AuditHandler) GetStatistics(c *fiber.Ctx) error {
	return c.JSON(h.store.GetStatistics())
}

// ExportTrail writes a JSON bundle of all four audit partitions and returns
// the path it was written to.
func (h *AuditHandler) ExportTrail(c *fiber.Ctx) error {
	var req struct {
		StartDate  string `json:"start_date"`
		EndDate    string `json:"end_date"`
		OutputPath string `json:"output_path"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	path, err := h.store.ExportTrail(req.StartDate, req.EndDate, req.OutputPath)
	if err != nil {
		logger.Error("Failed to export audit trail", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export audit trail",
		})
	}

	if err := h.store.LogAccess(c.Get("X-User-ID"), "export", "audit_trail", "success", map[string]string{
		"path": path,
	}); err != nil {
		logger.Warn("Failed to record export access", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"message": "Audit trail exported",
		"path":    path,
	})
}
