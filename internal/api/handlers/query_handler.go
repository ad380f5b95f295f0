package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/compliance-rag/backend/internal/audit"
	"github.com/compliance-rag/backend/internal/query"
	"github.com/compliance-rag/backend/internal/storage/sqlite"
	"github.com/compliance-rag/backend/pkg/logger"
)

type QueryHandler struct {
	queryEngine *query.Engine
	db          *sqlite.Client
	auditLog    *audit.Store
}

func NewQueryHandler(queryEngine *query.Engine, db *sqlite.Client, auditLog *audit.Store) *QueryHandler {
	return &QueryHandler{
		queryEngine: queryEngine,
		db:          db,
		auditLog:    auditLog,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Query      string `json:"query"`
		UserID     string `json:"user_id"`
		Regulation string `json:"regulation"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	queryReq := query.QueryRequest{
		Query:      req.Query,
		UserID:     req.UserID,
		Regulation: req.Regulation,
	}

	response, err := h.queryEngine.ProcessQuery(c.Context(), queryReq)
	if err != nil {
		logger.Error("Failed to process query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	return c.JSON(response)
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	records, err := h.db.GetQueryHistory(userID, limit)
	if err != nil {
		logger.Error("Failed to fetch query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch query history",
		})
	}

	if err := h.auditLog.LogAccess(userID, "read", "query_history", "success", nil); err != nil {
		logger.Warn("Failed to record history access", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"count":   len(records),
		"history": records,
	})
}
