package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/compliance-rag/backend/internal/audit"
	"github.com/compliance-rag/backend/internal/metrics"
	"github.com/compliance-rag/backend/internal/risk"
	"github.com/compliance-rag/backend/pkg/logger"
)

type RiskHandler struct {
	auditLog *audit.Store
}

func NewRiskHandler(auditLog *audit.Store) *RiskHandler {
	return &RiskHandler{
		auditLog: auditLog,
	}
}

// ScoreTransaction evaluates a transaction against the AML risk rules and
// raises an audit alert for high-risk results.
func (h *RiskHandler) ScoreTransaction(c *fiber.Ctx) error {
	var req struct {
		UserID      string           `json:"user_id"`
		Transaction risk.Transaction `json:"transaction"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Transaction.Amount < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Transaction amount must not be negative",
		})
	}

	assessment := risk.ScoreTransaction(req.Transaction)

	if assessment.Level == risk.LevelHigh {
		message := "High-risk transaction flagged: " + assessment.RecommendedAction
		if _, err := h.auditLog.LogAlert("HIGH_RISK_TRANSACTION", "HIGH", message, "", req.UserID, nil); err != nil {
			logger.Error("Failed to log transaction alert", zap.Error(err))
		}
		metrics.AlertsTriggered.WithLabelValues("HIGH_RISK_TRANSACTION", "HIGH").Inc()
	}

	return c.JSON(assessment)
}

// AnalyzeQuery scores free-text for risk keywords without running retrieval.
func (h *RiskHandler) AnalyzeQuery(c *fiber.Ctx) error {
	var req struct {
		Query string `json:"query"`
	}

	if err := c.BodyParser(&req); err != nil || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	return c.JSON(risk.AnalyzeQuery(req.Query))
}

// RiskReport renders a combined Markdown risk report for a transaction and
// an optional related query.
func (h *RiskHandler) RiskReport(c *fiber.Ctx) error {
	var req struct {
		Transaction risk.Transaction `json:"transaction"`
		Query       string           `json:"query"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	txAssessment := risk.ScoreTransaction(req.Transaction)

	var queryAssessment *risk.QueryAssessment
	if req.Query != "" {
		qa := risk.AnalyzeQuery(req.Query)
		queryAssessment = &qa
	}

	return c.JSON(fiber.Map{
		"transaction": txAssessment,
		"query":       queryAssessment,
		"report":      risk.GenerateReport(txAssessment, queryAssessment),
	})
}
