package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/compliance-rag/backend/internal/compliance"
	"github.com/compliance-rag/backend/internal/metrics"
)

type DashboardHandler struct {
	aggregator *compliance.Aggregator
}

func NewDashboardHandler(aggregator *compliance.Aggregator) *DashboardHandler {
	return &DashboardHandler{
		aggregator: aggregator,
	}
}

func (h *DashboardHandler) GetDocumentCoverage(c *fiber.Ctx) error {
	return c.JSON(h.aggregator.GetDocumentCoverage(c.Context()))
}

func (h *DashboardHandler) GetQueryStatistics(c *fiber.Ctx) error {
	return c.JSON(h.aggregator.GetQueryStatistics(c.Context()))
}

func (h *DashboardHandler) GetComplianceScore(c *fiber.Ctx) error {
	score := h.aggregator.GetComplianceScore(c.Context())
	metrics.ComplianceScore.Set(score.OverallScore)
	return c.JSON(score)
}

func (h *DashboardHandler) GetRecentAlerts(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	alerts := h.aggregator.GetRecentAlerts(limit)

	return c.JSON(fiber.Map{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

// GetSummary returns the plain-text dashboard rollup.
func (h *DashboardHandler) GetSummary(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/plain; charset=utf-8")
	return c.SendString(h.aggregator.DashboardSummary(c.Context()))
}
