package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/compliance-rag/backend/internal/monitor"
)

type PerformanceHandler struct {
	tracker *monitor.Tracker
}

func NewPerformanceHandler(tracker *monitor.Tracker) *PerformanceHandler {
	return &PerformanceHandler{
		tracker: tracker,
	}
}

func (h *PerformanceHandler) GetSnapshot(c *fiber.Ctx) error {
	return c.JSON(h.tracker.GetSnapshot())
}

func (h *PerformanceHandler) GetSummary(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/plain; charset=utf-8")
	return c.SendString(h.tracker.Summary())
}
