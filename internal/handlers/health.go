package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/t766/control/internal/models"
)

// Health handles health check requests
func (h *Handler) Health(c *fiber.Ctx) error {
	entries, err := h.store.Count()
	if err != nil {
		h.logger.Error("Health check failed to read store", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.HealthResponse{
			Status:    "unhealthy",
			Timestamp: time.Now().Format(time.RFC3339),
			Version:   Version,
		})
	}

	return c.JSON(models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   Version,
		Entries:   entries,
	})
}

// NotFound handles 404 errors
func (h *Handler) NotFound(c *fiber.Ctx) error {
	return errorJSON(c, fiber.StatusNotFound, "NOT_FOUND", "Route not found")
}
