package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/t766/control/internal/models"
)

// GetSyncMatrix handles GET /v1/syncs
func (h *Handler) GetSyncMatrix(c *fiber.Ctx) error {
	return c.JSON(h.queryService.SyncMatrix())
}

// GetLogs handles GET /v1/logs?time=<label>&hostname=<host>
func (h *Handler) GetLogs(c *fiber.Ctx) error {
	label := c.Query("time")
	hostname := c.Query("hostname")
	if label == "" || hostname == "" {
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_REQUEST", "time and hostname query parameters are required")
	}

	return c.JSON(models.LogsResponse{
		Time:     label,
		Hostname: hostname,
		Logs:     h.queryService.LogsForInterval(label, hostname),
	})
}

// ListCheckins handles GET /v1/checkins
func (h *Handler) ListCheckins(c *fiber.Ctx) error {
	entries := h.queryService.AllCheckinEntries()
	return c.JSON(models.CheckinListResponse{
		Checkins: entries,
		Count:    len(entries),
	})
}

// GetCheckin handles GET /v1/checkins/:hostname?log=<text>
func (h *Handler) GetCheckin(c *fiber.Ctx) error {
	hostname := c.Params("hostname")
	text := c.Query("log")
	if text == "" {
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_REQUEST", "log query parameter is required")
	}

	entry, ok := h.queryService.CheckinEntry(hostname, text)
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "NOT_FOUND", "Check-in not found")
	}
	return c.JSON(entry)
}
