package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
)

// SubmitSync handles POST /puppet-sync. The acknowledgement is plain text.
func (h *Handler) SubmitSync(c *fiber.Ctx) error {
	var req models.SubmitRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		logging.WarnCtx(c.UserContext(), "Invalid sync report body", "error", err, "ip", c.IP())
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_JSON", "Invalid JSON body: "+err.Error())
	}

	ctx := logging.WithHostname(c.UserContext(), req.Hostname)
	key, err := h.syncService.RecordSync(ctx, &req)
	if err != nil {
		logging.WarnCtx(ctx, "Sync report rejected", "error", err)
		return serviceError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString("recorded " + key)
}
