package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
	"github.com/t766/control/internal/services"
	"github.com/t766/control/internal/storage"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Handler contains all HTTP handlers
type Handler struct {
	logger       *logging.Logger
	store        storage.StatusStore
	syncService  *services.SyncService
	queryService *services.QueryService
	manifestRoot string
}

// New creates a new handler instance
func New(
	logger *logging.Logger,
	store storage.StatusStore,
	syncService *services.SyncService,
	queryService *services.QueryService,
	manifestRoot string,
) *Handler {
	return &Handler{
		logger:       logger,
		store:        store,
		syncService:  syncService,
		queryService: queryService,
		manifestRoot: manifestRoot,
	}
}

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
			Path:    c.Path(),
		},
	})
}

// serviceError maps a ServiceError code onto an HTTP status
func serviceError(c *fiber.Ctx, err error) error {
	svcErr, ok := err.(*services.ServiceError)
	if !ok {
		return err
	}

	status := fiber.StatusInternalServerError
	switch svcErr.Code {
	case services.CodeInvalidRequest:
		status = fiber.StatusBadRequest
	case services.CodePayloadTooLarge:
		status = fiber.StatusRequestEntityTooLarge
	case services.CodeNotFound:
		status = fiber.StatusNotFound
	}

	return c.Status(status).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
			Path:    c.Path(),
			Details: svcErr.Details,
		},
	})
}
