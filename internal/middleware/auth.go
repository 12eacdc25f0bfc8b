package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/t766/control/internal/config"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
	"github.com/t766/control/internal/utils"
)

// MinAPIKeyLength is the minimum required length for API keys
const MinAPIKeyLength = 32

// ValidateAPIKey checks if an API key meets the security requirements
func ValidateAPIKey(key string) bool {
	return len(key) >= MinAPIKeyLength && strings.TrimSpace(key) != ""
}

// APIKeyAuth guards the read API. Node submissions and manifest downloads
// are never routed through it.
func APIKeyAuth(logger *logging.Logger, cfg config.AuthConfig) fiber.Handler {
	if !cfg.Enabled {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	keys := make([][]byte, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		if key == "" {
			continue
		}
		if !ValidateAPIKey(key) {
			logger.Warn("API key does not meet security requirements",
				"key_length", len(key),
				"min_required", MinAPIKeyLength,
				"key_prefix", maskAPIKey(key),
			)
			continue
		}
		keys = append(keys, []byte(key))
	}

	if len(keys) == 0 {
		logger.Error("Auth enabled but no valid API keys configured, all read requests will be rejected",
			"total_keys", len(cfg.APIKeys),
			"min_required_length", MinAPIKeyLength,
		)
	}

	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKey(c)
		if apiKey == "" {
			logger.Warn("API key missing",
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
			)
			return unauthorized(c, "API key is required. Provide it via X-API-Key header or Authorization header.")
		}

		if !matchKey(keys, []byte(apiKey)) {
			logger.Warn("Invalid API key",
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
				"api_key_prefix", maskAPIKey(apiKey),
			)
			return unauthorized(c, "Invalid API key.")
		}

		return c.Next()
	}
}

// extractAPIKey accepts "X-API-Key: k", "Authorization: Bearer k" and "Authorization: k"
func extractAPIKey(c *fiber.Ctx) string {
	if key := c.Get(utils.HeaderAPIKey); key != "" {
		return key
	}
	auth := c.Get(fiber.HeaderAuthorization)
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return after
	}
	return auth
}

func matchKey(keys [][]byte, candidate []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, candidate)
	}
	return found == 1
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    "UNAUTHORIZED",
			Message: message,
		},
	})
}

// maskAPIKey masks API key for logging (show only first 4 chars)
func maskAPIKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
