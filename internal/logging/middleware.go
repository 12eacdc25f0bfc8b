package logging

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// MiddlewareConfig defines configuration for logging middleware
type MiddlewareConfig struct {
	// SkipPaths defines paths to skip logging
	SkipPaths []string
}

// DefaultMiddlewareConfig returns default middleware configuration
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		SkipPaths: []string{"/health"},
	}
}

// FiberMiddleware returns a Fiber middleware for request logging
func FiberMiddleware(logger *Logger, cfg MiddlewareConfig) fiber.Handler {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Generate request ID
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("X-Request-ID", requestID)

		// Add logger and request ID to context
		ctx := c.UserContext()
		ctx = WithRequestID(ctx, requestID)
		ctx = WithLogger(ctx, logger)
		c.SetUserContext(ctx)

		// Process request
		err := c.Next()

		if skip[c.Path()] {
			return err
		}

		duration := time.Since(start)
		statusCode := c.Response().StatusCode()

		k1, v1 := String("method", c.Method())
		k2, v2 := String("path", c.Path())
		k3, v3 := String("ip", c.IP())
		k4, v4 := Int("status", statusCode)
		k5, v5 := Int64("duration_ms", duration.Milliseconds())
		k6, v6 := String("request_id", requestID)

		fields := []interface{}{k1, v1, k2, v2, k3, v3, k4, v4, k5, v5, k6, v6}

		// Add error if exists
		if err != nil {
			kErr, vErr := Err(err)
			fields = append(fields, kErr, vErr)
			logger.Error("Request failed", fields...)
			return err
		}

		// Log based on status code
		if statusCode >= 500 {
			logger.Error("Server error", fields...)
		} else if statusCode >= 400 {
			logger.Warn("Client error", fields...)
		} else {
			logger.Info("Request completed", fields...)
		}

		return nil
	}
}
