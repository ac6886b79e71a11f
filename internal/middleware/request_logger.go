package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"go-proposal-review/internal/metrics"
	"go-proposal-review/pkg/logger"
)

// RequestLogger attaches a request scoped logrus entry to the user context,
// logs one line per request and feeds the HTTP metrics.
func RequestLogger(log logrus.FieldLogger) fiber.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()

		fields := logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			fields["request_id"] = id
		}
		entry := log.WithFields(fields)
		c.SetUserContext(logger.WithLogger(c.UserContext(), entry))

		err := c.Next()
		if err != nil {
			// Let the app error handler write the response so the status is final.
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		latency := time.Since(start)
		route := c.Route().Path
		metrics.ObserveRequest(c.Method(), route, status, latency)

		line := entry.WithFields(logrus.Fields{
			"status":  status,
			"latency": latency.String(),
			"route":   route,
		})
		msg := fmt.Sprintf("%s %s", c.Method(), c.Path())
		switch {
		case status >= fiber.StatusInternalServerError:
			line.Error(msg)
		case status >= fiber.StatusBadRequest:
			line.Warn(msg)
		default:
			line.Info(msg)
		}
		return nil
	}
}
