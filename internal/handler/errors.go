package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-proposal-review/internal/repository"
	"go-proposal-review/internal/service"
	"go-proposal-review/internal/session"
	"go-proposal-review/pkg/jwt"
	"go-proposal-review/pkg/logger"
	"go-proposal-review/pkg/validator"
)

var statusByError = []struct {
	err    error
	status int
}{
	{session.ErrNoSession, fiber.StatusUnauthorized},
	{jwt.ErrMissingToken, fiber.StatusUnauthorized},
	{jwt.ErrInvalidToken, fiber.StatusUnauthorized},
	{service.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{service.ErrSessionRevoked, fiber.StatusUnauthorized},

	{service.ErrUserInactive, fiber.StatusForbidden},
	{service.ErrForbidden, fiber.StatusForbidden},
	{service.ErrNotStakeholder, fiber.StatusForbidden},

	{service.ErrProposalNotFound, fiber.StatusNotFound},
	{service.ErrInvitationNotFound, fiber.StatusNotFound},
	{service.ErrUserNotFound, fiber.StatusNotFound},
	{repository.ErrNotFound, fiber.StatusNotFound},

	{service.ErrDuplicateInvitation, fiber.StatusConflict},
	{service.ErrAlreadyResponded, fiber.StatusConflict},
	{service.ErrInvalidProposalState, fiber.StatusConflict},
	{service.ErrEmailExists, fiber.StatusConflict},
	{repository.ErrDuplicate, fiber.StatusConflict},

	{service.ErrNoStakeholders, fiber.StatusUnprocessableEntity},
	{service.ErrSelfInvitation, fiber.StatusBadRequest},
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var verr *validator.Error
	if errors.As(err, &verr) {
		return fiber.StatusBadRequest
	}
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return ferr.Code
	}
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as {"error": "..."}. Internal errors are logged and
// hidden from the client.
func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		logger.FromContext(c.UserContext(), nil).WithError(err).WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}).Error("request failed")
		return c.Status(status).JSON(fiber.Map{"error": "Internal server error"})
	}

	body := fiber.Map{"error": err.Error()}
	var verr *validator.Error
	if errors.As(err, &verr) {
		body["details"] = verr.Fields
	}
	return c.Status(status).JSON(body)
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+param)
	}
	return id, nil
}

func invalidJSON(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
}
