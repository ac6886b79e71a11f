package handler

import (
	"go-proposal-review/internal/model"
	"go-proposal-review/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ReviewHandler struct {
	reviewService service.ReviewService
}

func NewReviewHandler(reviewService service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// InviteStakeholder adds a reviewer to a proposal
// POST /api/v1/proposals/:id/stakeholders
func (h *ReviewHandler) InviteStakeholder(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req service.InviteRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	stakeholder, err := h.reviewService.InviteStakeholder(c.UserContext(), id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(stakeholder)
}

// GetStakeholders lists a proposal's reviewers
// GET /api/v1/proposals/:id/stakeholders
func (h *ReviewHandler) GetStakeholders(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	stakeholders, err := h.reviewService.ListStakeholders(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stakeholders)
}

// GetApprovals lists the decisions recorded on a proposal
// GET /api/v1/proposals/:id/approvals
func (h *ReviewHandler) GetApprovals(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	approvals, err := h.reviewService.ListApprovals(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(approvals)
}

// RecordApproval stores the caller's decision
// POST /api/v1/proposals/:id/approval
func (h *ReviewHandler) RecordApproval(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req service.ApprovalRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	result, err := h.reviewService.RecordApproval(c.UserContext(), id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetInvitations is the caller's invitation inbox
// GET /api/v1/invitations?status=PENDING
func (h *ReviewHandler) GetInvitations(c *fiber.Ctx) error {
	var status *model.InvitationStatus
	if s := c.Query("status"); s != "" {
		value := model.InvitationStatus(s)
		status = &value
	}

	invitations, err := h.reviewService.ListMyInvitations(c.UserContext(), status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(invitations)
}

// RespondToInvitation accepts or declines an invitation
// POST /api/v1/invitations/:id/respond
func (h *ReviewHandler) RespondToInvitation(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req service.RespondRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	stakeholder, err := h.reviewService.RespondToInvitation(c.UserContext(), id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stakeholder)
}
