package handler

import (
	"go-proposal-review/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ProposalHandler struct {
	proposalService service.ProposalService
}

func NewProposalHandler(proposalService service.ProposalService) *ProposalHandler {
	return &ProposalHandler{proposalService: proposalService}
}

// CreateProposal starts a new draft
// POST /api/v1/proposals
func (h *ProposalHandler) CreateProposal(c *fiber.Ctx) error {
	var req service.ProposalRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	proposal, err := h.proposalService.Create(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(proposal)
}

// GetProposals lists the proposals visible to the caller
// GET /api/v1/proposals?status=PENDING_APPROVAL&mine=true&limit=20&offset=0
func (h *ProposalHandler) GetProposals(c *fiber.Ctx) error {
	var query service.ListProposalsQuery
	if err := c.QueryParser(&query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid query parameters"})
	}

	proposals, err := h.proposalService.List(c.UserContext(), &query)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(proposals)
}

// GetStats counts visible proposals per status
// GET /api/v1/proposals/stats
func (h *ProposalHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.proposalService.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetProposal returns a proposal with its stakeholders and approvals
// GET /api/v1/proposals/:id
func (h *ProposalHandler) GetProposal(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	detail, err := h.proposalService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// UpdateProposal edits a draft or a proposal sent back for changes
// PUT /api/v1/proposals/:id
func (h *ProposalHandler) UpdateProposal(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req service.ProposalRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	proposal, err := h.proposalService.Update(c.UserContext(), id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(proposal)
}

// DeleteProposal removes a draft
// DELETE /api/v1/proposals/:id
func (h *ProposalHandler) DeleteProposal(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.proposalService.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SubmitProposal sends a draft for review
// POST /api/v1/proposals/:id/submit
func (h *ProposalHandler) SubmitProposal(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	proposal, err := h.proposalService.Submit(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(proposal)
}

// ResubmitProposal sends a revised proposal back for review
// POST /api/v1/proposals/:id/resubmit
func (h *ProposalHandler) ResubmitProposal(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	proposal, err := h.proposalService.Resubmit(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(proposal)
}
