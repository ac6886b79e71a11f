package handler

import (
	"github.com/gofiber/fiber/v2"

	"go-proposal-review/internal/authz"
	"go-proposal-review/internal/middleware"
)

type Handlers struct {
	Auth      *AuthHandler
	Users     *UserHandler
	Proposals *ProposalHandler
	Reviews   *ReviewHandler
}

type RouteOptions struct {
	Authenticator middleware.Authenticator
	Authorizer    *authz.Authorizer
	// LoginLimiter guards the unauthenticated auth routes. Nil disables it.
	LoginLimiter fiber.Handler
}

// RegisterRoutes mounts the REST API under router (usually /api/v1).
func RegisterRoutes(router fiber.Router, h Handlers, opts RouteOptions) {
	requireAuth := middleware.RequireAuth(opts.Authenticator)
	can := func(object, action string) fiber.Handler {
		return middleware.RequirePermission(opts.Authorizer, object, action)
	}
	limit := opts.LoginLimiter
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}

	// ============ PUBLIC ROUTES ============
	auth := router.Group("/auth")
	auth.Post("/login", limit, h.Auth.Login)
	auth.Post("/reset-password", limit, h.Auth.ResetPassword)

	auth.Post("/logout", requireAuth, h.Auth.Logout)
	auth.Post("/refresh", requireAuth, h.Auth.Refresh)
	auth.Get("/me", requireAuth, h.Auth.Me)

	// ============ PROTECTED ROUTES ============
	protected := router.Group("", requireAuth)

	protected.Get("/users", can(authz.ObjectUser, authz.ActionRead), h.Users.GetUsers)
	protected.Get("/users/:id", can(authz.ObjectUser, authz.ActionRead), h.Users.GetUser)
	protected.Post("/users", can(authz.ObjectUser, authz.ActionCreate), h.Users.CreateUser)

	protected.Get("/proposals", can(authz.ObjectProposal, authz.ActionRead), h.Proposals.GetProposals)
	protected.Get("/proposals/stats", can(authz.ObjectProposal, authz.ActionRead), h.Proposals.GetStats)
	protected.Post("/proposals", can(authz.ObjectProposal, authz.ActionCreate), h.Proposals.CreateProposal)
	protected.Get("/proposals/:id", can(authz.ObjectProposal, authz.ActionRead), h.Proposals.GetProposal)
	protected.Put("/proposals/:id", can(authz.ObjectProposal, authz.ActionUpdate), h.Proposals.UpdateProposal)
	protected.Delete("/proposals/:id", can(authz.ObjectProposal, authz.ActionDelete), h.Proposals.DeleteProposal)
	protected.Post("/proposals/:id/submit", can(authz.ObjectProposal, authz.ActionSubmit), h.Proposals.SubmitProposal)
	protected.Post("/proposals/:id/resubmit", can(authz.ObjectProposal, authz.ActionSubmit), h.Proposals.ResubmitProposal)

	protected.Get("/proposals/:id/stakeholders", can(authz.ObjectStakeholder, authz.ActionRead), h.Reviews.GetStakeholders)
	protected.Post("/proposals/:id/stakeholders", can(authz.ObjectStakeholder, authz.ActionInvite), h.Reviews.InviteStakeholder)
	protected.Get("/proposals/:id/approvals", can(authz.ObjectApproval, authz.ActionRead), h.Reviews.GetApprovals)
	protected.Post("/proposals/:id/approval", can(authz.ObjectApproval, authz.ActionRecord), h.Reviews.RecordApproval)

	protected.Get("/invitations", can(authz.ObjectInvitation, authz.ActionRead), h.Reviews.GetInvitations)
	protected.Post("/invitations/:id/respond", can(authz.ObjectInvitation, authz.ActionRespond), h.Reviews.RespondToInvitation)
}
