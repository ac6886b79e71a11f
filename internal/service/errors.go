package service

import (
	"github.com/pkg/errors"

	"go-proposal-review/internal/authz"
	"go-proposal-review/internal/repository"
	"go-proposal-review/internal/workflow"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrSessionRevoked     = errors.New("session is no longer valid, please sign in again")
	ErrEmailExists        = errors.New("email already exists")

	ErrProposalNotFound    = errors.New("proposal not found")
	ErrInvitationNotFound  = errors.New("invitation not found")
	ErrDuplicateInvitation = errors.New("user is already invited to this proposal")
	ErrAlreadyResponded    = errors.New("invitation has already been answered")
	ErrNotStakeholder      = errors.New("user is not an active stakeholder of this proposal")
	ErrSelfInvitation      = errors.New("proposal owner cannot be invited as a stakeholder")

	ErrForbidden            = authz.ErrForbidden
	ErrInvalidProposalState = workflow.ErrInvalidProposalState
	ErrNoStakeholders       = workflow.ErrNoStakeholders
)

// notFound swaps a repository miss for the service level sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return sentinel
	}
	return err
}
