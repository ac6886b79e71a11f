// Package workflow holds the proposal status machine. Everything here is pure:
// callers load the approval set, ask for the next status and persist it.
package workflow

import (
	"github.com/pkg/errors"

	"go-proposal-review/internal/model"
)

var (
	ErrInvalidProposalState = errors.New("proposal is not in a state that allows this operation")
	ErrNoStakeholders       = errors.New("proposal has no invited stakeholders")
)

// transitions lists the allowed status changes. APPROVED and REJECTED are terminal.
var transitions = map[model.ProposalStatus]map[model.ProposalStatus]bool{
	model.ProposalDraft: {
		model.ProposalPendingApproval: true,
	},
	model.ProposalPendingApproval: {
		model.ProposalApproved:         true,
		model.ProposalRejected:         true,
		model.ProposalChangesRequested: true,
	},
	model.ProposalChangesRequested: {
		model.ProposalPendingApproval: true,
	},
	model.ProposalApproved: {},
	model.ProposalRejected: {},
}

// CanTransition reports whether from -> to is a legal move. Staying put is always legal.
func CanTransition(from, to model.ProposalStatus) bool {
	if from == to {
		return from.IsValid()
	}
	return transitions[from][to]
}

// IsTerminal reports whether no further transition can leave status.
func IsTerminal(status model.ProposalStatus) bool {
	next, ok := transitions[status]
	return ok && len(next) == 0
}

// Recompute derives the status of a pending proposal from its decision set.
// Negative outcomes win over pending ones, REJECTED wins over CHANGES_REQUESTED,
// and an empty set stays pending.
func Recompute(decisions []model.ApprovalStatus) model.ProposalStatus {
	if len(decisions) == 0 {
		return model.ProposalPendingApproval
	}

	approved := 0
	changesRequested := false
	for _, d := range decisions {
		switch d {
		case model.ApprovalRejected:
			return model.ProposalRejected
		case model.ApprovalChangesRequested:
			changesRequested = true
		case model.ApprovalApproved:
			approved++
		}
	}

	switch {
	case changesRequested:
		return model.ProposalChangesRequested
	case approved == len(decisions):
		return model.ProposalApproved
	default:
		return model.ProposalPendingApproval
	}
}

// ActiveDecisions filters approvals down to reviewers whose invitation is not declined.
func ActiveDecisions(approvals []model.Approval, stakeholders []model.Stakeholder) []model.ApprovalStatus {
	active := make(map[string]bool, len(stakeholders))
	for _, s := range stakeholders {
		if s.IsActive() {
			active[s.UserID.String()] = true
		}
	}

	decisions := make([]model.ApprovalStatus, 0, len(approvals))
	for _, a := range approvals {
		if active[a.UserID.String()] {
			decisions = append(decisions, a.Status)
		}
	}
	return decisions
}

// CountActive returns how many stakeholders have not declined.
func CountActive(stakeholders []model.Stakeholder) int {
	n := 0
	for _, s := range stakeholders {
		if s.IsActive() {
			n++
		}
	}
	return n
}

func CheckEdit(status model.ProposalStatus) error {
	if status != model.ProposalDraft && status != model.ProposalChangesRequested {
		return errors.Wrapf(ErrInvalidProposalState, "cannot edit a %s proposal", status)
	}
	return nil
}

func CheckDelete(status model.ProposalStatus) error {
	if status != model.ProposalDraft {
		return errors.Wrapf(ErrInvalidProposalState, "cannot delete a %s proposal", status)
	}
	return nil
}

func CheckInvite(status model.ProposalStatus) error {
	if !status.IsValid() || IsTerminal(status) {
		return errors.Wrapf(ErrInvalidProposalState, "cannot invite reviewers to a %s proposal", status)
	}
	return nil
}

// CheckSubmit guards DRAFT -> PENDING_APPROVAL.
func CheckSubmit(status model.ProposalStatus, activeStakeholders int) error {
	if status != model.ProposalDraft {
		return errors.Wrapf(ErrInvalidProposalState, "cannot submit a %s proposal", status)
	}
	if activeStakeholders == 0 {
		return ErrNoStakeholders
	}
	return nil
}

// CheckResubmit guards CHANGES_REQUESTED -> PENDING_APPROVAL.
func CheckResubmit(status model.ProposalStatus, activeStakeholders int) error {
	if status != model.ProposalChangesRequested {
		return errors.Wrapf(ErrInvalidProposalState, "cannot resubmit a %s proposal", status)
	}
	if activeStakeholders == 0 {
		return ErrNoStakeholders
	}
	return nil
}

func CheckRecordApproval(status model.ProposalStatus) error {
	if status != model.ProposalPendingApproval {
		return errors.Wrapf(ErrInvalidProposalState, "cannot record a decision on a %s proposal", status)
	}
	return nil
}
