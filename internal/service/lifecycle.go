package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-proposal-review/internal/metrics"
	"go-proposal-review/internal/model"
	"go-proposal-review/internal/repository"
	"go-proposal-review/internal/session"
	"go-proposal-review/internal/workflow"
	"go-proposal-review/internal/ws"
	"go-proposal-review/pkg/logger"
)

// transition is a status change made inside a transaction, reported after commit.
type transition struct {
	proposalID uuid.UUID
	from       model.ProposalStatus
	to         model.ProposalStatus
}

func (t transition) changed() bool {
	return t.from != t.to
}

// setStatus moves p to status and stamps the matching timestamps.
func setStatus(p *model.Proposal, to model.ProposalStatus, actor string, now time.Time) (transition, error) {
	t := transition{proposalID: p.ID, from: p.Status, to: to}
	if !workflow.CanTransition(p.Status, to) {
		return t, errors.Wrapf(workflow.ErrInvalidProposalState, "%s -> %s", p.Status, to)
	}
	if !t.changed() {
		return t, nil
	}

	p.Status = to
	if to == model.ProposalPendingApproval {
		p.SubmittedAt = &now
		p.DecidedAt = nil
	} else {
		p.DecidedAt = &now
	}
	p.UpdatedBy = actor
	return t, nil
}

// recompute derives the status of a pending proposal from the current approval
// set and moves it there. Callers must hold the proposal row lock.
func recompute(ctx context.Context, tx repository.Store, p *model.Proposal, actor string, now time.Time) (transition, error) {
	if p.Status != model.ProposalPendingApproval {
		return transition{proposalID: p.ID, from: p.Status, to: p.Status}, nil
	}

	approvals, err := tx.Approvals().FindByProposal(ctx, p.ID)
	if err != nil {
		return transition{}, err
	}
	stakeholders, err := tx.Stakeholders().FindByProposal(ctx, p.ID)
	if err != nil {
		return transition{}, err
	}

	next := workflow.Recompute(workflow.ActiveDecisions(approvals, stakeholders))
	t, err := setStatus(p, next, actor, now)
	if err != nil || !t.changed() {
		return t, err
	}
	return t, tx.Proposals().UpdateStatus(ctx, p)
}

// ensurePendingApprovals gives every active stakeholder an approval row.
func ensurePendingApprovals(ctx context.Context, tx repository.Store, proposalID uuid.UUID, stakeholders []model.Stakeholder, actor string) error {
	for _, st := range stakeholders {
		if !st.IsActive() {
			continue
		}
		_, err := tx.Approvals().FindByProposalAndUser(ctx, proposalID, st.UserID)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		approval := &model.Approval{
			ProposalID: proposalID,
			UserID:     st.UserID,
			Status:     model.ApprovalPending,
		}
		approval.UpdatedBy = actor
		if err := tx.Approvals().Create(ctx, approval); err != nil {
			return err
		}
	}
	return nil
}

// checkOwner allows the proposal's creator and admins.
func checkOwner(sess *session.Session, p *model.Proposal) error {
	if sess.IsAdmin() || p.IsOwnedBy(sess.UserID) {
		return nil
	}
	return errors.Wrap(ErrForbidden, "only the proposal owner may do this")
}

// checkVisible allows the owner, admins and anyone on the stakeholder roster.
func checkVisible(ctx context.Context, store repository.Store, sess *session.Session, p *model.Proposal) error {
	if checkOwner(sess, p) == nil {
		return nil
	}
	_, err := store.Stakeholders().FindByProposalAndUser(ctx, p.ID, sess.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return errors.Wrap(ErrForbidden, "proposal is not shared with you")
	}
	return err
}

// audience lists the users besides admins who follow a proposal's events:
// its owner and everyone on its roster.
func audience(p *model.Proposal, stakeholders []model.Stakeholder) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(stakeholders)+1)
	ids = append(ids, p.CreatedBy)
	for _, st := range stakeholders {
		ids = append(ids, st.UserID)
	}
	return ids
}

func loadAudience(ctx context.Context, tx repository.Store, p *model.Proposal) ([]uuid.UUID, error) {
	stakeholders, err := tx.Stakeholders().FindByProposal(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return audience(p, stakeholders), nil
}

// reportTransition records a committed status change in metrics, logs and events.
func reportTransition(ctx context.Context, log logrus.FieldLogger, events EventPublisher, sess *session.Session, t transition, watchers []uuid.UUID) {
	if !t.changed() {
		return
	}
	metrics.ObserveTransition(t.from, t.to)
	logger.FromContext(ctx, log).WithFields(logrus.Fields{
		"proposal_id": t.proposalID,
		"from":        t.from,
		"to":          t.to,
		"actor":       sess.Actor(),
	}).Info("proposal status changed")

	events.Publish(ws.Event{
		Type:       ws.EventStatusChanged,
		ProposalID: t.proposalID,
		Status:     string(t.to),
		ActorID:    sess.Actor(),
		ActorName:  sess.Name,
		Message:    string(t.from) + " -> " + string(t.to),
		Audience:   watchers,
	})
}
