package service

import (
	"context"
	"strings"
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
	"go-proposal-review/pkg/validator"
)

// ReviewService manages who reviews a proposal and what they decided.
type ReviewService interface {
	InviteStakeholder(ctx context.Context, proposalID uuid.UUID, req *InviteRequest) (*model.StakeholderResponse, error)
	ListStakeholders(ctx context.Context, proposalID uuid.UUID) ([]model.StakeholderResponse, error)
	ListMyInvitations(ctx context.Context, status *model.InvitationStatus) ([]model.StakeholderResponse, error)
	RespondToInvitation(ctx context.Context, stakeholderID uuid.UUID, req *RespondRequest) (*model.StakeholderResponse, error)
	RecordApproval(ctx context.Context, proposalID uuid.UUID, req *ApprovalRequest) (*ApprovalResult, error)
	ListApprovals(ctx context.Context, proposalID uuid.UUID) ([]model.ApprovalResponse, error)
}

type InviteRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"uuid_required"`
}

type RespondRequest struct {
	Status model.InvitationStatus `json:"status" validate:"required,oneof=ACCEPTED DECLINED"`
}

type ApprovalRequest struct {
	Decision model.ApprovalStatus `json:"decision" validate:"required,oneof=APPROVED CHANGES_REQUESTED REJECTED"`
	Comments string               `json:"comments" validate:"max=4000"`
}

// ApprovalResult is the recorded decision and the proposal status it led to.
type ApprovalResult struct {
	Approval       model.ApprovalResponse `json:"approval"`
	ProposalStatus model.ProposalStatus   `json:"proposal_status"`
}

type reviewService struct {
	store  repository.Store
	events EventPublisher
	log    logrus.FieldLogger
}

func NewReviewService(store repository.Store, events EventPublisher, log logrus.FieldLogger) ReviewService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &reviewService{
		store:  store,
		events: publisherOrNop(events),
		log:    log,
	}
}

// InviteStakeholder adds a reviewer to the roster. A reviewer invited while the
// proposal is under review joins the decision set straight away.
func (s *reviewService) InviteStakeholder(ctx context.Context, proposalID uuid.UUID, req *InviteRequest) (*model.StakeholderResponse, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		invited  *model.Stakeholder
		watchers []uuid.UUID
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.Proposals().FindByIDForUpdate(ctx, proposalID)
		if err != nil {
			return notFound(err, ErrProposalNotFound)
		}
		if err := checkOwner(sess, p); err != nil {
			return err
		}
		if err := workflow.CheckInvite(p.Status); err != nil {
			return err
		}
		if p.IsOwnedBy(req.UserID) {
			return ErrSelfInvitation
		}

		user, err := tx.Users().FindByID(ctx, req.UserID)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if !user.IsActive {
			return ErrUserInactive
		}

		_, err = tx.Stakeholders().FindByProposalAndUser(ctx, proposalID, req.UserID)
		switch {
		case err == nil:
			return ErrDuplicateInvitation
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		st := &model.Stakeholder{
			ProposalID: proposalID,
			UserID:     req.UserID,
			Status:     model.InvitationPending,
			InvitedBy:  sess.UserID,
			InvitedAt:  time.Now(),
		}
		st.UpdatedBy = sess.Actor()
		if err := tx.Stakeholders().Create(ctx, st); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateInvitation
			}
			return err
		}

		if p.Status == model.ProposalPendingApproval {
			if err := ensurePendingApprovals(ctx, tx, proposalID, []model.Stakeholder{*st}, sess.Actor()); err != nil {
				return err
			}
		}

		watchers, err = loadAudience(ctx, tx, p)
		if err != nil {
			return err
		}
		st.User = user
		invited = st
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"user_id":     req.UserID,
	}).Info("stakeholder invited")
	s.events.Publish(ws.Event{
		Type:       ws.EventStakeholderInvited,
		ProposalID: proposalID,
		ActorID:    sess.Actor(),
		ActorName:  sess.Name,
		Data:       map[string]string{"user_id": req.UserID.String()},
		Audience:   watchers,
	})

	response := invited.ToResponse()
	return &response, nil
}

func (s *reviewService) ListStakeholders(ctx context.Context, proposalID uuid.UUID) ([]model.StakeholderResponse, error) {
	if err := s.checkProposalVisible(ctx, proposalID); err != nil {
		return nil, err
	}

	stakeholders, err := s.store.Stakeholders().FindByProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	responses := make([]model.StakeholderResponse, len(stakeholders))
	for i := range stakeholders {
		responses[i] = stakeholders[i].ToResponse()
	}
	return responses, nil
}

// ListMyInvitations is the caller's invitation inbox, optionally narrowed by status.
func (s *reviewService) ListMyInvitations(ctx context.Context, status *model.InvitationStatus) ([]model.StakeholderResponse, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, &validator.Error{Fields: []*validator.ErrorResponse{
			{FailedField: "status", Tag: "oneof", Value: "PENDING ACCEPTED DECLINED"},
		}}
	}

	invitations, err := s.store.Stakeholders().FindByUser(ctx, sess.UserID, status)
	if err != nil {
		return nil, err
	}
	responses := make([]model.StakeholderResponse, len(invitations))
	for i := range invitations {
		responses[i] = invitations[i].ToResponse()
	}
	return responses, nil
}

// RespondToInvitation accepts or declines an invitation once. Declining while
// the proposal is under review drops the reviewer from the decision set, which
// may settle the proposal.
func (s *reviewService) RespondToInvitation(ctx context.Context, stakeholderID uuid.UUID, req *RespondRequest) (*model.StakeholderResponse, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		answered *model.Stakeholder
		change   transition
		watchers []uuid.UUID
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		st, err := tx.Stakeholders().FindByID(ctx, stakeholderID)
		if err != nil {
			return notFound(err, ErrInvitationNotFound)
		}
		if st.UserID != sess.UserID {
			return errors.Wrap(ErrForbidden, "invitation belongs to another user")
		}

		p, err := tx.Proposals().FindByIDForUpdate(ctx, st.ProposalID)
		if err != nil {
			return notFound(err, ErrProposalNotFound)
		}

		// Re-read under the proposal lock.
		st, err = tx.Stakeholders().FindByID(ctx, stakeholderID)
		if err != nil {
			return notFound(err, ErrInvitationNotFound)
		}
		if st.HasResponded() {
			return ErrAlreadyResponded
		}

		now := time.Now()
		st.Status = req.Status
		st.RespondedAt = &now
		st.UpdatedBy = sess.Actor()
		if err := tx.Stakeholders().Update(ctx, st); err != nil {
			return err
		}

		if st.Status == model.InvitationDeclined {
			change, err = recompute(ctx, tx, p, sess.Actor(), now)
			if err != nil {
				return err
			}
		}
		watchers, err = loadAudience(ctx, tx, p)
		if err != nil {
			return err
		}
		answered = st
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveInvitationResponse(answered.Status)
	logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"proposal_id": answered.ProposalID,
		"user_id":     sess.UserID,
		"status":      answered.Status,
	}).Info("invitation answered")
	s.events.Publish(ws.Event{
		Type:       ws.EventInvitationResponded,
		ProposalID: answered.ProposalID,
		Status:     string(answered.Status),
		ActorID:    sess.Actor(),
		ActorName:  sess.Name,
		Audience:   watchers,
	})
	reportTransition(ctx, s.log, s.events, sess, change, watchers)

	response := answered.ToResponse()
	return &response, nil
}

// RecordApproval stores the caller's decision and recomputes the proposal
// status in the same transaction, with the proposal row locked so concurrent
// decisions apply one after another.
func (s *reviewService) RecordApproval(ctx context.Context, proposalID uuid.UUID, req *ApprovalRequest) (*ApprovalResult, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		recorded *model.Approval
		status   model.ProposalStatus
		change   transition
		watchers []uuid.UUID
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.Proposals().FindByIDForUpdate(ctx, proposalID)
		if err != nil {
			return notFound(err, ErrProposalNotFound)
		}
		if err := workflow.CheckRecordApproval(p.Status); err != nil {
			return err
		}

		st, err := tx.Stakeholders().FindByProposalAndUser(ctx, proposalID, sess.UserID)
		if err != nil {
			return notFound(err, ErrNotStakeholder)
		}
		if !st.IsActive() {
			return ErrNotStakeholder
		}

		now := time.Now()
		approval, err := tx.Approvals().FindByProposalAndUser(ctx, proposalID, sess.UserID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			approval = &model.Approval{ProposalID: proposalID, UserID: sess.UserID}
		case err != nil:
			return err
		}
		approval.Status = req.Decision
		approval.Comments = strings.TrimSpace(req.Comments)
		approval.DecidedAt = &now
		approval.UpdatedBy = sess.Actor()

		if approval.ID == uuid.Nil {
			err = tx.Approvals().Create(ctx, approval)
		} else {
			err = tx.Approvals().Update(ctx, approval)
		}
		if err != nil {
			return err
		}

		change, err = recompute(ctx, tx, p, sess.Actor(), now)
		if err != nil {
			return err
		}
		watchers, err = loadAudience(ctx, tx, p)
		if err != nil {
			return err
		}
		recorded = approval
		status = p.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveDecision(recorded.Status)
	logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"user_id":     sess.UserID,
		"decision":    recorded.Status,
	}).Info("approval recorded")
	s.events.Publish(ws.Event{
		Type:       ws.EventApprovalRecorded,
		ProposalID: proposalID,
		Status:     string(recorded.Status),
		ActorID:    sess.Actor(),
		ActorName:  sess.Name,
		Audience:   watchers,
	})
	reportTransition(ctx, s.log, s.events, sess, change, watchers)

	return &ApprovalResult{
		Approval:       recorded.ToResponse(),
		ProposalStatus: status,
	}, nil
}

func (s *reviewService) ListApprovals(ctx context.Context, proposalID uuid.UUID) ([]model.ApprovalResponse, error) {
	if err := s.checkProposalVisible(ctx, proposalID); err != nil {
		return nil, err
	}

	approvals, err := s.store.Approvals().FindByProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	responses := make([]model.ApprovalResponse, len(approvals))
	for i := range approvals {
		responses[i] = approvals[i].ToResponse()
	}
	return responses, nil
}

func (s *reviewService) checkProposalVisible(ctx context.Context, proposalID uuid.UUID) error {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return err
	}
	p, err := s.store.Proposals().FindByID(ctx, proposalID)
	if err != nil {
		return notFound(err, ErrProposalNotFound)
	}
	return checkVisible(ctx, s.store, sess, p)
}
