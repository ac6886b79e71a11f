package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"go-proposal-review/internal/model"
	"go-proposal-review/internal/repository"
	"go-proposal-review/internal/session"
	"go-proposal-review/internal/workflow"
	"go-proposal-review/internal/ws"
	"go-proposal-review/pkg/logger"
	"go-proposal-review/pkg/validator"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type ProposalService interface {
	Create(ctx context.Context, req *ProposalRequest) (*model.ProposalResponse, error)
	Update(ctx context.Context, id uuid.UUID, req *ProposalRequest) (*model.ProposalResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*ProposalDetail, error)
	List(ctx context.Context, query *ListProposalsQuery) ([]model.ProposalResponse, error)
	Submit(ctx context.Context, id uuid.UUID) (*model.ProposalResponse, error)
	Resubmit(ctx context.Context, id uuid.UUID) (*model.ProposalResponse, error)
	Stats(ctx context.Context) (*ProposalStats, error)
}

// ProposalRequest is the editable part of a proposal.
type ProposalRequest struct {
	ProductName          string                    `json:"product_name" validate:"required,notblank,max=255"`
	CurrentCost          decimal.Decimal           `json:"current_cost"`
	Category             string                    `json:"category" validate:"required,notblank,max=100"`
	Formulation          string                    `json:"formulation"`
	BusinessObjectives   []string                  `json:"business_objectives" validate:"dive,notblank"`
	PriorityObjectives   []model.PriorityObjective `json:"priority_objectives" validate:"dive"`
	Constraints          model.Constraints         `json:"constraints"`
	AcceptableChanges    []string                  `json:"acceptable_changes" validate:"dive,notblank"`
	NotAcceptableChanges []string                  `json:"not_acceptable_changes" validate:"dive,notblank"`
	FeasibilityLimits    []string                  `json:"feasibility_limits" validate:"dive,notblank"`
}

func (r *ProposalRequest) validate() error {
	if err := validator.Validate(r); err != nil {
		return err
	}
	if r.CurrentCost.IsNegative() {
		return &validator.Error{Fields: []*validator.ErrorResponse{
			{FailedField: "ProposalRequest.CurrentCost", Tag: "gte", Value: "0"},
		}}
	}
	return nil
}

func (r *ProposalRequest) apply(p *model.Proposal) {
	p.ProductName = strings.TrimSpace(r.ProductName)
	p.CurrentCost = r.CurrentCost.Round(2)
	p.Category = strings.TrimSpace(r.Category)
	p.Formulation = r.Formulation
	p.BusinessObjectives = datatypes.JSONSlice[string](r.BusinessObjectives)
	p.PriorityObjectives = datatypes.JSONSlice[model.PriorityObjective](r.PriorityObjectives)
	p.Constraints = datatypes.NewJSONType(r.Constraints)
	p.AcceptableChanges = datatypes.JSONSlice[string](r.AcceptableChanges)
	p.NotAcceptableChanges = datatypes.JSONSlice[string](r.NotAcceptableChanges)
	p.FeasibilityLimits = datatypes.JSONSlice[string](r.FeasibilityLimits)
}

type ListProposalsQuery struct {
	Status string `query:"status" validate:"omitempty,oneof=DRAFT PENDING_APPROVAL APPROVED REJECTED CHANGES_REQUESTED"`
	Mine   bool   `query:"mine"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `query:"offset" validate:"omitempty,min=0"`
}

// ProposalDetail is a proposal with its review roster.
type ProposalDetail struct {
	Proposal     model.ProposalResponse      `json:"proposal"`
	Stakeholders []model.StakeholderResponse `json:"stakeholders"`
	Approvals    []model.ApprovalResponse    `json:"approvals"`
}

type ProposalStats struct {
	Total    int64                          `json:"total"`
	ByStatus map[model.ProposalStatus]int64 `json:"by_status"`
}

type proposalService struct {
	store  repository.Store
	events EventPublisher
	log    logrus.FieldLogger
}

func NewProposalService(store repository.Store, events EventPublisher, log logrus.FieldLogger) ProposalService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &proposalService{
		store:  store,
		events: publisherOrNop(events),
		log:    log,
	}
}

func (s *proposalService) Create(ctx context.Context, req *ProposalRequest) (*model.ProposalResponse, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	proposal := &model.Proposal{
		Status:    model.ProposalDraft,
		CreatedBy: sess.UserID,
	}
	proposal.UpdatedBy = sess.Actor()
	req.apply(proposal)

	if err := s.store.Proposals().Create(ctx, proposal); err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.log).WithField("proposal_id", proposal.ID).Info("proposal created")
	s.events.Publish(ws.Event{
		Type:       ws.EventProposalCreated,
		ProposalID: proposal.ID,
		Status:     string(proposal.Status),
		ActorID:    sess.Actor(),
		ActorName:  sess.Name,
		Audience:   []uuid.UUID{proposal.CreatedBy},
	})

	response := proposal.ToResponse()
	return &response, nil
}

func (s *proposalService) Update(ctx context.Context, id uuid.UUID, req *ProposalRequest) (*model.ProposalResponse, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	var updated *model.Proposal
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.Proposals().FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrProposalNotFound)
		}
		if err := checkOwner(sess, p); err != nil {
			return err
		}
		if err := workflow.CheckEdit(p.Status); err != nil {
			return err
		}

		req.apply(p)
		p.UpdatedBy = sess.Actor()
		if err := tx.Proposals().Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	response := updated.ToResponse()
	return &response, nil
}

// Delete removes a proposal that has never been submitted.
func (s *proposalService) Delete(ctx context.Context, id uuid.UUID) error {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return err
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.Proposals().FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrProposalNotFound)
		}
		if err := checkOwner(sess, p); err != nil {
			return err
		}
		if err := workflow.CheckDelete(p.Status); err != nil {
			return err
		}
		return tx.Proposals().Delete(ctx, id, sess.Actor())
	})
	if err != nil {
		return err
	}

	logger.FromContext(ctx, s.log).WithField("proposal_id", id).Info("proposal deleted")
	return nil
}

func (s *proposalService) Get(ctx context.Context, id uuid.UUID) (*ProposalDetail, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.store.Proposals().FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrProposalNotFound)
	}
	if err := checkVisible(ctx, s.store, sess, p); err != nil {
		return nil, err
	}

	stakeholders, err := s.store.Stakeholders().FindByProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	approvals, err := s.store.Approvals().FindByProposal(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &ProposalDetail{
		Proposal:     p.ToResponse(),
		Stakeholders: make([]model.StakeholderResponse, len(stakeholders)),
		Approvals:    make([]model.ApprovalResponse, len(approvals)),
	}
	for i := range stakeholders {
		detail.Stakeholders[i] = stakeholders[i].ToResponse()
	}
	for i := range approvals {
		detail.Approvals[i] = approvals[i].ToResponse()
	}
	return detail, nil
}

// List returns every proposal to admins and only own or shared ones to everyone else.
func (s *proposalService) List(ctx context.Context, query *ListProposalsQuery) ([]model.ProposalResponse, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if query == nil {
		query = &ListProposalsQuery{}
	}
	if err := validator.Validate(query); err != nil {
		return nil, err
	}

	filter := repository.ProposalFilter{
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	if filter.Limit == 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if query.Status != "" {
		status := model.ProposalStatus(query.Status)
		filter.Status = &status
	}
	if query.Mine {
		filter.CreatedBy = &sess.UserID
	}
	if !sess.IsAdmin() {
		filter.VisibleTo = &sess.UserID
	}

	proposals, err := s.store.Proposals().List(ctx, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]model.ProposalResponse, len(proposals))
	for i := range proposals {
		responses[i] = proposals[i].ToResponse()
	}
	return responses, nil
}

// Submit sends a draft to its stakeholders: DRAFT -> PENDING_APPROVAL.
func (s *proposalService) Submit(ctx context.Context, id uuid.UUID) (*model.ProposalResponse, error) {
	return s.sendForReview(ctx, id, false)
}

// Resubmit sends a revised proposal back: CHANGES_REQUESTED -> PENDING_APPROVAL.
// Every earlier decision is discarded.
func (s *proposalService) Resubmit(ctx context.Context, id uuid.UUID) (*model.ProposalResponse, error) {
	return s.sendForReview(ctx, id, true)
}

func (s *proposalService) sendForReview(ctx context.Context, id uuid.UUID, resubmit bool) (*model.ProposalResponse, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	var (
		result   *model.Proposal
		change   transition
		watchers []uuid.UUID
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.Proposals().FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrProposalNotFound)
		}
		if err := checkOwner(sess, p); err != nil {
			return err
		}

		stakeholders, err := tx.Stakeholders().FindByProposal(ctx, id)
		if err != nil {
			return err
		}
		active := workflow.CountActive(stakeholders)

		if resubmit {
			if err := workflow.CheckResubmit(p.Status, active); err != nil {
				return err
			}
			if err := tx.Approvals().ResetByProposal(ctx, id, sess.Actor()); err != nil {
				return err
			}
		} else if err := workflow.CheckSubmit(p.Status, active); err != nil {
			return err
		}

		if err := ensurePendingApprovals(ctx, tx, id, stakeholders, sess.Actor()); err != nil {
			return err
		}

		change, err = setStatus(p, model.ProposalPendingApproval, sess.Actor(), time.Now())
		if err != nil {
			return err
		}
		if err := tx.Proposals().UpdateStatus(ctx, p); err != nil {
			return err
		}
		result = p
		watchers = audience(p, stakeholders)
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := ws.EventProposalSubmitted
	if resubmit {
		eventType = ws.EventProposalResubmitted
	}
	s.events.Publish(ws.Event{
		Type:       eventType,
		ProposalID: id,
		Status:     string(result.Status),
		ActorID:    sess.Actor(),
		ActorName:  sess.Name,
		Audience:   watchers,
	})
	reportTransition(ctx, s.log, s.events, sess, change, watchers)

	response := result.ToResponse()
	return &response, nil
}

func (s *proposalService) Stats(ctx context.Context) (*ProposalStats, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	var visibleTo *uuid.UUID
	if !sess.IsAdmin() {
		visibleTo = &sess.UserID
	}
	counts, err := s.store.Proposals().CountByStatus(ctx, visibleTo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load proposal stats")
	}

	stats := &ProposalStats{ByStatus: counts}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}
