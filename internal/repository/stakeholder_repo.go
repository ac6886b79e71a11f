package repository

import (
	"context"

	"go-proposal-review/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StakeholderRepository interface {
	Create(ctx context.Context, stakeholder *model.Stakeholder) error
	Update(ctx context.Context, stakeholder *model.Stakeholder) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Stakeholder, error)
	FindByProposal(ctx context.Context, proposalID uuid.UUID) ([]model.Stakeholder, error)
	FindByProposalAndUser(ctx context.Context, proposalID, userID uuid.UUID) (*model.Stakeholder, error)
	FindByUser(ctx context.Context, userID uuid.UUID, status *model.InvitationStatus) ([]model.Stakeholder, error)
}

type stakeholderRepo struct {
	db *gorm.DB
}

func NewStakeholderRepo(db *gorm.DB) StakeholderRepository {
	return &stakeholderRepo{db}
}

// Create fails with ErrDuplicate when the user is already on the proposal's roster.
func (r *stakeholderRepo) Create(ctx context.Context, stakeholder *model.Stakeholder) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(stakeholder).Error, "create stakeholder")
}

func (r *stakeholderRepo) Update(ctx context.Context, stakeholder *model.Stakeholder) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(stakeholder).Error, "update stakeholder")
}

func (r *stakeholderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Stakeholder, error) {
	var stakeholder model.Stakeholder
	if err := r.db.WithContext(ctx).Preload("User").First(&stakeholder, "id = ?", id).Error; err != nil {
		return nil, translate(err, "find stakeholder")
	}
	return &stakeholder, nil
}

func (r *stakeholderRepo) FindByProposal(ctx context.Context, proposalID uuid.UUID) ([]model.Stakeholder, error) {
	var stakeholders []model.Stakeholder
	if err := r.db.WithContext(ctx).Preload("User").
		Where("proposal_id = ?", proposalID).
		Order("invited_at ASC").
		Find(&stakeholders).Error; err != nil {
		return nil, translate(err, "list stakeholders")
	}
	return stakeholders, nil
}

func (r *stakeholderRepo) FindByProposalAndUser(ctx context.Context, proposalID, userID uuid.UUID) (*model.Stakeholder, error) {
	var stakeholder model.Stakeholder
	if err := r.db.WithContext(ctx).
		Where("proposal_id = ? AND user_id = ?", proposalID, userID).
		First(&stakeholder).Error; err != nil {
		return nil, translate(err, "find stakeholder")
	}
	return &stakeholder, nil
}

func (r *stakeholderRepo) FindByUser(ctx context.Context, userID uuid.UUID, status *model.InvitationStatus) ([]model.Stakeholder, error) {
	var stakeholders []model.Stakeholder
	q := r.db.WithContext(ctx).Preload("Proposal").Where("user_id = ?", userID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Order("invited_at DESC").Find(&stakeholders).Error; err != nil {
		return nil, translate(err, "list invitations")
	}
	return stakeholders, nil
}
