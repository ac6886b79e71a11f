package repository

import (
	"context"

	"go-proposal-review/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProposalRepository interface {
	Create(ctx context.Context, proposal *model.Proposal) error
	Update(ctx context.Context, proposal *model.Proposal) error
	Delete(ctx context.Context, id uuid.UUID, deletedBy string) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Proposal, error)

	// FindByIDForUpdate locks the proposal row until the surrounding transaction ends.
	// Every status write goes through it so concurrent decisions serialize.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Proposal, error)

	List(ctx context.Context, filter ProposalFilter) ([]model.Proposal, error)
	UpdateStatus(ctx context.Context, proposal *model.Proposal) error
	CountByStatus(ctx context.Context, visibleTo *uuid.UUID) (map[model.ProposalStatus]int64, error)
}

// ProposalFilter narrows List. Nil fields are ignored.
type ProposalFilter struct {
	Status    *model.ProposalStatus
	CreatedBy *uuid.UUID
	VisibleTo *uuid.UUID // owner or invited stakeholder
	Limit     int
	Offset    int
}

type proposalRepo struct {
	db *gorm.DB
}

func NewProposalRepo(db *gorm.DB) ProposalRepository {
	return &proposalRepo{db}
}

func (r *proposalRepo) Create(ctx context.Context, proposal *model.Proposal) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(proposal).Error, "create proposal")
}

func (r *proposalRepo) Update(ctx context.Context, proposal *model.Proposal) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(proposal).Error, "update proposal")
}

func (r *proposalRepo) Delete(ctx context.Context, id uuid.UUID, deletedBy string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Proposal{}).Where("id = ?", id).Update("updated_by", deletedBy).Error; err != nil {
			return translate(err, "delete proposal")
		}
		return translate(tx.Delete(&model.Proposal{}, "id = ?", id).Error, "delete proposal")
	})
}

func (r *proposalRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Proposal, error) {
	var proposal model.Proposal
	if err := r.db.WithContext(ctx).Preload("Creator").First(&proposal, "id = ?", id).Error; err != nil {
		return nil, translate(err, "find proposal")
	}
	return &proposal, nil
}

func (r *proposalRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Proposal, error) {
	var proposal model.Proposal
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&proposal, "id = ?", id).Error; err != nil {
		return nil, translate(err, "lock proposal")
	}
	return &proposal, nil
}

func (r *proposalRepo) List(ctx context.Context, filter ProposalFilter) ([]model.Proposal, error) {
	var proposals []model.Proposal

	q := r.db.WithContext(ctx).Preload("Creator").Scopes(r.filterScope(filter)).Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	if err := q.Find(&proposals).Error; err != nil {
		return nil, translate(err, "list proposals")
	}
	return proposals, nil
}

func (r *proposalRepo) UpdateStatus(ctx context.Context, proposal *model.Proposal) error {
	return translate(r.db.WithContext(ctx).Model(&model.Proposal{}).
		Where("id = ?", proposal.ID).
		Updates(map[string]interface{}{
			"status":       proposal.Status,
			"submitted_at": proposal.SubmittedAt,
			"decided_at":   proposal.DecidedAt,
			"updated_by":   proposal.UpdatedBy,
		}).Error, "update proposal status")
}

type statusCount struct {
	Status model.ProposalStatus
	Count  int64
}

func (r *proposalRepo) CountByStatus(ctx context.Context, visibleTo *uuid.UUID) (map[model.ProposalStatus]int64, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).Model(&model.Proposal{}).
		Scopes(r.filterScope(ProposalFilter{VisibleTo: visibleTo})).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "count proposals")
	}

	counts := make(map[model.ProposalStatus]int64, len(model.ProposalStatuses))
	for _, status := range model.ProposalStatuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *proposalRepo) filterScope(filter ProposalFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.Status != nil {
			db = db.Where("status = ?", *filter.Status)
		}
		if filter.CreatedBy != nil {
			db = db.Where("created_by = ?", *filter.CreatedBy)
		}
		if filter.VisibleTo != nil {
			invited := r.db.Model(&model.Stakeholder{}).Select("proposal_id").Where("user_id = ?", *filter.VisibleTo)
			db = db.Where("created_by = ? OR id IN (?)", *filter.VisibleTo, invited)
		}
		return db
	}
}
