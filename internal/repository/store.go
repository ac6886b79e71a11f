package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that take part in one unit of work.
type Store interface {
	Users() UserRepository
	Proposals() ProposalRepository
	Stakeholders() StakeholderRepository
	Approvals() ApprovalRepository

	// Transaction runs fn against a Store bound to a single database transaction.
	// Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository               { return NewUserRepo(s.db) }
func (s *gormStore) Proposals() ProposalRepository       { return NewProposalRepo(s.db) }
func (s *gormStore) Stakeholders() StakeholderRepository { return NewStakeholderRepo(s.db) }
func (s *gormStore) Approvals() ApprovalRepository       { return NewApprovalRepo(s.db) }

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
