package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-proposal-review/internal/model"
	"go-proposal-review/internal/repository"
)

// memStore is an in-memory repository.Store. Transactions run one at a time
// and are rolled back from a snapshot when fn fails.
type memStore struct {
	mu   *sync.Mutex
	txMu *sync.Mutex
	data *memData
	inTx bool
}

type memData struct {
	seq          int
	order        map[uuid.UUID]int
	users        map[uuid.UUID]model.User
	proposals    map[uuid.UUID]model.Proposal
	stakeholders map[uuid.UUID]model.Stakeholder
	approvals    map[uuid.UUID]model.Approval
}

func newMemStore() *memStore {
	return &memStore{
		mu:   &sync.Mutex{},
		txMu: &sync.Mutex{},
		data: &memData{
			order:        map[uuid.UUID]int{},
			users:        map[uuid.UUID]model.User{},
			proposals:    map[uuid.UUID]model.Proposal{},
			stakeholders: map[uuid.UUID]model.Stakeholder{},
			approvals:    map[uuid.UUID]model.Approval{},
		},
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		seq:          d.seq,
		order:        make(map[uuid.UUID]int, len(d.order)),
		users:        make(map[uuid.UUID]model.User, len(d.users)),
		proposals:    make(map[uuid.UUID]model.Proposal, len(d.proposals)),
		stakeholders: make(map[uuid.UUID]model.Stakeholder, len(d.stakeholders)),
		approvals:    make(map[uuid.UUID]model.Approval, len(d.approvals)),
	}
	for k, v := range d.order {
		c.order[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.proposals {
		c.proposals[k] = v
	}
	for k, v := range d.stakeholders {
		c.stakeholders[k] = v
	}
	for k, v := range d.approvals {
		c.approvals[k] = v
	}
	return c
}

// stamp assigns an ID and timestamps to a new row.
func (d *memData) stamp(base *model.BaseModel) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	now := time.Now()
	base.CreatedAt = now
	base.UpdatedAt = now
	d.seq++
	d.order[base.ID] = d.seq
}

func (d *memData) sortByOrder(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return d.order[ids[i]] < d.order[ids[j]] })
}

func (s *memStore) Users() repository.UserRepository               { return &memUsers{s} }
func (s *memStore) Proposals() repository.ProposalRepository       { return &memProposals{s} }
func (s *memStore) Stakeholders() repository.StakeholderRepository { return &memStakeholders{s} }
func (s *memStore) Approvals() repository.ApprovalRepository       { return &memApprovals{s} }

func (s *memStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	tx := &memStore{mu: s.mu, txMu: s.txMu, data: s.data, inTx: true}
	if err := fn(tx); err != nil {
		s.mu.Lock()
		*s.data = *snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) user(id uuid.UUID) *model.User {
	if u, ok := s.data.users[id]; ok {
		return &u
	}
	return nil
}

type memUsers struct{ s *memStore }

func (r *memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUsers) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u := r.s.user(id); u != nil {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memUsers) FindAll(_ context.Context, role *model.Role) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var users []model.User
	for _, u := range r.s.data.users {
		if role == nil || u.Role == *role {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *memUsers) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	r.s.data.stamp(&user.BaseModel)
	r.s.data.users[user.ID] = *user
	return nil
}

func (r *memUsers) Update(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.UpdatedAt = time.Now()
	r.s.data.users[user.ID] = *user
	return nil
}

func (r *memUsers) modify(id uuid.UUID, fn func(u *model.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil
	}
	fn(&u)
	r.s.data.users[id] = u
	return nil
}

func (r *memUsers) UpdatePassword(_ context.Context, id uuid.UUID, hashed string) error {
	return r.modify(id, func(u *model.User) { u.Password = hashed })
}

func (r *memUsers) UpdateTokenVersion(_ context.Context, id uuid.UUID, version string) error {
	return r.modify(id, func(u *model.User) { u.TokenVersion = version })
}

func (r *memUsers) UpdateLastSeen(_ context.Context, id uuid.UUID) error {
	return r.modify(id, func(u *model.User) {
		now := time.Now()
		u.LastSeenAt = &now
	})
}

type memProposals struct{ s *memStore }

func (r *memProposals) Create(_ context.Context, p *model.Proposal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.stamp(&p.BaseModel)
	row := *p
	row.Creator = nil
	r.s.data.proposals[p.ID] = row
	return nil
}

func (r *memProposals) Update(_ context.Context, p *model.Proposal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.proposals[p.ID]; !ok {
		return repository.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	row := *p
	row.Creator = nil
	r.s.data.proposals[p.ID] = row
	return nil
}

func (r *memProposals) Delete(_ context.Context, id uuid.UUID, _ string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.data.proposals, id)
	return nil
}

func (r *memProposals) FindByID(_ context.Context, id uuid.UUID) (*model.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.proposals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Creator = r.s.user(p.CreatedBy)
	return &p, nil
}

func (r *memProposals) FindByIDForUpdate(_ context.Context, id uuid.UUID) (*model.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.proposals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *memProposals) visible(p model.Proposal, userID uuid.UUID) bool {
	if p.CreatedBy == userID {
		return true
	}
	for _, st := range r.s.data.stakeholders {
		if st.ProposalID == p.ID && st.UserID == userID {
			return true
		}
	}
	return false
}

func (r *memProposals) matches(p model.Proposal, f repository.ProposalFilter) bool {
	if f.Status != nil && p.Status != *f.Status {
		return false
	}
	if f.CreatedBy != nil && p.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.VisibleTo != nil && !r.visible(p, *f.VisibleTo) {
		return false
	}
	return true
}

func (r *memProposals) List(_ context.Context, f repository.ProposalFilter) ([]model.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var ids []uuid.UUID
	for id, p := range r.s.data.proposals {
		if r.matches(p, f) {
			ids = append(ids, id)
		}
	}
	r.s.data.sortByOrder(ids)

	// newest first
	proposals := make([]model.Proposal, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		p := r.s.data.proposals[ids[i]]
		p.Creator = r.s.user(p.CreatedBy)
		proposals = append(proposals, p)
	}
	if f.Offset > 0 {
		if f.Offset >= len(proposals) {
			return []model.Proposal{}, nil
		}
		proposals = proposals[f.Offset:]
	}
	if f.Limit > 0 && len(proposals) > f.Limit {
		proposals = proposals[:f.Limit]
	}
	return proposals, nil
}

func (r *memProposals) UpdateStatus(_ context.Context, p *model.Proposal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.data.proposals[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row.Status = p.Status
	row.SubmittedAt = p.SubmittedAt
	row.DecidedAt = p.DecidedAt
	row.UpdatedBy = p.UpdatedBy
	r.s.data.proposals[p.ID] = row
	return nil
}

func (r *memProposals) CountByStatus(_ context.Context, visibleTo *uuid.UUID) (map[model.ProposalStatus]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[model.ProposalStatus]int64{}
	for _, status := range model.ProposalStatuses {
		counts[status] = 0
	}
	for _, p := range r.s.data.proposals {
		if r.matches(p, repository.ProposalFilter{VisibleTo: visibleTo}) {
			counts[p.Status]++
		}
	}
	return counts, nil
}

type memStakeholders struct{ s *memStore }

func (r *memStakeholders) Create(_ context.Context, st *model.Stakeholder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.stakeholders {
		if existing.ProposalID == st.ProposalID && existing.UserID == st.UserID {
			return repository.ErrDuplicate
		}
	}
	r.s.data.stamp(&st.BaseModel)
	row := *st
	row.User, row.Proposal = nil, nil
	r.s.data.stakeholders[st.ID] = row
	return nil
}

func (r *memStakeholders) Update(_ context.Context, st *model.Stakeholder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st.UpdatedAt = time.Now()
	row := *st
	row.User, row.Proposal = nil, nil
	r.s.data.stakeholders[st.ID] = row
	return nil
}

func (r *memStakeholders) FindByID(_ context.Context, id uuid.UUID) (*model.Stakeholder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.data.stakeholders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	st.User = r.s.user(st.UserID)
	return &st, nil
}

func (r *memStakeholders) collect(keep func(model.Stakeholder) bool) []model.Stakeholder {
	var ids []uuid.UUID
	for id, st := range r.s.data.stakeholders {
		if keep(st) {
			ids = append(ids, id)
		}
	}
	r.s.data.sortByOrder(ids)
	out := make([]model.Stakeholder, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.s.data.stakeholders[id])
	}
	return out
}

func (r *memStakeholders) FindByProposal(_ context.Context, proposalID uuid.UUID) ([]model.Stakeholder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.collect(func(st model.Stakeholder) bool { return st.ProposalID == proposalID })
	for i := range out {
		out[i].User = r.s.user(out[i].UserID)
	}
	return out, nil
}

func (r *memStakeholders) FindByProposalAndUser(_ context.Context, proposalID, userID uuid.UUID) (*model.Stakeholder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.data.stakeholders {
		if st.ProposalID == proposalID && st.UserID == userID {
			return &st, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memStakeholders) FindByUser(_ context.Context, userID uuid.UUID, status *model.InvitationStatus) ([]model.Stakeholder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.collect(func(st model.Stakeholder) bool {
		return st.UserID == userID && (status == nil || st.Status == *status)
	})
	for i := range out {
		if p, ok := r.s.data.proposals[out[i].ProposalID]; ok {
			out[i].Proposal = &p
		}
	}
	return out, nil
}

type memApprovals struct{ s *memStore }

func (r *memApprovals) Create(_ context.Context, a *model.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.approvals {
		if existing.ProposalID == a.ProposalID && existing.UserID == a.UserID {
			return repository.ErrDuplicate
		}
	}
	r.s.data.stamp(&a.BaseModel)
	row := *a
	row.User = nil
	r.s.data.approvals[a.ID] = row
	return nil
}

func (r *memApprovals) Update(_ context.Context, a *model.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.UpdatedAt = time.Now()
	row := *a
	row.User = nil
	r.s.data.approvals[a.ID] = row
	return nil
}

func (r *memApprovals) FindByProposal(_ context.Context, proposalID uuid.UUID) ([]model.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uuid.UUID
	for id, a := range r.s.data.approvals {
		if a.ProposalID == proposalID {
			ids = append(ids, id)
		}
	}
	r.s.data.sortByOrder(ids)
	out := make([]model.Approval, 0, len(ids))
	for _, id := range ids {
		a := r.s.data.approvals[id]
		a.User = r.s.user(a.UserID)
		out = append(out, a)
	}
	return out, nil
}

func (r *memApprovals) FindByProposalAndUser(_ context.Context, proposalID, userID uuid.UUID) (*model.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.data.approvals {
		if a.ProposalID == proposalID && a.UserID == userID {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memApprovals) ResetByProposal(_ context.Context, proposalID uuid.UUID, updatedBy string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, a := range r.s.data.approvals {
		if a.ProposalID == proposalID {
			a.Status = model.ApprovalPending
			a.Comments = ""
			a.DecidedAt = nil
			a.UpdatedBy = updatedBy
			r.s.data.approvals[id] = a
		}
	}
	return nil
}
