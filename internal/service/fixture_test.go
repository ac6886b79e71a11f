package service

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"go-proposal-review/internal/model"
	"go-proposal-review/internal/session"
	"go-proposal-review/internal/ws"
)

const testPassword = "correct-horse-battery"

type recordingPublisher struct {
	mu     sync.Mutex
	events []ws.Event
}

func (p *recordingPublisher) Publish(e ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

func (p *recordingPublisher) all() []ws.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ws.Event(nil), p.events...)
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fixture struct {
	store     *memStore
	events    *recordingPublisher
	proposals ProposalService
	reviews   ReviewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	events := &recordingPublisher{}
	log := quietLogger()
	return &fixture{
		store:     store,
		events:    events,
		proposals: NewProposalService(store, events, log),
		reviews:   NewReviewService(store, events, log),
	}
}

// addUser stores an active user. The password hash is left empty unless
// withPassword is set, which keeps bcrypt out of most tests.
func (f *fixture) addUser(t *testing.T, name string, role model.Role, withPassword bool) *model.User {
	t.Helper()
	user := &model.User{
		Email:    name + "@example.com",
		Name:     name,
		Role:     role,
		IsActive: true,
	}
	if withPassword {
		require.NoError(t, user.SetPassword(testPassword))
	}
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	return user
}

func as(user *model.User) context.Context {
	return session.WithSession(context.Background(), &session.Session{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
	})
}

func sampleRequest() *ProposalRequest {
	return &ProposalRequest{
		ProductName:        "Oat Crunch Bar",
		CurrentCost:        decimal.RequireFromString("1.2345"),
		Category:           "snacks",
		Formulation:        "oats, honey, sunflower oil",
		BusinessObjectives: []string{"reduce cost by 10%"},
		PriorityObjectives: []model.PriorityObjective{{Objective: "keep texture", Priority: "HIGH"}},
		Constraints:        model.Constraints{"regulatory": {"no palm oil"}},
		AcceptableChanges:  []string{"swap sweetener"},
		FeasibilityLimits:  []string{"existing line only"},
	}
}

func (f *fixture) draft(t *testing.T, owner *model.User) uuid.UUID {
	t.Helper()
	p, err := f.proposals.Create(as(owner), sampleRequest())
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) invite(t *testing.T, owner *model.User, proposalID uuid.UUID, reviewers ...*model.User) {
	t.Helper()
	for _, r := range reviewers {
		_, err := f.reviews.InviteStakeholder(as(owner), proposalID, &InviteRequest{UserID: r.ID})
		require.NoError(t, err)
	}
}

// pending creates a proposal reviewed by reviewers and submits it.
func (f *fixture) pending(t *testing.T, owner *model.User, reviewers ...*model.User) uuid.UUID {
	t.Helper()
	id := f.draft(t, owner)
	f.invite(t, owner, id, reviewers...)
	_, err := f.proposals.Submit(as(owner), id)
	require.NoError(t, err)
	return id
}

func (f *fixture) decide(t *testing.T, reviewer *model.User, proposalID uuid.UUID, decision model.ApprovalStatus) model.ProposalStatus {
	t.Helper()
	res, err := f.reviews.RecordApproval(as(reviewer), proposalID, &ApprovalRequest{Decision: decision, Comments: "looked at it"})
	require.NoError(t, err)
	return res.ProposalStatus
}

func (f *fixture) status(t *testing.T, proposalID uuid.UUID) model.ProposalStatus {
	t.Helper()
	p, err := f.store.Proposals().FindByID(context.Background(), proposalID)
	require.NoError(t, err)
	return p.Status
}

func (f *fixture) invitationOf(t *testing.T, proposalID uuid.UUID, user *model.User) uuid.UUID {
	t.Helper()
	st, err := f.store.Stakeholders().FindByProposalAndUser(context.Background(), proposalID, user.ID)
	require.NoError(t, err)
	return st.ID
}
