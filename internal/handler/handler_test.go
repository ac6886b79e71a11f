package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-proposal-review/internal/authz"
	"go-proposal-review/internal/model"
	"go-proposal-review/internal/repository"
	"go-proposal-review/internal/service"
	"go-proposal-review/internal/session"
	"go-proposal-review/pkg/jwt"
	"go-proposal-review/pkg/validator"
)

// Fakes embed the service interface; calling a method a test did not stub panics.

type fakeAuth struct {
	service.AuthService
	sessions map[string]*session.Session
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*session.Session, error) {
	if s, ok := f.sessions[token]; ok {
		return s, nil
	}
	return nil, jwt.ErrInvalidToken
}

func (f *fakeAuth) Login(_ context.Context, req *service.LoginRequest) (*service.LoginResponse, error) {
	if req.Password != "secret" {
		return nil, service.ErrInvalidCredentials
	}
	return &service.LoginResponse{Token: "pm"}, nil
}

func (f *fakeAuth) CurrentUser(ctx context.Context) (*model.UserResponse, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return &model.UserResponse{ID: sess.UserID, Name: sess.Name, Role: sess.Role}, nil
}

type fakeProposals struct {
	service.ProposalService
	submitErr error
	created   *service.ProposalRequest
}

func (f *fakeProposals) Create(ctx context.Context, req *service.ProposalRequest) (*model.ProposalResponse, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	f.created = req
	return &model.ProposalResponse{ID: uuid.New(), ProductName: req.ProductName, Status: model.ProposalDraft, CreatedBy: sess.UserID}, nil
}

func (f *fakeProposals) Submit(_ context.Context, id uuid.UUID) (*model.ProposalResponse, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &model.ProposalResponse{ID: id, Status: model.ProposalPendingApproval}, nil
}

func (f *fakeProposals) List(_ context.Context, query *service.ListProposalsQuery) ([]model.ProposalResponse, error) {
	if query.Status != "" && !model.ProposalStatus(query.Status).IsValid() {
		return nil, &validator.Error{Fields: []*validator.ErrorResponse{{FailedField: "status", Tag: "oneof"}}}
	}
	return []model.ProposalResponse{}, nil
}

type fakeReviews struct {
	service.ReviewService
	recorded *service.ApprovalRequest
}

func (f *fakeReviews) RecordApproval(_ context.Context, _ uuid.UUID, req *service.ApprovalRequest) (*service.ApprovalResult, error) {
	f.recorded = req
	return &service.ApprovalResult{
		Approval:       model.ApprovalResponse{Status: req.Decision},
		ProposalStatus: model.ProposalRejected,
	}, nil
}

func (f *fakeReviews) InviteStakeholder(_ context.Context, _ uuid.UUID, _ *service.InviteRequest) (*model.StakeholderResponse, error) {
	return nil, service.ErrDuplicateInvitation
}

type testAPI struct {
	app       *fiber.App
	proposals *fakeProposals
	reviews   *fakeReviews
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	authorizer, err := authz.New("", quiet)
	require.NoError(t, err)

	auth := &fakeAuth{sessions: map[string]*session.Session{
		"pm":       {UserID: uuid.New(), Name: "pm", Role: model.RoleProductManager},
		"reviewer": {UserID: uuid.New(), Name: "reviewer", Role: model.RoleStakeholder},
	}}
	api := &testAPI{
		app:       fiber.New(),
		proposals: &fakeProposals{},
		reviews:   &fakeReviews{},
	}
	RegisterRoutes(api.app.Group("/api/v1"), Handlers{
		Auth:      NewAuthHandler(auth),
		Users:     NewUserHandler(nil),
		Proposals: NewProposalHandler(api.proposals),
		Reviews:   NewReviewHandler(api.reviews),
	}, RouteOptions{Authenticator: auth, Authorizer: authorizer})
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&validator.Error{}, http.StatusBadRequest},
		{errors.Wrap(service.ErrInvalidProposalState, "cannot submit"), http.StatusConflict},
		{service.ErrDuplicateInvitation, http.StatusConflict},
		{service.ErrAlreadyResponded, http.StatusConflict},
		{service.ErrNoStakeholders, http.StatusUnprocessableEntity},
		{service.ErrProposalNotFound, http.StatusNotFound},
		{errors.Wrap(repository.ErrNotFound, "find user"), http.StatusNotFound},
		{errors.Wrap(service.ErrForbidden, "not yours"), http.StatusForbidden},
		{service.ErrNotStakeholder, http.StatusForbidden},
		{session.ErrNoSession, http.StatusUnauthorized},
		{jwt.ErrInvalidToken, http.StatusUnauthorized},
		{fiber.NewError(http.StatusBadRequest, "Invalid id"), http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestAuthRoutes(t *testing.T) {
	api := newTestAPI(t)

	code, body := api.do(t, "POST", "/api/v1/auth/login", "", `{"email":"pm@example.com","password":"secret"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pm", body["token"])

	code, body = api.do(t, "POST", "/api/v1/auth/login", "", `{"email":"pm@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, service.ErrInvalidCredentials.Error(), body["error"])

	code, _ = api.do(t, "POST", "/api/v1/auth/login", "", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = api.do(t, "GET", "/api/v1/auth/me", "reviewer", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "reviewer", body["name"])

	code, _ = api.do(t, "GET", "/api/v1/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestProposalRoutes(t *testing.T) {
	api := newTestAPI(t)

	code, body := api.do(t, "POST", "/api/v1/proposals", "pm", `{"product_name":"Bar","category":"snacks","current_cost":"2.50"}`)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "DRAFT", body["status"])
	require.NotNil(t, api.proposals.created)
	assert.Equal(t, "2.5", api.proposals.created.CurrentCost.String())

	code, _ = api.do(t, "POST", "/api/v1/proposals", "reviewer", `{"product_name":"Bar"}`)
	assert.Equal(t, http.StatusForbidden, code, "stakeholders cannot create proposals")

	code, _ = api.do(t, "POST", "/api/v1/proposals/not-a-uuid/submit", "pm", "")
	assert.Equal(t, http.StatusBadRequest, code)

	id := uuid.New().String()
	code, body = api.do(t, "POST", "/api/v1/proposals/"+id+"/submit", "pm", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PENDING_APPROVAL", body["status"])

	api.proposals.submitErr = service.ErrNoStakeholders
	code, body = api.do(t, "POST", "/api/v1/proposals/"+id+"/submit", "pm", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, service.ErrNoStakeholders.Error(), body["error"])

	code, body = api.do(t, "GET", "/api/v1/proposals?status=BOGUS", "pm", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotNil(t, body["details"])
}

func TestReviewRoutes(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New().String()

	code, body := api.do(t, "POST", "/api/v1/proposals/"+id+"/approval", "reviewer", `{"decision":"REJECTED","comments":"too costly"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "REJECTED", body["proposal_status"])
	require.NotNil(t, api.reviews.recorded)
	assert.Equal(t, model.ApprovalRejected, api.reviews.recorded.Decision)
	assert.Equal(t, "too costly", api.reviews.recorded.Comments)

	code, _ = api.do(t, "POST", "/api/v1/proposals/"+id+"/stakeholders", "reviewer", `{"user_id":"`+uuid.NewString()+`"}`)
	assert.Equal(t, http.StatusForbidden, code, "stakeholders cannot invite")

	code, _ = api.do(t, "POST", "/api/v1/proposals/"+id+"/stakeholders", "pm", `{"user_id":"`+uuid.NewString()+`"}`)
	assert.Equal(t, http.StatusConflict, code)
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	app := fiber.New()
	app.Get("/up", NewHealthHandler(fakePinger{}).Healthz)
	app.Get("/down", NewHealthHandler(fakePinger{err: errors.New("dial tcp: refused")}).Healthz)

	resp, err := app.Test(httptest.NewRequest("GET", "/up", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/down", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
