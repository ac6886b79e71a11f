package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-proposal-review/internal/model"
	"go-proposal-review/internal/repository"
	"go-proposal-review/internal/session"
	"go-proposal-review/pkg/logger"
	"go-proposal-review/pkg/validator"
)

type UserService interface {
	CreateUser(ctx context.Context, req *CreateUserRequest) (*model.UserResponse, error)
	ListUsers(ctx context.Context, role *model.Role) ([]model.UserResponse, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.UserResponse, error)
}

type CreateUserRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8"`
	Name     string     `json:"name" validate:"required,notblank,max=255"`
	Role     model.Role `json:"role" validate:"required,oneof=ADMIN PRODUCT_MANAGER STAKEHOLDER"`
}

type userService struct {
	userRepo repository.UserRepository
	log      logrus.FieldLogger
}

func NewUserService(userRepo repository.UserRepository, log logrus.FieldLogger) UserService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &userService{
		userRepo: userRepo,
		log:      log,
	}
}

func (s *userService) CreateUser(ctx context.Context, req *CreateUserRequest) (*model.UserResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	creator := "system"
	if sess, err := session.FromContext(ctx); err == nil {
		creator = sess.Actor()
	}

	_, err := s.userRepo.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, ErrEmailExists
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	user := &model.User{
		Email:     req.Email,
		Name:      strings.TrimSpace(req.Name),
		Role:      req.Role,
		IsActive:  true,
		CreatedBy: creator,
	}
	user.UpdatedBy = creator
	if err := user.SetPassword(req.Password); err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("user created")

	response := user.ToResponse()
	return &response, nil
}

func (s *userService) ListUsers(ctx context.Context, role *model.Role) ([]model.UserResponse, error) {
	if role != nil && !role.IsValid() {
		return nil, &validator.Error{Fields: []*validator.ErrorResponse{
			{FailedField: "role", Tag: "oneof", Value: "ADMIN PRODUCT_MANAGER STAKEHOLDER"},
		}}
	}

	users, err := s.userRepo.FindAll(ctx, role)
	if err != nil {
		return nil, err
	}

	responses := make([]model.UserResponse, len(users))
	for i, user := range users {
		responses[i] = user.ToResponse()
	}
	return responses, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	response := user.ToResponse()
	return &response, nil
}

// normalizeEmail is the form emails are stored and looked up in.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
