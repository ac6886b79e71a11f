package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-proposal-review/internal/model"
	"go-proposal-review/internal/repository"
	"go-proposal-review/internal/session"
	"go-proposal-review/pkg/jwt"
	"go-proposal-review/pkg/logger"
	"go-proposal-review/pkg/validator"
)

type AuthService interface {
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) (*LoginResponse, error)
	Authenticate(ctx context.Context, tokenString string) (*session.Session, error)
	CurrentUser(ctx context.Context) (*model.UserResponse, error)
	ResetPassword(ctx context.Context, req *ResetPasswordRequest) error
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      model.UserResponse `json:"user"`
}

type authService struct {
	userRepo repository.UserRepository
	tokens   *jwt.Manager
	log      logrus.FieldLogger
}

func NewAuthService(userRepo repository.UserRepository, tokens *jwt.Manager, log logrus.FieldLogger) AuthService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		log:      log,
	}
}

// Login checks credentials and starts a new session. Signing in rotates the
// user's token version, which revokes every token issued before.
func (s *authService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !user.CheckPassword(req.Password) {
		return nil, ErrInvalidCredentials
	}

	user.TokenVersion = uuid.New().String()
	if err := s.userRepo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion); err != nil {
		return nil, errors.Wrap(err, "failed to start session")
	}
	if err := s.userRepo.UpdateLastSeen(ctx, user.ID); err != nil {
		return nil, errors.Wrap(err, "failed to start session")
	}

	logger.FromContext(ctx, s.log).WithField("user_id", user.ID).Info("user signed in")
	return s.issue(user)
}

// Logout rotates the token version so the caller's token stops validating.
func (s *authService) Logout(ctx context.Context) error {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdateTokenVersion(ctx, sess.UserID, uuid.New().String()); err != nil {
		return errors.Wrap(err, "failed to end session")
	}
	logger.FromContext(ctx, s.log).WithField("user_id", sess.UserID).Info("user signed out")
	return nil
}

// Refresh issues a fresh token for the current session without rotating it.
func (s *authService) Refresh(ctx context.Context) (*LoginResponse, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, sess.UserID)
	if err != nil {
		return nil, notFound(err, ErrSessionRevoked)
	}
	if err := s.userRepo.UpdateLastSeen(ctx, user.ID); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Authenticate turns a bearer token into a session. Tokens of inactive users
// and tokens issued before the last sign-in or sign-out are rejected.
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*session.Session, error) {
	if tokenString == "" {
		return nil, jwt.ErrMissingToken
	}
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, notFound(err, ErrSessionRevoked)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionRevoked
	}

	return &session.Session{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	}, nil
}

func (s *authService) CurrentUser(ctx context.Context) (*model.UserResponse, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, sess.UserID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	response := user.ToResponse()
	return &response, nil
}

// ResetPassword replaces the password after checking the old one and signs
// the user out everywhere. Unknown emails and wrong passwords fail alike.
func (s *authService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := validator.Validate(req); err != nil {
		return err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return notFound(err, ErrInvalidCredentials)
	}
	if !user.CheckPassword(req.OldPassword) {
		return ErrInvalidCredentials
	}
	if !user.IsActive {
		return ErrUserInactive
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		return errors.Wrap(err, "failed to hash new password")
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, user.Password); err != nil {
		return err
	}
	return s.userRepo.UpdateTokenVersion(ctx, user.ID, uuid.New().String())
}

func (s *authService) issue(user *model.User) (*LoginResponse, error) {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Email, user.Name, string(user.Role), user.TokenVersion)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate token")
	}
	return &LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.ToResponse(),
	}, nil
}
