// Package session carries the authenticated caller through a request context.
package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go-proposal-review/internal/model"
)

var ErrNoSession = errors.New("no authenticated session in request context")

// Session is the authenticated caller of one request.
type Session struct {
	UserID       uuid.UUID
	Email        string
	Name         string
	Role         model.Role
	TokenVersion string
}

func (s *Session) IsAdmin() bool {
	return s.Role == model.RoleAdmin
}

// Actor is the audit label written to UpdatedBy columns.
func (s *Session) Actor() string {
	return s.UserID.String()
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns ErrNoSession when the request never went through authentication.
func FromContext(ctx context.Context) (*Session, error) {
	if ctx == nil {
		return nil, ErrNoSession
	}
	s, ok := ctx.Value(ctxKey{}).(*Session)
	if !ok || s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}
