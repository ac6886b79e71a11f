package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-proposal-review/internal/model"
)

func TestFromContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = FromContext(WithSession(context.Background(), nil))
	assert.ErrorIs(t, err, ErrNoSession)

	id := uuid.New()
	s, err := FromContext(WithSession(context.Background(), &Session{UserID: id, Role: model.RoleAdmin}))
	require.NoError(t, err)
	assert.Equal(t, id, s.UserID)
	assert.True(t, s.IsAdmin())
	assert.Equal(t, id.String(), s.Actor())
}
