package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat/internal/model"
	"localchat/internal/testutil"
)

func TestUserRepositoryLookups(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testutil.NewDB(t))

	user := &model.User{Username: "ada", Email: "ada@example.com", PasswordHash: "x"}
	require.NoError(t, repo.Create(ctx, user))

	byName, err := repo.GetByUsername(ctx, "ada")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, user.ID, byName.ID)

	byEmail, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)

	missing, err := repo.GetByID(ctx, user.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.TouchLastLogin(ctx, user.ID, time.Now()))
	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID.LastLoginAt)
}
