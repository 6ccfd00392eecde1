package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"localchat/internal/pkg/jwtutil"
	"localchat/internal/repository"
	"localchat/internal/testutil"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	svc := NewAuthService(repository.NewUserRepository(testutil.NewDB(t)), "secret", time.Hour)
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t)

	registered, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "Ada@Example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", registered.User.Email)

	claims, err := jwtutil.ParseToken("secret", registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.UserID)

	loggedIn, err := svc.Login(ctx, LoginInput{Username: "ada", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)
	assert.NotNil(t, loggedIn.User.LastLoginAt)

	_, err = svc.Login(ctx, LoginInput{Username: "ada", Password: "wrong-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = svc.Login(ctx, LoginInput{Username: "nobody", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t)

	_, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "ada", Email: "other@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrUsernameExists)
	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "ADA@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrEmailExists)
	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
