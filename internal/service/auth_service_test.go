package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureflow/vulnticket/internal/config"
	"github.com/secureflow/vulnticket/internal/domain"
	"github.com/secureflow/vulnticket/internal/repository"
	"github.com/secureflow/vulnticket/pkg/util"
)

func newAuthService() (*AuthService, *repository.MemoryUserRepository) {
	users := repository.NewMemoryUserRepository()
	svc := NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            4,
	}, users)
	return svc, users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	user, token, _, err := svc.Register(ctx, "Dana", "dana@example.com", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, domain.UserRoleAnalyst, user.Role, "new accounts default to analyst")
	assert.Equal(t, domain.UserStatusActive, user.Status)
	assert.NotEqual(t, "hunter2", user.PasswordHash)

	loggedIn, token, _, err := svc.Login(ctx, "dana@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.SubjectID)
	assert.Equal(t, domain.UserRoleAnalyst, claims.Role)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, "Dana", "dana@example.com", "hunter2")
	require.NoError(t, err)

	_, _, _, err = svc.Register(ctx, "Other", "dana@example.com", "different")
	var domainErr *util.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)
}

func TestLoginFailures(t *testing.T) {
	svc, users := newAuthService()
	ctx := context.Background()

	user, _, _, err := svc.Register(ctx, "Dana", "dana@example.com", "hunter2")
	require.NoError(t, err)

	_, _, _, err = svc.Login(ctx, "dana@example.com", "wrong")
	var domainErr *util.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)

	_, _, _, err = svc.Login(ctx, "nobody@example.com", "hunter2")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)

	user.Status = domain.UserStatusSuspended
	require.NoError(t, users.Update(ctx, user))
	_, _, _, err = svc.Login(ctx, "dana@example.com", "hunter2")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "FORBIDDEN", domainErr.Code)
}
