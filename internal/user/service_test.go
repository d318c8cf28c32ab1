package user

import (
	"context"
	"net/http"
	"testing"

	"github.com/bikestra/paper-tracker/auth"
	"github.com/bikestra/paper-tracker/internal/db"
	"github.com/bikestra/paper-tracker/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, password string) Service {
	t.Helper()
	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(conn) })

	checker, err := auth.NewPasswordChecker(password)
	require.NoError(t, err)
	return NewService(NewRepository(conn), checker)
}

func TestEnsureDefaultUser_Idempotent(t *testing.T) {
	svc := newService(t, "")
	ctx := context.Background()

	first, err := svc.EnsureDefaultUser(ctx)
	require.NoError(t, err)
	second, err := svc.EnsureDefaultUser(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, first.Email)
	assert.Equal(t, DefaultEmail, *first.Email)
	assert.False(t, svc.PasswordRequired())
}

func TestServiceLogin(t *testing.T) {
	svc := newService(t, "hunter2")
	ctx := context.Background()

	assert.True(t, svc.PasswordRequired())

	user, err := svc.Login(ctx, "hunter2")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)

	_, err = svc.Login(ctx, "nope")
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestGetUserByID_NotFound(t *testing.T) {
	svc := newService(t, "")

	_, err := svc.GetUserByID(context.Background(), 999)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
