package middleware

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bikestra/paper-tracker/auth"
	"github.com/bikestra/paper-tracker/internal/arxiv"
	"github.com/bikestra/paper-tracker/internal/domain"
	"github.com/bikestra/paper-tracker/internal/errors"
	"github.com/bikestra/paper-tracker/internal/ordering"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) EnsureDefaultUser(ctx context.Context) (*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUsers) PasswordRequired() bool {
	return m.Called().Bool(0)
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"api error", errors.Forbidden("nope", nil), http.StatusForbidden},
		{"wrapped api error", fmt.Errorf("outer: %w", errors.Conflict("dup", nil)), http.StatusConflict},
		{"invalid identifier", &arxiv.IdentifierError{Input: "x"}, http.StatusUnprocessableEntity},
		{"arxiv not found", &arxiv.FetchError{Kind: arxiv.ErrNotFound}, http.StatusNotFound},
		{"arxiv unavailable", &arxiv.FetchError{Kind: arxiv.ErrUpstreamUnavailable}, http.StatusServiceUnavailable},
		{"arxiv malformed", &arxiv.FetchError{Kind: arxiv.ErrMalformedResponse}, http.StatusBadGateway},
		{"reorder conflict", ordering.ErrConflict, http.StatusConflict},
		{"unknown neighbor", fmt.Errorf("%w: 4", ordering.ErrUnknownNeighbor), http.StatusBadRequest},
		{"neighbor order", ordering.ErrNeighborOrder, http.StatusBadRequest},
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound},
		{"duplicate key", gorm.ErrDuplicatedKey, http.StatusConflict},
		{"anything else", stdErrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, toAPIError(tt.err).Status)
		})
	}
}

func TestErrorHandler_WritesJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/fail", func(c *gin.Context) {
		c.Error(errors.NotFound("Paper not found", nil))
	})
	router.GET("/internal", func(c *gin.Context) {
		c.Error(stdErrors.New("database exploded"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/fail", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Paper not found"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/internal", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "exploded")
}

func setupAuthRouter(users UserProvider, sessions *auth.Sessions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogger(), ErrorHandler())
	m := &Auth{Users: users, Sessions: sessions}
	router.GET("/whoami", m.AuthMiddleWare(), func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return router
}

func TestAuth_NoPasswordUsesDefaultUser(t *testing.T) {
	users := new(MockUsers)
	users.On("PasswordRequired").Return(false)
	users.On("EnsureDefaultUser", mock.Anything).Return(&domain.User{ID: 3}, nil)
	router := setupAuthRouter(users, auth.NewSessions("secret", time.Hour))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/whoami", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":3}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestAuth_SessionRequired(t *testing.T) {
	users := new(MockUsers)
	users.On("PasswordRequired").Return(true)
	sessions := auth.NewSessions("secret", time.Hour)
	router := setupAuthRouter(users, sessions)

	token, err := sessions.Generate(5)
	require.NoError(t, err)

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":5}`, w.Body.String())
	})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/whoami", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("forged", func(t *testing.T) {
		forged, err := auth.NewSessions("other", time.Hour).Generate(5)
		require.NoError(t, err)
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: forged})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("browser redirect", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})
}
