package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bikestra/paper-tracker/auth"
	"github.com/bikestra/paper-tracker/internal/config"
	"github.com/bikestra/paper-tracker/internal/db"
	"github.com/bikestra/paper-tracker/redis"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(t *testing.T, password string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(conn) })

	checker, err := auth.NewPasswordChecker(password)
	require.NoError(t, err)

	a := newApp(deps{
		db:       conn,
		cache:    redis.NewCache(nil),
		password: checker,
		sessions: auth.NewSessions("test-secret", time.Hour),
		config:   config.Config{Environment: "development", ArxivMaxAttempts: 1},
	})
	return newRouter(a)
}

func TestHealthAndMetrics(t *testing.T) {
	router := setupApp(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIWithoutPassword(t *testing.T) {
	router := setupApp(t, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/categories", strings.NewReader(`{"name":"Theory"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/papers", strings.NewReader(`{"title":"A paper"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/papers", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "A paper")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRequiresSession(t *testing.T) {
	router := setupApp(t, "hunter2")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/papers", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/papers", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
