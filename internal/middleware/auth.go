package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bikestra/paper-tracker/auth"
	"github.com/bikestra/paper-tracker/internal/domain"
	"github.com/bikestra/paper-tracker/internal/errors"
	"github.com/gin-gonic/gin"
)

type UserProvider interface {
	EnsureDefaultUser(ctx context.Context) (*domain.User, error)
	PasswordRequired() bool
}

type Auth struct {
	Users    UserProvider
	Sessions *auth.Sessions
}

// AuthMiddleWare puts user_id on the context. Without a configured password
// every request belongs to the default user; otherwise the session cookie (or
// a bearer token) must be valid. HTML page requests are redirected to /login.
func (m *Auth) AuthMiddleWare() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !m.Users.PasswordRequired() {
			user, err := m.Users.EnsureDefaultUser(ctx.Request.Context())
			if err != nil {
				ctx.Error(errors.Internal(err))
				ctx.Abort()
				return
			}
			ctx.Set("user_id", user.ID)
			ctx.Next()
			return
		}

		token, err := ctx.Cookie(auth.SessionCookie)
		if err != nil || token == "" {
			token = strings.TrimPrefix(ctx.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			m.reject(ctx, errors.Unauthorized("Login required", nil))
			return
		}

		userID, err := m.Sessions.Verify(token)
		if err != nil {
			m.reject(ctx, errors.Unauthorized("Invalid session", err))
			return
		}

		ctx.Set("user_id", userID)
		ctx.Next()
	}
}

func (m *Auth) reject(ctx *gin.Context, err error) {
	if ctx.Request.Method == http.MethodGet && strings.Contains(ctx.GetHeader("Accept"), "text/html") {
		ctx.Redirect(http.StatusSeeOther, "/login")
		ctx.Abort()
		return
	}
	ctx.Error(err)
	ctx.Abort()
}
