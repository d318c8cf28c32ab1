package user

import (
	"net/http"

	"github.com/bikestra/paper-tracker/auth"
	"github.com/bikestra/paper-tracker/internal/errors"
	"github.com/gin-gonic/gin"
)

// Handler handles login, logout and profile requests
type Handler struct {
	service  Service
	sessions *auth.Sessions
	secure   bool
}

func NewHandler(service Service, sessions *auth.Sessions, secureCookies bool) *Handler {
	return &Handler{service: service, sessions: sessions, secure: secureCookies}
}

// Login checks the application password and sets the session cookie. Form
// posts are redirected to the index page, JSON requests get the user back.
func (h *Handler) Login(c *gin.Context) {
	var form FormLogin
	if err := c.ShouldBind(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	user, err := h.service.Login(c.Request.Context(), form.Password)
	if err != nil {
		c.Error(err)
		return
	}

	token, err := h.sessions.Generate(user.ID)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookie, token, int(h.sessions.TTL().Seconds()), "/", "", h.secure, true)

	if c.ContentType() == gin.MIMEPOSTForm {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookie, "", -1, "/", "", h.secure, true)
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.Error(errors.Unauthorized("Not logged in", nil))
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":              user,
		"password_required": h.service.PasswordRequired(),
	})
}
