package user

// DefaultEmail identifies the single owner row in single-user mode.
const DefaultEmail = "user@paper-tracker.local"

// FormLogin is the login body. Either JSON or a form post is accepted.
type FormLogin struct {
	Password string `json:"password" form:"password" binding:"required"`
}
