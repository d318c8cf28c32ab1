package user

import (
	"context"
	defError "errors"

	"github.com/bikestra/paper-tracker/auth"
	"github.com/bikestra/paper-tracker/internal/domain"
	"github.com/bikestra/paper-tracker/internal/errors"
	"gorm.io/gorm"
)

// Service defines the interface for user business logic
type Service interface {
	EnsureDefaultUser(ctx context.Context) (*domain.User, error)
	Login(ctx context.Context, password string) (*domain.User, error)
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
	PasswordRequired() bool
}

type DefaultService struct {
	repository UserRepository
	password   *auth.PasswordChecker
}

// NewService builds the single-user service. A nil checker disables login.
func NewService(repository UserRepository, password *auth.PasswordChecker) Service {
	return &DefaultService{repository: repository, password: password}
}

// EnsureDefaultUser returns the owner row, creating it on first use.
func (s *DefaultService) EnsureDefaultUser(ctx context.Context) (*domain.User, error) {
	return s.repository.FirstOrCreateByEmail(ctx, DefaultEmail)
}

func (s *DefaultService) Login(ctx context.Context, password string) (*domain.User, error) {
	if err := s.password.Check(password); err != nil {
		return nil, errors.Unauthorized("Invalid password", err)
	}
	return s.EnsureDefaultUser(ctx)
}

func (s *DefaultService) GetUserByID(ctx context.Context, id uint64) (*domain.User, error) {
	user, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("User not found", err)
		}
		return nil, err
	}
	return user, nil
}

func (s *DefaultService) PasswordRequired() bool {
	return s.password.Enabled()
}
