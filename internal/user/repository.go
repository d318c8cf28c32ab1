package user

import (
	"context"

	"github.com/bikestra/paper-tracker/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	FirstOrCreateByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uint64) (*domain.User, error)
}

type UserRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

// FirstOrCreateByEmail is safe against a concurrent insert of the same email.
func (r *UserRepositoryImpl) FirstOrCreateByEmail(ctx context.Context, email string) (*domain.User, error) {
	user := domain.User{Email: &email}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&user).Error
	if err != nil {
		return nil, err
	}

	var found domain.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&found).Error; err != nil {
		return nil, err
	}
	return &found, nil
}

func (r *UserRepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
