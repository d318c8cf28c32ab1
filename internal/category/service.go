package category

import (
	"context"
	defError "errors"
	"log/slog"
	"strings"

	"github.com/bikestra/paper-tracker/internal/domain"
	"github.com/bikestra/paper-tracker/internal/errors"
	"gorm.io/gorm"
)

type Service interface {
	List(ctx context.Context, userID uint64) ([]CategoryWithCount, error)
	Get(ctx context.Context, userID, id uint64) (*domain.Category, error)
	Create(ctx context.Context, userID uint64, name string) (*domain.Category, error)
	Rename(ctx context.Context, userID, id uint64, name string) (*domain.Category, error)
	Delete(ctx context.Context, userID, id uint64) error
}

type CategoryWithCount struct {
	domain.Category
	PaperCount int64 `json:"paper_count"`
}

type DefaultService struct {
	repository Repository
}

func NewService(repository Repository) Service {
	return &DefaultService{repository: repository}
}

func (s *DefaultService) List(ctx context.Context, userID uint64) ([]CategoryWithCount, error) {
	categories, err := s.repository.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repository.PaperCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]CategoryWithCount, 0, len(categories))
	for _, c := range categories {
		out = append(out, CategoryWithCount{Category: c, PaperCount: counts[c.ID]})
	}
	return out, nil
}

func (s *DefaultService) Get(ctx context.Context, userID, id uint64) (*domain.Category, error) {
	c, err := s.repository.FindByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (s *DefaultService) Create(ctx context.Context, userID uint64, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.BadRequest("Category name cannot be empty", nil)
	}

	if _, err := s.repository.FindByName(ctx, userID, name); err == nil {
		return nil, errors.Conflict("Category already exists", nil)
	} else if !defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c := &domain.Category{UserID: userID, Name: name}
	if err := s.repository.Create(ctx, c); err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Conflict("Category already exists", err)
		}
		return nil, err
	}
	return c, nil
}

func (s *DefaultService) Rename(ctx context.Context, userID, id uint64, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.BadRequest("Category name cannot be empty", nil)
	}

	if existing, err := s.repository.FindByName(ctx, userID, name); err == nil && existing.ID != id {
		return nil, errors.Conflict("Category already exists", nil)
	}

	c, err := s.repository.Rename(ctx, userID, id, name)
	if err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Conflict("Category already exists", err)
		}
		return nil, notFound(err)
	}
	return c, nil
}

// Delete removes the category; papers filed under it become uncategorized.
func (s *DefaultService) Delete(ctx context.Context, userID, id uint64) error {
	detached, err := s.repository.Delete(ctx, userID, id)
	if err != nil {
		return notFound(err)
	}
	slog.Info("category deleted", "user_id", userID, "category_id", id, "papers_detached", detached)
	return nil
}

func notFound(err error) error {
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound("Category not found", err)
	}
	return err
}
