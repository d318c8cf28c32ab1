package author

import (
	"context"
	defError "errors"
	"fmt"
	"time"

	"github.com/bikestra/paper-tracker/internal/domain"
	"github.com/bikestra/paper-tracker/internal/errors"
	"github.com/bikestra/paper-tracker/redis"
	"gorm.io/gorm"
)

type Service interface {
	ListAuthors(ctx context.Context, userID uint64, page, pageSize int) (*PaginatedAuthors, error)
	GetAuthor(ctx context.Context, userID, authorID uint64, status *domain.PaperStatus) (*AuthorDetail, error)
	Invalidate(ctx context.Context, userID uint64)
}

type PaginatedAuthors struct {
	Data []AuthorSummary `json:"data"`
	Meta Meta            `json:"meta"`
}

type AuthorDetail struct {
	Author domain.Author  `json:"author"`
	Papers []domain.Paper `json:"papers"`
}

type DefaultService struct {
	repository Repository
	cache      *redis.Cache
}

func NewService(repository Repository, cache *redis.Cache) Service {
	return &DefaultService{repository: repository, cache: cache}
}

func versionKey(userID uint64) string {
	return fmt.Sprintf("user:%d:authors:version", userID)
}

func (s *DefaultService) ListAuthors(ctx context.Context, userID uint64, page, pageSize int) (*PaginatedAuthors, error) {
	v := s.cache.GetVersion(ctx, versionKey(userID))
	cacheKey := fmt.Sprintf("authors:u:%d:v:%d:p:%d:ps:%d", userID, v, page, pageSize)

	var result PaginatedAuthors
	if found, _ := s.cache.Get(ctx, cacheKey, &result); found {
		return &result, nil
	}

	authors, meta, err := s.repository.ListWithCounts(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}
	result = PaginatedAuthors{Data: authors, Meta: meta}
	_ = s.cache.Set(ctx, cacheKey, result, time.Hour)

	return &result, nil
}

func (s *DefaultService) GetAuthor(ctx context.Context, userID, authorID uint64, status *domain.PaperStatus) (*AuthorDetail, error) {
	a, err := s.repository.FindByID(ctx, userID, authorID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Author not found", err)
		}
		return nil, err
	}

	papers, err := s.repository.ListPapers(ctx, userID, authorID, status)
	if err != nil {
		return nil, err
	}
	return &AuthorDetail{Author: *a, Papers: papers}, nil
}

// Invalidate drops every cached author listing of the user.
func (s *DefaultService) Invalidate(ctx context.Context, userID uint64) {
	s.cache.IncrementVersion(ctx, versionKey(userID))
}
