package author

import (
	"context"
	"errors"

	"github.com/bikestra/paper-tracker/internal/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Store
	FindByID(ctx context.Context, userID, id uint64) (*domain.Author, error)
	ListWithCounts(ctx context.Context, userID uint64, page, pageSize int) ([]AuthorSummary, Meta, error)
	ListPapers(ctx context.Context, userID, authorID uint64, status *domain.PaperStatus) ([]domain.Paper, error)
	ForPapers(ctx context.Context, paperIDs []uint64) (map[uint64][]domain.Author, error)
}

// AuthorSummary is an author with the number of papers linked to it.
type AuthorSummary struct {
	domain.Author
	PaperCount int64 `json:"paper_count"`
}

type Meta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) FindByORCID(ctx context.Context, userID uint64, orcid string) (*domain.Author, error) {
	return r.first(ctx, "user_id = ? AND orcid = ?", userID, orcid)
}

func (r *RepositoryImpl) FindBySourceID(ctx context.Context, userID uint64, sourceID string) (*domain.Author, error) {
	return r.first(ctx, "user_id = ? AND source_id = ?", userID, sourceID)
}

func (r *RepositoryImpl) FindBySlug(ctx context.Context, userID uint64, slug string) ([]domain.Author, error) {
	var authors []domain.Author
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND slug = ?", userID, slug).
		Order("id").
		Find(&authors).Error
	return authors, err
}

func (r *RepositoryImpl) FindByName(ctx context.Context, userID uint64, name string) ([]domain.Author, error) {
	var authors []domain.Author
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		Order("id").
		Find(&authors).Error
	return authors, err
}

func (r *RepositoryImpl) Create(ctx context.Context, a *domain.Author) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *RepositoryImpl) Update(ctx context.Context, a *domain.Author) error {
	return r.db.WithContext(ctx).
		Model(&domain.Author{}).
		Where("id = ? AND user_id = ?", a.ID, a.UserID).
		Updates(map[string]any{
			"name":      a.Name,
			"orcid":     a.ORCID,
			"source_id": a.SourceID,
			"slug":      a.Slug,
		}).Error
}

func (r *RepositoryImpl) FindByID(ctx context.Context, userID, id uint64) (*domain.Author, error) {
	var a domain.Author
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *RepositoryImpl) ListWithCounts(ctx context.Context, userID uint64, page, pageSize int) ([]AuthorSummary, Meta, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Author{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, Meta{}, err
	}

	var rows []AuthorSummary
	err := r.db.WithContext(ctx).
		Model(&domain.Author{}).
		Select("authors.*, COUNT(paper_authors.id) AS paper_count").
		Joins("LEFT JOIN paper_authors ON paper_authors.author_id = authors.id").
		Where("authors.user_id = ?", userID).
		Group("authors.id").
		Order("authors.name, authors.id").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Scan(&rows).Error
	if err != nil {
		return nil, Meta{}, err
	}

	return rows, Meta{
		Total:       total,
		CurrentPage: page,
		PerPage:     pageSize,
		TotalPage:   int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

func (r *RepositoryImpl) ListPapers(ctx context.Context, userID, authorID uint64, status *domain.PaperStatus) ([]domain.Paper, error) {
	q := r.db.WithContext(ctx).
		Model(&domain.Paper{}).
		Joins("JOIN paper_authors ON paper_authors.paper_id = papers.id").
		Where("papers.user_id = ? AND paper_authors.author_id = ?", userID, authorID)
	if status != nil {
		q = q.Where("papers.status = ?", *status)
	}

	var papers []domain.Paper
	if err := q.Order("papers.created_at DESC, papers.id DESC").Find(&papers).Error; err != nil {
		return nil, err
	}
	return papers, nil
}

// ForPapers loads the authors of each paper in position order.
func (r *RepositoryImpl) ForPapers(ctx context.Context, paperIDs []uint64) (map[uint64][]domain.Author, error) {
	out := make(map[uint64][]domain.Author, len(paperIDs))
	if len(paperIDs) == 0 {
		return out, nil
	}

	type row struct {
		domain.Author
		PaperID uint64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&domain.Author{}).
		Select("authors.*, paper_authors.paper_id AS paper_id").
		Joins("JOIN paper_authors ON paper_authors.author_id = authors.id").
		Where("paper_authors.paper_id IN ?", paperIDs).
		Order("paper_authors.paper_id, paper_authors.position").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, rw := range rows {
		out[rw.PaperID] = append(out[rw.PaperID], rw.Author)
	}
	return out, nil
}

func (r *RepositoryImpl) first(ctx context.Context, query string, args ...any) (*domain.Author, error) {
	var a domain.Author
	err := r.db.WithContext(ctx).Where(query, args...).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
