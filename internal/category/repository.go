package category

import (
	"context"

	"github.com/bikestra/paper-tracker/internal/domain"
	"gorm.io/gorm"
)

type Repository interface {
	List(ctx context.Context, userID uint64) ([]domain.Category, error)
	FindByID(ctx context.Context, userID, id uint64) (*domain.Category, error)
	FindByName(ctx context.Context, userID uint64, name string) (*domain.Category, error)
	Create(ctx context.Context, c *domain.Category) error
	Rename(ctx context.Context, userID, id uint64, name string) (*domain.Category, error)
	Delete(ctx context.Context, userID, id uint64) (int64, error)
	PaperCounts(ctx context.Context, userID uint64) (map[uint64]int64, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) List(ctx context.Context, userID uint64) ([]domain.Category, error) {
	var categories []domain.Category
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name").
		Find(&categories).Error
	return categories, err
}

func (r *RepositoryImpl) FindByID(ctx context.Context, userID, id uint64) (*domain.Category, error) {
	var c domain.Category
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *RepositoryImpl) FindByName(ctx context.Context, userID uint64, name string) (*domain.Category, error) {
	var c domain.Category
	if err := r.db.WithContext(ctx).Where("user_id = ? AND name = ?", userID, name).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *RepositoryImpl) Create(ctx context.Context, c *domain.Category) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *RepositoryImpl) Rename(ctx context.Context, userID, id uint64, name string) (*domain.Category, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Category{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("name", name)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, userID, id)
}

// Delete detaches the category from the owner's papers and removes it, in one
// transaction. It returns how many papers were detached.
func (r *RepositoryImpl) Delete(ctx context.Context, userID, id uint64) (int64, error) {
	var detached int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c domain.Category
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
			return err
		}

		res := tx.Model(&domain.Paper{}).
			Where("category_id = ? AND user_id = ?", id, userID).
			Update("category_id", nil)
		if res.Error != nil {
			return res.Error
		}
		detached = res.RowsAffected

		return tx.Delete(&c).Error
	})
	return detached, err
}

func (r *RepositoryImpl) PaperCounts(ctx context.Context, userID uint64) (map[uint64]int64, error) {
	var rows []struct {
		CategoryID uint64
		Count      int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.Paper{}).
		Select("category_id, COUNT(*) AS count").
		Where("user_id = ? AND category_id IS NOT NULL", userID).
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint64]int64, len(rows))
	for _, row := range rows {
		counts[row.CategoryID] = row.Count
	}
	return counts, nil
}
