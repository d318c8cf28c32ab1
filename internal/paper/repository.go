package paper

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bikestra/paper-tracker/internal/author"
	"github.com/bikestra/paper-tracker/internal/domain"
	"github.com/bikestra/paper-tracker/internal/ordering"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaperRepository interface {
	FindByID(ctx context.Context, userID, id uint64) (*domain.Paper, error)
	FindByArxivID(ctx context.Context, userID uint64, arxivID string) (*domain.Paper, error)
	List(ctx context.Context, userID uint64, filter ListFilter) ([]domain.Paper, error)
	StatusCounts(ctx context.Context, userID uint64) (map[domain.PaperStatus]int64, error)
	CategoryOwned(ctx context.Context, userID, categoryID uint64) (bool, error)

	Create(ctx context.Context, p *domain.Paper, authors []domain.AuthorDescriptor) error
	Save(ctx context.Context, p *domain.Paper, prevStatus domain.PaperStatus, authors []domain.AuthorDescriptor, replaceAuthors bool) error
	Delete(ctx context.Context, userID, id uint64) error
	Like(ctx context.Context, userID, id uint64) (int, error)

	Move(ctx context.Context, userID, id, pred, succ uint64) (ordering.Plan, error)
	ReorderList(ctx context.Context, userID uint64, status domain.PaperStatus, ids []uint64, categoryID *uint64) error

	CreateEffort(ctx context.Context, e *domain.EffortLog) error
	ListEffort(ctx context.Context, userID uint64, paperID *uint64, limit int) ([]domain.EffortLog, error)
	EffortTotals(ctx context.Context, userID uint64) (map[uint64]int64, error)

	CreateSource(ctx context.Context, s *domain.DiscoverySource) error
	ListSources(ctx context.Context, paperID uint64) ([]domain.DiscoverySource, error)
	DeleteSource(ctx context.Context, userID, sourceID uint64) error
	SourceCounts(ctx context.Context, userID uint64) (map[uint64]int64, error)
}

type ListFilter struct {
	Status        *domain.PaperStatus
	CategoryID    *uint64
	Uncategorized bool
	Sort          string
}

const (
	SortManual = "manual"
	SortLikes  = "likes"
	SortAdded  = "added"
	SortRead   = "read"
)

type PaperRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) PaperRepository {
	return &PaperRepositoryImpl{db: db}
}

func (r *PaperRepositoryImpl) FindByID(ctx context.Context, userID, id uint64) (*domain.Paper, error) {
	var p domain.Paper
	err := r.db.WithContext(ctx).
		Preload("Category").
		Where("id = ? AND user_id = ?", id, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	if err := r.attachAuthors(ctx, r.db, []*domain.Paper{&p}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaperRepositoryImpl) FindByArxivID(ctx context.Context, userID uint64, arxivID string) (*domain.Paper, error) {
	var p domain.Paper
	err := r.db.WithContext(ctx).Where("user_id = ? AND arxiv_id = ?", userID, arxivID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaperRepositoryImpl) List(ctx context.Context, userID uint64, filter ListFilter) ([]domain.Paper, error) {
	q := r.db.WithContext(ctx).Preload("Category").Where("user_id = ?", userID)
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	switch {
	case filter.CategoryID != nil:
		q = q.Where("category_id = ?", *filter.CategoryID)
	case filter.Uncategorized:
		q = q.Where("category_id IS NULL")
	}

	switch filter.Sort {
	case SortLikes:
		q = q.Order("likes DESC").Order("created_at DESC")
	case SortAdded:
		q = q.Order("created_at DESC")
	case SortRead:
		q = q.Order("read_at IS NULL").Order("read_at DESC").Order("created_at DESC")
	default:
		q = q.Order("order_index").Order("id")
	}

	var papers []domain.Paper
	if err := q.Find(&papers).Error; err != nil {
		return nil, err
	}

	ptrs := make([]*domain.Paper, len(papers))
	for i := range papers {
		ptrs[i] = &papers[i]
	}
	if err := r.attachAuthors(ctx, r.db, ptrs); err != nil {
		return nil, err
	}
	return papers, nil
}

func (r *PaperRepositoryImpl) StatusCounts(ctx context.Context, userID uint64) (map[domain.PaperStatus]int64, error) {
	var rows []struct {
		Status domain.PaperStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.Paper{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.PaperStatus]int64, len(domain.PaperStatuses))
	for _, st := range domain.PaperStatuses {
		counts[st] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *PaperRepositoryImpl) CategoryOwned(ctx context.Context, userID, categoryID uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.Category{}).
		Where("id = ? AND user_id = ?", categoryID, userID).
		Count(&n).Error
	return n > 0, err
}

// Create inserts the paper at the top of its status scope and links its
// authors, all in one transaction.
func (r *PaperRepositoryImpl) Create(ctx context.Context, p *domain.Paper, authors []domain.AuthorDescriptor) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := scopeItems(tx, p.UserID, p.Status, 0)
		if err != nil {
			return err
		}
		p.OrderIndex = ordering.Top(items)

		if err := tx.Omit(clause.Associations).Create(p).Error; err != nil {
			return err
		}
		return r.linkAuthors(ctx, tx, p, authors)
	})
}

// Save writes every column of p. A status change moves the paper to the top
// of its new scope; replaceAuthors swaps the whole author list.
func (r *PaperRepositoryImpl) Save(ctx context.Context, p *domain.Paper, prevStatus domain.PaperStatus, authors []domain.AuthorDescriptor, replaceAuthors bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.Status != prevStatus {
			items, err := scopeItems(tx, p.UserID, p.Status, p.ID)
			if err != nil {
				return err
			}
			p.OrderIndex = ordering.Top(items)
		}

		res := tx.Model(p).
			Where("user_id = ?", p.UserID).
			Select("*").
			Omit("id", "user_id", "created_at", clause.Associations).
			Updates(p)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if !replaceAuthors {
			return nil
		}
		if err := tx.Where("paper_id = ?", p.ID).Delete(&domain.PaperAuthor{}).Error; err != nil {
			return err
		}
		return r.linkAuthors(ctx, tx, p, authors)
	})
}

// Delete removes the paper and everything that hangs off it. References from
// other papers' discovery sources are detached, not deleted.
func (r *PaperRepositoryImpl) Delete(ctx context.Context, userID, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Paper
		if err := tx.Select("id").Where("id = ? AND user_id = ?", id, userID).First(&p).Error; err != nil {
			return err
		}

		if err := tx.Where("paper_id = ?", id).Delete(&domain.PaperAuthor{}).Error; err != nil {
			return err
		}
		if err := tx.Where("paper_id = ?", id).Delete(&domain.EffortLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("paper_id = ?", id).Delete(&domain.DiscoverySource{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.DiscoverySource{}).
			Where("source_paper_id = ?", id).
			Update("source_paper_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Paper{}, id).Error
	})
}

func (r *PaperRepositoryImpl) Like(ctx context.Context, userID, id uint64) (int, error) {
	var likes int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Paper{}).
			Where("id = ? AND user_id = ?", id, userID).
			UpdateColumn("likes", gorm.Expr("likes + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&domain.Paper{}).Select("likes").Where("id = ?", id).Scan(&likes).Error
	})
	return likes, err
}

// Move places a paper between two neighbors of its status scope. The scope
// rows are locked for the transaction and every write is guarded by the index
// it was planned against; a guard miss returns ordering.ErrConflict.
func (r *PaperRepositoryImpl) Move(ctx context.Context, userID, id, pred, succ uint64) (ordering.Plan, error) {
	var plan ordering.Plan
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Paper
		if err := tx.Select("id", "status").Where("id = ? AND user_id = ?", id, userID).First(&p).Error; err != nil {
			return err
		}

		items, err := lockScope(tx, userID, p.Status)
		if err != nil {
			return err
		}

		plan, err = ordering.Place(items, id, pred, succ)
		if err != nil {
			return err
		}
		return applyPlan(tx, userID, p.Status, items, plan)
	})
	return plan, err
}

// ReorderList hands the listed papers' current indexes back out in the
// requested order, so rows outside the list keep their place. Every id must
// belong to the user and match status (and category, when given).
func (r *PaperRepositoryImpl) ReorderList(ctx context.Context, userID uint64, status domain.PaperStatus, ids []uint64, categoryID *uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&domain.Paper{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "order_index").
			Where("user_id = ? AND status = ? AND id IN ?", userID, status, ids)
		if categoryID != nil {
			q = q.Where("category_id = ?", *categoryID)
		}

		var rows []struct {
			ID         uint64
			OrderIndex int64
		}
		if err := q.Scan(&rows).Error; err != nil {
			return err
		}
		if len(rows) != len(ids) {
			return fmt.Errorf("%w: %d of %d papers match", ordering.ErrUnknownNeighbor, len(rows), len(ids))
		}

		current := make(map[uint64]int64, len(rows))
		slots := make([]int64, len(rows))
		for i, row := range rows {
			current[row.ID] = row.OrderIndex
			slots[i] = row.OrderIndex
		}
		slices.Sort(slots)

		now := time.Now().UTC()
		for i, id := range ids {
			if current[id] == slots[i] {
				continue
			}
			err := tx.Model(&domain.Paper{}).
				Where("id = ? AND user_id = ?", id, userID).
				UpdateColumns(map[string]any{"order_index": slots[i], "updated_at": now}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PaperRepositoryImpl) CreateEffort(ctx context.Context, e *domain.EffortLog) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *PaperRepositoryImpl) ListEffort(ctx context.Context, userID uint64, paperID *uint64, limit int) ([]domain.EffortLog, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if paperID != nil {
		q = q.Where("paper_id = ?", *paperID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var logs []domain.EffortLog
	err := q.Order("created_at DESC").Order("id DESC").Find(&logs).Error
	return logs, err
}

func (r *PaperRepositoryImpl) EffortTotals(ctx context.Context, userID uint64) (map[uint64]int64, error) {
	var rows []struct {
		PaperID uint64
		Total   int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.EffortLog{}).
		Select("paper_id, SUM(points) AS total").
		Where("user_id = ?", userID).
		Group("paper_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[uint64]int64, len(rows))
	for _, row := range rows {
		totals[row.PaperID] = row.Total
	}
	return totals, nil
}

func (r *PaperRepositoryImpl) CreateSource(ctx context.Context, s *domain.DiscoverySource) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *PaperRepositoryImpl) ListSources(ctx context.Context, paperID uint64) ([]domain.DiscoverySource, error) {
	var sources []domain.DiscoverySource
	err := r.db.WithContext(ctx).
		Where("paper_id = ?", paperID).
		Order("created_at DESC").Order("id DESC").
		Find(&sources).Error
	return sources, err
}

func (r *PaperRepositoryImpl) DeleteSource(ctx context.Context, userID, sourceID uint64) error {
	owned := r.db.Model(&domain.Paper{}).Select("id").Where("user_id = ?", userID)
	res := r.db.WithContext(ctx).
		Where("id = ? AND paper_id IN (?)", sourceID, owned).
		Delete(&domain.DiscoverySource{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *PaperRepositoryImpl) SourceCounts(ctx context.Context, userID uint64) (map[uint64]int64, error) {
	var rows []struct {
		PaperID uint64
		Count   int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.DiscoverySource{}).
		Select("discovery_sources.paper_id, COUNT(discovery_sources.id) AS count").
		Joins("JOIN papers ON papers.id = discovery_sources.paper_id").
		Where("papers.user_id = ?", userID).
		Group("discovery_sources.paper_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint64]int64, len(rows))
	for _, row := range rows {
		counts[row.PaperID] = row.Count
	}
	return counts, nil
}

func (r *PaperRepositoryImpl) linkAuthors(ctx context.Context, tx *gorm.DB, p *domain.Paper, descriptors []domain.AuthorDescriptor) error {
	refs, err := author.NewResolver(author.NewRepository(tx)).Resolve(ctx, p.UserID, descriptors)
	if err != nil {
		return fmt.Errorf("resolve authors: %w", err)
	}

	p.Authors = make([]domain.Author, 0, len(refs))
	if len(refs) == 0 {
		return nil
	}

	links := make([]domain.PaperAuthor, 0, len(refs))
	for _, ref := range refs {
		links = append(links, domain.PaperAuthor{PaperID: p.ID, AuthorID: ref.Author.ID, Position: ref.Position})
		p.Authors = append(p.Authors, ref.Author)
	}
	return tx.Create(&links).Error
}

func (r *PaperRepositoryImpl) attachAuthors(ctx context.Context, db *gorm.DB, papers []*domain.Paper) error {
	ids := make([]uint64, 0, len(papers))
	for _, p := range papers {
		ids = append(ids, p.ID)
	}
	byPaper, err := author.NewRepository(db).ForPapers(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range papers {
		p.Authors = byPaper[p.ID]
		if p.Authors == nil {
			p.Authors = []domain.Author{}
		}
	}
	return nil
}

// scopeItems reads the (user, status) ordering scope, skipping exclude.
func scopeItems(tx *gorm.DB, userID uint64, status domain.PaperStatus, exclude uint64) ([]ordering.Item, error) {
	var rows []struct {
		ID         uint64
		OrderIndex int64
	}
	err := tx.Model(&domain.Paper{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "order_index").
		Where("user_id = ? AND status = ? AND id <> ?", userID, status, exclude).
		Order("order_index").Order("id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]ordering.Item, len(rows))
	for i, row := range rows {
		items[i] = ordering.Item{ID: row.ID, Index: row.OrderIndex}
	}
	return items, nil
}

func lockScope(tx *gorm.DB, userID uint64, status domain.PaperStatus) ([]ordering.Item, error) {
	return scopeItems(tx, userID, status, 0)
}

func applyPlan(tx *gorm.DB, userID uint64, status domain.PaperStatus, items []ordering.Item, plan ordering.Plan) error {
	current := make(map[uint64]int64, len(items))
	for _, it := range items {
		current[it.ID] = it.Index
	}

	now := time.Now().UTC()
	for id, idx := range plan.Updates {
		res := tx.Model(&domain.Paper{}).
			Where("id = ? AND user_id = ? AND status = ? AND order_index = ?", id, userID, status, current[id]).
			UpdateColumns(map[string]any{"order_index": idx, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ordering.ErrConflict
		}
	}
	return nil
}

// IsConflict reports whether err came from a concurrent reorder.
func IsConflict(err error) bool {
	return errors.Is(err, ordering.ErrConflict)
}
