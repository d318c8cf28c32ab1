package paper

import (
	"context"
	defError "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bikestra/paper-tracker/internal/arxiv"
	"github.com/bikestra/paper-tracker/internal/author"
	"github.com/bikestra/paper-tracker/internal/domain"
	"github.com/bikestra/paper-tracker/internal/errors"
	"github.com/bikestra/paper-tracker/internal/metrics"
	"github.com/bikestra/paper-tracker/internal/ordering"
	"github.com/bikestra/paper-tracker/internal/worker"
	"github.com/bikestra/paper-tracker/redis"
	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"
)

type Service interface {
	CreatePaper(ctx context.Context, userID uint64, input CreateInput) (*domain.Paper, error)
	CreateFromArxiv(ctx context.Context, userID uint64, input ArxivInput) (*domain.Paper, error)
	FetchMetadata(ctx context.Context, raw string) (*domain.PaperMetadata, error)
	GetPaper(ctx context.Context, userID, id uint64) (*domain.Paper, error)
	ListPapers(ctx context.Context, userID uint64, filter ListFilter) ([]domain.Paper, error)
	StatusCounts(ctx context.Context, userID uint64) (map[domain.PaperStatus]int64, error)
	UpdatePaper(ctx context.Context, userID, id uint64, input UpdateInput) (*domain.Paper, error)
	RefreshFromArxiv(ctx context.Context, userID, id uint64) (*domain.Paper, error)
	DeletePaper(ctx context.Context, userID, id uint64) error
	LikePaper(ctx context.Context, userID, id uint64) (int, error)

	MovePaper(ctx context.Context, userID, id, pred, succ uint64) (*domain.Paper, error)
	ReorderList(ctx context.Context, userID uint64, status domain.PaperStatus, ids []uint64, categoryID *uint64) error

	LogEffort(ctx context.Context, userID, paperID uint64, points int, note string) (*domain.EffortLog, error)
	ListEffort(ctx context.Context, userID uint64, paperID *uint64, limit int) ([]domain.EffortLog, error)
	EffortTotals(ctx context.Context, userID uint64) (map[uint64]int64, error)

	AddDiscoverySource(ctx context.Context, userID, paperID uint64, input SourceInput) (*domain.DiscoverySource, error)
	ListDiscoverySources(ctx context.Context, userID, paperID uint64) ([]domain.DiscoverySource, error)
	DeleteDiscoverySource(ctx context.Context, userID, sourceID uint64) error
}

// Options tunes the metadata fetch path. Zero values pick the defaults.
type Options struct {
	CacheTTL       time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.CacheTTL <= 0 {
		o.CacheTTL = 24 * time.Hour
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	return o
}

type DefaultService struct {
	repository PaperRepository
	fetcher    arxiv.Fetcher
	cache      *redis.Cache
	pool       *worker.WorkerPool
	authors    author.Service
	opts       Options
}

func NewService(repository PaperRepository, fetcher arxiv.Fetcher, cache *redis.Cache, pool *worker.WorkerPool, authors author.Service, opts Options) Service {
	return &DefaultService{
		repository: repository,
		fetcher:    fetcher,
		cache:      cache,
		pool:       pool,
		authors:    authors,
		opts:       opts.withDefaults(),
	}
}

type CreateInput struct {
	Title      string
	Abstract   string
	URL        string
	PDFURL     string
	ArxivID    string
	Status     domain.PaperStatus
	CategoryID *uint64
	Notes      string
	Authors    []string
}

type ArxivInput struct {
	Input      string
	Status     domain.PaperStatus
	CategoryID *uint64
	Notes      string
}

// UpdateInput is a partial update. Nil fields are left alone; an empty string
// clears an optional text field.
type UpdateInput struct {
	Title         *string
	Abstract      *string
	URL           *string
	PDFURL        *string
	Notes         *string
	Status        *domain.PaperStatus
	CategoryID    *uint64
	ClearCategory bool
	CitationKey   *string
	VenueYear     *string
	Authors       *[]string
}

type SourceInput struct {
	Type    domain.DiscoverySourceType
	ArxivID string
	Text    string
}

func (s *DefaultService) CreatePaper(ctx context.Context, userID uint64, input CreateInput) (*domain.Paper, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.BadRequest("Title is required", nil)
	}
	status, err := statusOrDefault(input.Status)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, userID, input.CategoryID); err != nil {
		return nil, err
	}

	p := &domain.Paper{
		UserID:     userID,
		Title:      title,
		Abstract:   optional(input.Abstract),
		URL:        optional(input.URL),
		PDFURL:     optional(input.PDFURL),
		Status:     status,
		CategoryID: input.CategoryID,
		Notes:      optional(input.Notes),
		Source:     domain.SourceManual,
	}
	if p.URL != nil {
		p.Source = domain.SourceURL
	}

	if raw := strings.TrimSpace(input.ArxivID); raw != "" {
		id, err := arxiv.Normalize(raw)
		if err != nil {
			return nil, err
		}
		if err := s.checkDuplicate(ctx, userID, id.ID); err != nil {
			return nil, err
		}
		p.ArxivID = &id.ID
		if id.HasVersion() {
			p.ArxivVersion = &id.Version
		}
		p.Source = domain.SourceArxiv
		if p.URL == nil {
			p.URL = optional(id.AbsURL())
		}
		if p.PDFURL == nil {
			p.PDFURL = optional(id.PDFURL())
		}
	}
	stampRead(p, "")

	descriptors := make([]domain.AuthorDescriptor, 0, len(input.Authors))
	for _, name := range input.Authors {
		descriptors = append(descriptors, domain.AuthorDescriptor{Name: name})
	}

	if err := s.repository.Create(ctx, p, descriptors); err != nil {
		return nil, s.writeError(err)
	}
	if len(p.Authors) > 0 {
		s.authors.Invalidate(ctx, userID)
	}

	slog.InfoContext(ctx, "paper created", "paper_id", p.ID, "user_id", userID, "source", p.Source)
	return s.GetPaper(ctx, userID, p.ID)
}

func (s *DefaultService) CreateFromArxiv(ctx context.Context, userID uint64, input ArxivInput) (*domain.Paper, error) {
	status, err := statusOrDefault(input.Status)
	if err != nil {
		return nil, err
	}
	id, err := arxiv.Normalize(input.Input)
	if err != nil {
		metrics.ArxivFetches.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if err := s.checkDuplicate(ctx, userID, id.ID); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, userID, input.CategoryID); err != nil {
		return nil, err
	}

	// nothing is locked while the fetch runs
	meta, err := s.fetch(ctx, id, false)
	if err != nil {
		return nil, err
	}

	p := &domain.Paper{
		UserID:     userID,
		Status:     status,
		CategoryID: input.CategoryID,
		Notes:      optional(input.Notes),
		Source:     domain.SourceArxiv,
	}
	applyMetadata(p, meta)
	if id.HasVersion() {
		p.ArxivVersion = &id.Version
	}
	stampRead(p, "")

	if err := s.repository.Create(ctx, p, meta.Authors); err != nil {
		return nil, s.writeError(err)
	}
	s.authors.Invalidate(ctx, userID)

	slog.InfoContext(ctx, "paper imported from arXiv", "paper_id", p.ID, "arxiv_id", id.String(), "authors", len(p.Authors))
	return s.GetPaper(ctx, userID, p.ID)
}

func (s *DefaultService) FetchMetadata(ctx context.Context, raw string) (*domain.PaperMetadata, error) {
	id, err := arxiv.Normalize(raw)
	if err != nil {
		metrics.ArxivFetches.WithLabelValues("invalid").Inc()
		return nil, err
	}
	return s.fetch(ctx, id, false)
}

func metadataKey(id arxiv.Identifier) string {
	return "arxiv:meta:" + id.String()
}

// fetch consults the cache unless fresh is set, then calls the fetcher,
// retrying only upstream outages with exponential backoff.
func (s *DefaultService) fetch(ctx context.Context, id arxiv.Identifier, fresh bool) (*domain.PaperMetadata, error) {
	key := metadataKey(id)
	if !fresh {
		var cached domain.PaperMetadata
		if found, _ := s.cache.Get(ctx, key, &cached); found {
			metrics.ArxivFetches.WithLabelValues("cached").Inc()
			return &cached, nil
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.MaxAttempts-1)), ctx)

	attempt := 0
	meta, err := backoff.RetryWithData(func() (*domain.PaperMetadata, error) {
		attempt++
		m, err := s.fetcher.Fetch(ctx, id)
		if err == nil {
			return m, nil
		}
		if !defError.Is(err, arxiv.ErrUpstreamUnavailable) {
			return nil, backoff.Permanent(err)
		}
		slog.WarnContext(ctx, "arXiv fetch failed", "arxiv_id", id.String(), "attempt", attempt, "error", err)
		return nil, err
	}, policy)
	if err != nil {
		metrics.ArxivFetches.WithLabelValues(fetchOutcome(err)).Inc()
		if ctxErr := ctx.Err(); ctxErr != nil && !defError.Is(err, arxiv.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", arxiv.ErrUpstreamUnavailable, ctxErr)
		}
		return nil, err
	}
	metrics.ArxivFetches.WithLabelValues("ok").Inc()

	s.fillCache(key, *meta)
	return meta, nil
}

func (s *DefaultService) fillCache(key string, meta domain.PaperMetadata) {
	fill := func(ctx context.Context) error {
		return s.cache.Set(ctx, key, meta, s.opts.CacheTTL)
	}
	if s.pool == nil || !s.pool.Submit(fill) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := fill(ctx); err != nil {
			slog.Warn("metadata cache fill failed", "key", key, "error", err)
		}
	}
}

func fetchOutcome(err error) string {
	switch {
	case defError.Is(err, arxiv.ErrNotFound):
		return "not_found"
	case defError.Is(err, arxiv.ErrMalformedResponse):
		return "malformed"
	case defError.Is(err, arxiv.ErrInvalidIdentifier):
		return "invalid"
	default:
		return "unavailable"
	}
}

func (s *DefaultService) GetPaper(ctx context.Context, userID, id uint64) (*domain.Paper, error) {
	p, err := s.repository.FindByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (s *DefaultService) ListPapers(ctx context.Context, userID uint64, filter ListFilter) ([]domain.Paper, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, errors.BadRequest("Invalid status", nil)
	}
	switch filter.Sort {
	case "", SortManual, SortLikes, SortAdded, SortRead:
	default:
		return nil, errors.BadRequest("Invalid sort", nil)
	}
	return s.repository.List(ctx, userID, filter)
}

func (s *DefaultService) StatusCounts(ctx context.Context, userID uint64) (map[domain.PaperStatus]int64, error) {
	return s.repository.StatusCounts(ctx, userID)
}

func (s *DefaultService) UpdatePaper(ctx context.Context, userID, id uint64, input UpdateInput) (*domain.Paper, error) {
	p, err := s.repository.FindByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	prevStatus := p.Status

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, errors.BadRequest("Title cannot be empty", nil)
		}
		p.Title = title
	}
	if input.Abstract != nil {
		p.Abstract = optional(*input.Abstract)
	}
	if input.URL != nil {
		p.URL = optional(*input.URL)
	}
	if input.PDFURL != nil {
		p.PDFURL = optional(*input.PDFURL)
	}
	if input.Notes != nil {
		p.Notes = optional(*input.Notes)
	}
	if input.CitationKey != nil {
		p.CitationKey = optional(*input.CitationKey)
	}
	if input.VenueYear != nil {
		p.VenueYear = optional(*input.VenueYear)
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, errors.BadRequest("Invalid status", nil)
		}
		p.Status = *input.Status
	}
	switch {
	case input.ClearCategory:
		p.CategoryID = nil
	case input.CategoryID != nil:
		if err := s.checkCategory(ctx, userID, input.CategoryID); err != nil {
			return nil, err
		}
		p.CategoryID = input.CategoryID
	}
	p.Category = nil
	stampRead(p, prevStatus)

	var descriptors []domain.AuthorDescriptor
	if input.Authors != nil {
		for _, name := range *input.Authors {
			descriptors = append(descriptors, domain.AuthorDescriptor{Name: name})
		}
	}

	if err := s.repository.Save(ctx, p, prevStatus, descriptors, input.Authors != nil); err != nil {
		return nil, s.writeError(err)
	}
	if input.Authors != nil {
		s.authors.Invalidate(ctx, userID)
	}
	return s.GetPaper(ctx, userID, id)
}

func (s *DefaultService) RefreshFromArxiv(ctx context.Context, userID, id uint64) (*domain.Paper, error) {
	p, err := s.repository.FindByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	if p.ArxivID == nil {
		return nil, errors.BadRequest("Paper has no arXiv identifier", nil)
	}

	ident := arxiv.Identifier{ID: *p.ArxivID}
	if p.ArxivVersion != nil {
		ident.Version = *p.ArxivVersion
	}
	meta, err := s.fetch(ctx, ident, true)
	if err != nil {
		return nil, err
	}

	applyMetadata(p, meta)
	p.Category = nil
	if err := s.repository.Save(ctx, p, p.Status, meta.Authors, true); err != nil {
		return nil, s.writeError(err)
	}
	s.authors.Invalidate(ctx, userID)

	slog.InfoContext(ctx, "paper refreshed from arXiv", "paper_id", id, "arxiv_id", ident.String())
	return s.GetPaper(ctx, userID, id)
}

func (s *DefaultService) DeletePaper(ctx context.Context, userID, id uint64) error {
	if err := s.repository.Delete(ctx, userID, id); err != nil {
		return notFound(err)
	}
	s.authors.Invalidate(ctx, userID)
	slog.InfoContext(ctx, "paper deleted", "paper_id", id, "user_id", userID)
	return nil
}

func (s *DefaultService) LikePaper(ctx context.Context, userID, id uint64) (int, error) {
	likes, err := s.repository.Like(ctx, userID, id)
	if err != nil {
		return 0, notFound(err)
	}
	return likes, nil
}

// MovePaper places id between pred and succ within its status scope. A
// concurrent write is retried once with fresh reads before surfacing a 409.
func (s *DefaultService) MovePaper(ctx context.Context, userID, id, pred, succ uint64) (*domain.Paper, error) {
	var plan ordering.Plan
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		plan, err = s.repository.Move(ctx, userID, id, pred, succ)
		if !IsConflict(err) {
			break
		}
		metrics.Reorders.WithLabelValues("conflict").Inc()
		slog.WarnContext(ctx, "reorder conflict", "paper_id", id, "attempt", attempt+1)
	}
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Paper not found", err)
		}
		return nil, err
	}

	switch {
	case len(plan.Updates) == 0:
		metrics.Reorders.WithLabelValues("noop").Inc()
	case plan.Renumbered:
		metrics.Reorders.WithLabelValues("renumber").Inc()
		slog.InfoContext(ctx, "ordering scope renumbered", "paper_id", id, "rows", len(plan.Updates))
	default:
		metrics.Reorders.WithLabelValues("midpoint").Inc()
	}
	return s.GetPaper(ctx, userID, id)
}

func (s *DefaultService) ReorderList(ctx context.Context, userID uint64, status domain.PaperStatus, ids []uint64, categoryID *uint64) error {
	if !status.Valid() {
		return errors.BadRequest("Invalid status", nil)
	}
	if len(ids) == 0 {
		return errors.BadRequest("No papers to reorder", nil)
	}
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return errors.BadRequest("Duplicate paper id in order", nil)
		}
		seen[id] = true
	}

	if err := s.repository.ReorderList(ctx, userID, status, ids, categoryID); err != nil {
		return err
	}
	metrics.Reorders.WithLabelValues("list").Inc()
	return nil
}

func (s *DefaultService) LogEffort(ctx context.Context, userID, paperID uint64, points int, note string) (*domain.EffortLog, error) {
	if points < 1 {
		return nil, errors.BadRequest("Points must be at least 1", nil)
	}
	if _, err := s.repository.FindByID(ctx, userID, paperID); err != nil {
		return nil, notFound(err)
	}

	e := &domain.EffortLog{UserID: userID, PaperID: paperID, Points: points, Note: optional(note)}
	if err := s.repository.CreateEffort(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *DefaultService) ListEffort(ctx context.Context, userID uint64, paperID *uint64, limit int) ([]domain.EffortLog, error) {
	return s.repository.ListEffort(ctx, userID, paperID, limit)
}

func (s *DefaultService) EffortTotals(ctx context.Context, userID uint64) (map[uint64]int64, error) {
	return s.repository.EffortTotals(ctx, userID)
}

func (s *DefaultService) AddDiscoverySource(ctx context.Context, userID, paperID uint64, input SourceInput) (*domain.DiscoverySource, error) {
	if _, err := s.repository.FindByID(ctx, userID, paperID); err != nil {
		return nil, notFound(err)
	}

	src := &domain.DiscoverySource{PaperID: paperID, SourceType: input.Type}
	switch input.Type {
	case domain.DiscoveredFromPaper:
		if strings.TrimSpace(input.ArxivID) == "" {
			return nil, errors.BadRequest("arXiv identifier is required for a paper source", nil)
		}
		id, err := arxiv.Normalize(input.ArxivID)
		if err != nil {
			return nil, err
		}
		src.SourceArxivID = &id.ID

		linked, err := s.repository.FindByArxivID(ctx, userID, id.ID)
		switch {
		case err == nil:
			if linked.ID == paperID {
				return nil, errors.BadRequest("A paper cannot be its own source", nil)
			}
			src.SourcePaperID = &linked.ID
		case !defError.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	case domain.DiscoveredFromText:
		text := strings.TrimSpace(input.Text)
		if text == "" {
			return nil, errors.BadRequest("Text is required for a text source", nil)
		}
		src.SourceText = &text
	default:
		return nil, errors.BadRequest("Invalid source type", nil)
	}

	if err := s.repository.CreateSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

func (s *DefaultService) ListDiscoverySources(ctx context.Context, userID, paperID uint64) ([]domain.DiscoverySource, error) {
	if _, err := s.repository.FindByID(ctx, userID, paperID); err != nil {
		return nil, notFound(err)
	}
	return s.repository.ListSources(ctx, paperID)
}

func (s *DefaultService) DeleteDiscoverySource(ctx context.Context, userID, sourceID uint64) error {
	if err := s.repository.DeleteSource(ctx, userID, sourceID); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Source not found", err)
		}
		return err
	}
	return nil
}

func (s *DefaultService) checkCategory(ctx context.Context, userID uint64, categoryID *uint64) error {
	if categoryID == nil {
		return nil
	}
	ok, err := s.repository.CategoryOwned(ctx, userID, *categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.BadRequest("Category not found", nil)
	}
	return nil
}

func (s *DefaultService) checkDuplicate(ctx context.Context, userID uint64, arxivID string) error {
	existing, err := s.repository.FindByArxivID(ctx, userID, arxivID)
	if err == nil {
		apiErr := errors.Conflict("Paper already exists", nil)
		apiErr.Details = map[string]uint64{"paper_id": existing.ID}
		return apiErr
	}
	if !defError.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func (s *DefaultService) writeError(err error) error {
	switch {
	case defError.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFound("Paper not found", err)
	case defError.Is(err, gorm.ErrDuplicatedKey):
		return errors.Conflict("Paper already exists", err)
	}
	return err
}

func applyMetadata(p *domain.Paper, meta *domain.PaperMetadata) {
	p.Title = meta.Title
	p.Abstract = optional(meta.Abstract)
	p.URL = optional(meta.URL)
	p.PDFURL = optional(meta.PDFURL)
	p.ArxivID = optional(meta.ID)
	if meta.Version > 0 {
		v := meta.Version
		p.ArxivVersion = &v
	}
	p.ArxivPrimaryCategory = optional(meta.PrimaryCategory)
	p.ArxivCategories = domain.EncodeTags(meta.Categories)
	p.ArxivPublishedAt = meta.PublishedAt
	p.ArxivUpdatedAt = meta.UpdatedAt
	p.DOI = optional(meta.DOI)
	p.JournalRef = optional(meta.JournalRef)
}

// stampRead keeps ReadAt consistent with Status.
func stampRead(p *domain.Paper, prev domain.PaperStatus) {
	switch {
	case p.Status == domain.StatusRead && prev != domain.StatusRead:
		now := time.Now().UTC()
		p.ReadAt = &now
	case p.Status != domain.StatusRead:
		p.ReadAt = nil
	}
}

func statusOrDefault(st domain.PaperStatus) (domain.PaperStatus, error) {
	if st == "" {
		return domain.StatusPlanned, nil
	}
	if !st.Valid() {
		return "", errors.BadRequest("Invalid status", nil)
	}
	return st, nil
}

func notFound(err error) error {
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound("Paper not found", err)
	}
	return err
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
