package paper

import (
	"net/http"
	"strconv"

	"github.com/bikestra/paper-tracker/internal/domain"
	"github.com/bikestra/paper-tracker/internal/errors"
	"github.com/bikestra/paper-tracker/internal/utils"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type CreatePaperRequest struct {
	Title      string             `json:"title" binding:"required,max=500"`
	Abstract   string             `json:"abstract"`
	URL        string             `json:"url" binding:"omitempty,url,max=500"`
	PDFURL     string             `json:"pdf_url" binding:"omitempty,url,max=500"`
	ArxivID    string             `json:"arxiv_id" binding:"max=200"`
	Status     domain.PaperStatus `json:"status" binding:"omitempty,oneof=PLANNED READING READ"`
	CategoryID *uint64            `json:"category_id"`
	Notes      string             `json:"notes"`
	Authors    []string           `json:"authors" binding:"dive,max=255"`
}

type ArxivRequest struct {
	Input      string             `json:"input" form:"input" binding:"required,max=500"`
	Status     domain.PaperStatus `json:"status" form:"status" binding:"omitempty,oneof=PLANNED READING READ"`
	CategoryID *uint64            `json:"category_id" form:"category_id"`
	Notes      string             `json:"notes" form:"notes"`
}

type UpdatePaperRequest struct {
	Title         *string             `json:"title" binding:"omitempty,max=500"`
	Abstract      *string             `json:"abstract"`
	URL           *string             `json:"url" binding:"omitempty,max=500"`
	PDFURL        *string             `json:"pdf_url" binding:"omitempty,max=500"`
	Notes         *string             `json:"notes"`
	Status        *domain.PaperStatus `json:"status" binding:"omitempty,oneof=PLANNED READING READ"`
	CategoryID    *uint64             `json:"category_id"`
	ClearCategory bool                `json:"clear_category"`
	CitationKey   *string             `json:"citation_key" binding:"omitempty,max=100"`
	VenueYear     *string             `json:"venue_year" binding:"omitempty,max=100"`
	Authors       *[]string           `json:"authors"`
}

type MoveRequest struct {
	PredecessorID uint64 `json:"predecessor_id"`
	SuccessorID   uint64 `json:"successor_id"`
}

type ReorderRequest struct {
	Status     domain.PaperStatus `json:"status" binding:"required,oneof=PLANNED READING READ"`
	PaperIDs   []uint64           `json:"paper_ids" binding:"required,min=1"`
	CategoryID *uint64            `json:"category_id"`
}

type EffortRequest struct {
	Points int    `json:"points" binding:"required,min=1,max=100"`
	Note   string `json:"note" binding:"max=2000"`
}

type SourceRequest struct {
	SourceType domain.DiscoverySourceType `json:"source_type" binding:"required,oneof=PAPER TEXT"`
	ArxivID    string                     `json:"arxiv_id"`
	Text       string                     `json:"text" binding:"max=2000"`
}

func (h *Handler) Create(c *gin.Context) {
	var req CreatePaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}
	userID, _ := c.Get("user_id")

	paper, err := h.service.CreatePaper(c.Request.Context(), userID.(uint64), CreateInput{
		Title:      req.Title,
		Abstract:   req.Abstract,
		URL:        req.URL,
		PDFURL:     req.PDFURL,
		ArxivID:    req.ArxivID,
		Status:     req.Status,
		CategoryID: req.CategoryID,
		Notes:      req.Notes,
		Authors:    req.Authors,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, paper)
}

func (h *Handler) CreateFromArxiv(c *gin.Context) {
	var req ArxivRequest
	if err := c.ShouldBind(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}
	// an empty form select binds as 0
	if req.CategoryID != nil && *req.CategoryID == 0 {
		req.CategoryID = nil
	}
	userID, _ := c.Get("user_id")

	paper, err := h.service.CreateFromArxiv(c.Request.Context(), userID.(uint64), ArxivInput{
		Input:      req.Input,
		Status:     req.Status,
		CategoryID: req.CategoryID,
		Notes:      req.Notes,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, paper)
}

// FetchArxiv previews metadata without saving anything.
func (h *Handler) FetchArxiv(c *gin.Context) {
	var req struct {
		Input string `json:"input" form:"input" binding:"required,max=500"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	meta, err := h.service.FetchMetadata(c.Request.Context(), req.Input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, meta)
}

func (h *Handler) List(c *gin.Context) {
	filter, err := ParseListFilter(c)
	if err != nil {
		c.Error(err)
		return
	}
	userID, _ := c.Get("user_id")

	papers, err := h.service.ListPapers(c.Request.Context(), userID.(uint64), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, papers)
}

func (h *Handler) Counts(c *gin.Context) {
	userID, _ := c.Get("user_id")

	counts, err := h.service.StatusCounts(c.Request.Context(), userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, counts)
}

func (h *Handler) Show(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}
	userID, _ := c.Get("user_id")

	paper, err := h.service.GetPaper(c.Request.Context(), userID.(uint64), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, paper)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}

	var req UpdatePaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}
	userID, _ := c.Get("user_id")

	paper, err := h.service.UpdatePaper(c.Request.Context(), userID.(uint64), id, UpdateInput{
		Title:         req.Title,
		Abstract:      req.Abstract,
		URL:           req.URL,
		PDFURL:        req.PDFURL,
		Notes:         req.Notes,
		Status:        req.Status,
		CategoryID:    req.CategoryID,
		ClearCategory: req.ClearCategory,
		CitationKey:   req.CitationKey,
		VenueYear:     req.VenueYear,
		Authors:       req.Authors,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, paper)
}

func (h *Handler) Refresh(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}
	userID, _ := c.Get("user_id")

	paper, err := h.service.RefreshFromArxiv(c.Request.Context(), userID.(uint64), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, paper)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}
	userID, _ := c.Get("user_id")

	if err := h.service.DeletePaper(c.Request.Context(), userID.(uint64), id); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Like(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}
	userID, _ := c.Get("user_id")

	likes, err := h.service.LikePaper(c.Request.Context(), userID.(uint64), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "likes": likes})
}

func (h *Handler) Move(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}

	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}
	userID, _ := c.Get("user_id")

	paper, err := h.service.MovePaper(c.Request.Context(), userID.(uint64), id, req.PredecessorID, req.SuccessorID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, paper)
}

func (h *Handler) Reorder(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}
	userID, _ := c.Get("user_id")

	err := h.service.ReorderList(c.Request.Context(), userID.(uint64), req.Status, req.PaperIDs, req.CategoryID)
	if err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) LogEffort(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}

	var req EffortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}
	userID, _ := c.Get("user_id")

	entry, err := h.service.LogEffort(c.Request.Context(), userID.(uint64), id, req.Points, req.Note)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) PaperEffort(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}
	userID, _ := c.Get("user_id")

	logs, err := h.service.ListEffort(c.Request.Context(), userID.(uint64), &id, 0)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

// Effort lists recent effort across all papers, plus per-paper totals.
func (h *Handler) Effort(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.Error(errors.BadRequest("Invalid limit", err))
		return
	}
	paperFilter, err := utils.OptionalUint(c, "paper_id")
	if err != nil {
		c.Error(errors.BadRequest("Invalid paper id", err))
		return
	}
	userID, _ := c.Get("user_id")

	logs, err := h.service.ListEffort(c.Request.Context(), userID.(uint64), paperFilter, limit)
	if err != nil {
		c.Error(err)
		return
	}
	totals, err := h.service.EffortTotals(c.Request.Context(), userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs, "totals": totals})
}

func (h *Handler) AddSource(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}

	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}
	userID, _ := c.Get("user_id")

	src, err := h.service.AddDiscoverySource(c.Request.Context(), userID.(uint64), id, SourceInput{
		Type:    req.SourceType,
		ArxivID: req.ArxivID,
		Text:    req.Text,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, src)
}

func (h *Handler) Sources(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}
	userID, _ := c.Get("user_id")

	sources, err := h.service.ListDiscoverySources(c.Request.Context(), userID.(uint64), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sources)
}

func (h *Handler) DeleteSource(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("Invalid source id", err))
		return
	}
	userID, _ := c.Get("user_id")

	if err := h.service.DeleteDiscoverySource(c.Request.Context(), userID.(uint64), id); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ParseListFilter reads status, category_id, uncategorized and sort from the query string.
func ParseListFilter(c *gin.Context) (ListFilter, error) {
	filter := ListFilter{Sort: c.DefaultQuery("sort", SortManual)}

	if raw := c.Query("status"); raw != "" {
		st := domain.PaperStatus(raw)
		if !st.Valid() {
			return filter, errors.BadRequest("Invalid status", nil)
		}
		filter.Status = &st
	}

	categoryID, err := utils.OptionalUint(c, "category_id")
	if err != nil {
		return filter, errors.BadRequest("Invalid category id", err)
	}
	filter.CategoryID = categoryID
	filter.Uncategorized = c.Query("uncategorized") == "true"

	return filter, nil
}

func paperID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("Invalid paper id", err))
		return 0, false
	}
	return id, true
}
