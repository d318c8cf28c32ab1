package paper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bikestra/paper-tracker/internal/arxiv"
	"github.com/bikestra/paper-tracker/internal/domain"
	"github.com/bikestra/paper-tracker/internal/errors"
	"github.com/bikestra/paper-tracker/internal/middleware"
	"github.com/bikestra/paper-tracker/internal/ordering"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockService is a mock implementation of the Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) paper(args mock.Arguments) (*domain.Paper, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Paper), args.Error(1)
}

func (m *MockService) CreatePaper(ctx context.Context, userID uint64, input CreateInput) (*domain.Paper, error) {
	return m.paper(m.Called(ctx, userID, input))
}

func (m *MockService) CreateFromArxiv(ctx context.Context, userID uint64, input ArxivInput) (*domain.Paper, error) {
	return m.paper(m.Called(ctx, userID, input))
}

func (m *MockService) FetchMetadata(ctx context.Context, raw string) (*domain.PaperMetadata, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaperMetadata), args.Error(1)
}

func (m *MockService) GetPaper(ctx context.Context, userID, id uint64) (*domain.Paper, error) {
	return m.paper(m.Called(ctx, userID, id))
}

func (m *MockService) ListPapers(ctx context.Context, userID uint64, filter ListFilter) ([]domain.Paper, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Paper), args.Error(1)
}

func (m *MockService) StatusCounts(ctx context.Context, userID uint64) (map[domain.PaperStatus]int64, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.PaperStatus]int64), args.Error(1)
}

func (m *MockService) UpdatePaper(ctx context.Context, userID, id uint64, input UpdateInput) (*domain.Paper, error) {
	return m.paper(m.Called(ctx, userID, id, input))
}

func (m *MockService) RefreshFromArxiv(ctx context.Context, userID, id uint64) (*domain.Paper, error) {
	return m.paper(m.Called(ctx, userID, id))
}

func (m *MockService) DeletePaper(ctx context.Context, userID, id uint64) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *MockService) LikePaper(ctx context.Context, userID, id uint64) (int, error) {
	args := m.Called(ctx, userID, id)
	return args.Int(0), args.Error(1)
}

func (m *MockService) MovePaper(ctx context.Context, userID, id, pred, succ uint64) (*domain.Paper, error) {
	return m.paper(m.Called(ctx, userID, id, pred, succ))
}

func (m *MockService) ReorderList(ctx context.Context, userID uint64, status domain.PaperStatus, ids []uint64, categoryID *uint64) error {
	return m.Called(ctx, userID, status, ids, categoryID).Error(0)
}

func (m *MockService) LogEffort(ctx context.Context, userID, paperID uint64, points int, note string) (*domain.EffortLog, error) {
	args := m.Called(ctx, userID, paperID, points, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EffortLog), args.Error(1)
}

func (m *MockService) ListEffort(ctx context.Context, userID uint64, paperID *uint64, limit int) ([]domain.EffortLog, error) {
	args := m.Called(ctx, userID, paperID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EffortLog), args.Error(1)
}

func (m *MockService) EffortTotals(ctx context.Context, userID uint64) (map[uint64]int64, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uint64]int64), args.Error(1)
}

func (m *MockService) AddDiscoverySource(ctx context.Context, userID, paperID uint64, input SourceInput) (*domain.DiscoverySource, error) {
	args := m.Called(ctx, userID, paperID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DiscoverySource), args.Error(1)
}

func (m *MockService) ListDiscoverySources(ctx context.Context, userID, paperID uint64) ([]domain.DiscoverySource, error) {
	args := m.Called(ctx, userID, paperID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DiscoverySource), args.Error(1)
}

func (m *MockService) DeleteDiscoverySource(ctx context.Context, userID, sourceID uint64) error {
	return m.Called(ctx, userID, sourceID).Error(0)
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(func(c *gin.Context) {
		c.Set("user_id", uint64(1))
		c.Next()
	})

	api := router.Group("/api")
	api.GET("/papers", handler.List)
	api.POST("/papers", handler.Create)
	api.POST("/papers/arxiv", handler.CreateFromArxiv)
	api.POST("/papers/fetch-arxiv", handler.FetchArxiv)
	api.POST("/papers/reorder", handler.Reorder)
	api.GET("/papers/:id", handler.Show)
	api.PATCH("/papers/:id", handler.Update)
	api.DELETE("/papers/:id", handler.Delete)
	api.POST("/papers/:id/like", handler.Like)
	api.POST("/papers/:id/move", handler.Move)
	api.POST("/papers/:id/effort", handler.LogEffort)
	api.POST("/papers/:id/sources", handler.AddSource)
	api.GET("/effort", handler.Effort)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_Create(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	input := CreateInput{Title: "Attention", Status: domain.StatusReading, Authors: []string{"A. Smith"}}
	mockService.On("CreatePaper", mock.Anything, uint64(1), input).
		Return(&domain.Paper{ID: 7, Title: "Attention", Status: domain.StatusReading}, nil)

	w := doJSON(router, "POST", "/api/papers", gin.H{"title": "Attention", "status": "READING", "authors": []string{"A. Smith"}})

	assert.Equal(t, http.StatusCreated, w.Code)
	var got domain.Paper
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, uint64(7), got.ID)
	mockService.AssertExpectations(t)
}

func TestHandler_CreateInvalid(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	tests := []gin.H{
		{},
		{"title": "x", "status": "DONE"},
		{"title": "x", "url": "not a url"},
	}
	for _, body := range tests {
		w := doJSON(router, "POST", "/api/papers", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %v", body)
	}
	mockService.AssertNotCalled(t, "CreatePaper", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_FetchArxivErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid", &arxiv.IdentifierError{Input: "nope"}, http.StatusUnprocessableEntity},
		{"not found", &arxiv.FetchError{ID: "2301.99999", Kind: arxiv.ErrNotFound}, http.StatusNotFound},
		{"unavailable", &arxiv.FetchError{ID: "2301.12345", Kind: arxiv.ErrUpstreamUnavailable}, http.StatusServiceUnavailable},
		{"malformed", &arxiv.FetchError{ID: "2301.12345", Kind: arxiv.ErrMalformedResponse}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			router := setupRouter(NewHandler(mockService))
			mockService.On("FetchMetadata", mock.Anything, "input").Return(nil, tt.err)

			w := doJSON(router, "POST", "/api/papers/fetch-arxiv", gin.H{"input": "input"})
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHandler_FetchArxiv(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("FetchMetadata", mock.Anything, "2301.12345").
		Return(&domain.PaperMetadata{ID: "2301.12345", Title: "Attention"}, nil)

	w := doJSON(router, "POST", "/api/papers/fetch-arxiv", gin.H{"input": "2301.12345"})

	assert.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "2301.12345", got["arxiv_id"])
}

func TestHandler_ListFilter(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	reading := domain.StatusReading
	categoryID := uint64(3)
	mockService.On("ListPapers", mock.Anything, uint64(1), ListFilter{Status: &reading, CategoryID: &categoryID, Sort: SortLikes}).
		Return([]domain.Paper{{ID: 1}}, nil)

	w := doJSON(router, "GET", "/api/papers?status=READING&category_id=3&sort=likes", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)

	w = doJSON(router, "GET", "/api/papers?status=LATER", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Update(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	read := domain.StatusRead
	mockService.On("UpdatePaper", mock.Anything, uint64(1), uint64(5), mock.MatchedBy(func(in UpdateInput) bool {
		return in.Status != nil && *in.Status == read && in.Title == nil && in.ClearCategory
	})).Return(&domain.Paper{ID: 5, Status: read}, nil)

	w := doJSON(router, "PATCH", "/api/papers/5", gin.H{"status": "READ", "clear_category": true})
	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestHandler_Move(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("MovePaper", mock.Anything, uint64(1), uint64(3), uint64(1), uint64(2)).
		Return(&domain.Paper{ID: 3, OrderIndex: 15}, nil)
	mockService.On("MovePaper", mock.Anything, uint64(1), uint64(4), uint64(0), uint64(0)).
		Return(nil, ordering.ErrConflict)
	mockService.On("MovePaper", mock.Anything, uint64(1), uint64(5), uint64(9), uint64(0)).
		Return(nil, fmt.Errorf("%w: 9", ordering.ErrUnknownNeighbor))

	w := doJSON(router, "POST", "/api/papers/3/move", MoveRequest{PredecessorID: 1, SuccessorID: 2})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "POST", "/api/papers/4/move", MoveRequest{})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, "POST", "/api/papers/5/move", MoveRequest{PredecessorID: 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "POST", "/api/papers/abc/move", MoveRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Reorder(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("ReorderList", mock.Anything, uint64(1), domain.StatusPlanned, []uint64{3, 1, 2}, (*uint64)(nil)).Return(nil)

	w := doJSON(router, "POST", "/api/papers/reorder", ReorderRequest{Status: domain.StatusPlanned, PaperIDs: []uint64{3, 1, 2}})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, "POST", "/api/papers/reorder", gin.H{"status": "PLANNED", "paper_ids": []uint64{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertExpectations(t)
}

func TestHandler_DeleteNotFound(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("DeletePaper", mock.Anything, uint64(1), uint64(9)).Return(errors.NotFound("Paper not found", nil))

	w := doJSON(router, "DELETE", "/api/papers/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Like(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("LikePaper", mock.Anything, uint64(1), uint64(2)).Return(4, nil)

	w := doJSON(router, "POST", "/api/papers/2/like", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":2,"likes":4}`, w.Body.String())
}

func TestHandler_Effort(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("LogEffort", mock.Anything, uint64(1), uint64(2), 3, "chapter 2").
		Return(&domain.EffortLog{ID: 1, PaperID: 2, Points: 3}, nil)
	mockService.On("ListEffort", mock.Anything, uint64(1), (*uint64)(nil), 10).
		Return([]domain.EffortLog{{ID: 1, PaperID: 2, Points: 3}}, nil)
	mockService.On("EffortTotals", mock.Anything, uint64(1)).Return(map[uint64]int64{2: 3}, nil)

	w := doJSON(router, "POST", "/api/papers/2/effort", EffortRequest{Points: 3, Note: "chapter 2"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, "POST", "/api/papers/2/effort", gin.H{"points": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "GET", "/api/effort?limit=10", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got["data"], 1)

	w = doJSON(router, "GET", "/api/effort?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertExpectations(t)
}

func TestHandler_AddSource(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("AddDiscoverySource", mock.Anything, uint64(1), uint64(2), SourceInput{Type: domain.DiscoveredFromText, Text: "a talk"}).
		Return(&domain.DiscoverySource{ID: 1, PaperID: 2, SourceType: domain.DiscoveredFromText}, nil)

	w := doJSON(router, "POST", "/api/papers/2/sources", SourceRequest{SourceType: domain.DiscoveredFromText, Text: "a talk"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, "POST", "/api/papers/2/sources", gin.H{"source_type": "PODCAST"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertExpectations(t)
}
