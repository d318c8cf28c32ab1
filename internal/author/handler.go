package author

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

func (h *Handler) List(c *gin.Context) {
	userID, _ := c.Get("user_id")

	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.ListAuthors(c.Request.Context(), userID.(uint64), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Show(c *gin.Context) {
	authorID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("Invalid author id", err))
		return
	}

	var status *domain.PaperStatus
	if raw := c.Query("status"); raw != "" {
		st := domain.PaperStatus(raw)
		if !st.Valid() {
			c.Error(errors.BadRequest("Invalid status", nil))
			return
		}
		status = &st
	}

	userID, _ := c.Get("user_id")

	detail, err := h.service.GetAuthor(c.Request.Context(), userID.(uint64), authorID, status)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, detail)
}
