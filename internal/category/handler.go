package category

import (
	"net/http"
	"strconv"

	"github.com/bikestra/paper-tracker/internal/errors"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type CategoryRequest struct {
	Name string `json:"name" form:"name" binding:"required,min=1,max=100"`
}

func (h *Handler) List(c *gin.Context) {
	userID, _ := c.Get("user_id")

	categories, err := h.service.List(c.Request.Context(), userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, categories)
}

func (h *Handler) Show(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("Invalid category id", err))
		return
	}
	userID, _ := c.Get("user_id")

	category, err := h.service.Get(c.Request.Context(), userID.(uint64), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, category)
}

func (h *Handler) Create(c *gin.Context) {
	var form CategoryRequest
	if err := c.ShouldBind(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}
	userID, _ := c.Get("user_id")

	category, err := h.service.Create(c.Request.Context(), userID.(uint64), form.Name)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (h *Handler) Rename(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("Invalid category id", err))
		return
	}

	var form CategoryRequest
	if err := c.ShouldBind(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}
	userID, _ := c.Get("user_id")

	category, err := h.service.Rename(c.Request.Context(), userID.(uint64), id, form.Name)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, category)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("Invalid category id", err))
		return
	}
	userID, _ := c.Get("user_id")

	if err := h.service.Delete(c.Request.Context(), userID.(uint64), id); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
