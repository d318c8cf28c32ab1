package middleware

import (
	"errors"
	"log/slog"

	"github.com/bikestra/paper-tracker/internal/arxiv"
	apiError "github.com/bikestra/paper-tracker/internal/errors"
	"github.com/bikestra/paper-tracker/internal/ordering"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		apiErr := toAPIError(err)

		if apiErr.Status >= 500 {
			slog.Error(apiErr.Message, "path", c.FullPath(), "error", apiErr.Internal, "request_id", c.GetString(RequestIDKey))
		} else {
			slog.Info(apiErr.Message, "path", c.FullPath(), "status", apiErr.Status, "error", apiErr.Internal, "request_id", c.GetString(RequestIDKey))
		}

		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(apiErr.Status, apiErr)
	}
}

// toAPIError maps domain errors onto HTTP errors. Anything unrecognized is a 500.
func toAPIError(err error) *apiError.APIError {
	var apiErr *apiError.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, arxiv.ErrInvalidIdentifier):
		return apiError.UnprocessableEntity(err.Error(), err)
	case errors.Is(err, arxiv.ErrNotFound):
		return apiError.NotFound("Paper not found on arXiv", err)
	case errors.Is(err, arxiv.ErrUpstreamUnavailable):
		return apiError.ServiceUnavailable("arXiv is unavailable, try again later", err)
	case errors.Is(err, arxiv.ErrMalformedResponse):
		return apiError.BadGateway("arXiv returned an unexpected response", err)
	case errors.Is(err, ordering.ErrConflict):
		return apiError.Conflict("The list changed while reordering, reload and try again", err)
	case errors.Is(err, ordering.ErrUnknownNeighbor), errors.Is(err, ordering.ErrNeighborOrder):
		return apiError.BadRequest(err.Error(), err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apiError.NotFound("Resource not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apiError.Conflict("Resource already exists", err)
	}
	return apiError.Internal(err)
}
