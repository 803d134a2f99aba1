package query

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/statline-io/statline/internal/core/errors"
)

// RegisterRoutes registers the chart query routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/charts/:chart", s.HandleSeries)
}

// HandleSeries handles GET /v1/charts/:chart
// Query parameters: span (hour|day), limit (1-500, default 30), group.
func (s *Service) HandleSeries(c *gin.Context) {
	var uri struct {
		Chart string `uri:"chart" binding:"required"`
	}
	var params struct {
		Span  string `form:"span" binding:"required"`
		Limit int    `form:"limit"`
		Group string `form:"group"`
	}

	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid path parameters",
			Details:   err.Error(),
		})
		return
	}

	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	resp, err := s.Series(c.Request.Context(), SeriesRequest{
		Chart: uri.Chart,
		Span:  params.Span,
		Limit: params.Limit,
		Group: params.Group,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidQuery) {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidQueryError,
				Message:   "Invalid chart query",
				Details:   err.Error(),
			})
			return
		}

		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpStoreUnavailableErr,
			Message:   "Failed to query chart",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}
