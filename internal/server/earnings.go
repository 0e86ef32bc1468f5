package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	earningsdomain "github.com/smallbiznis/creatorpay/internal/earnings/domain"
)

func (s *Server) GetEarningsSummary(c *gin.Context) {
	period := strings.TrimSpace(c.Query("period"))
	if period == "" {
		AbortWithError(c, newValidationError("period", "invalid_period", "period is required"))
		return
	}

	resp, err := s.earningsSvc.Summary(c.Request.Context(), earningsdomain.SummaryRequest{
		CreatorID: c.Param("id"),
		Period:    period,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
