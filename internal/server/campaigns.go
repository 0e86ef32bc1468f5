package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	campaigndomain "github.com/smallbiznis/creatorpay/internal/campaign/domain"
)

func (s *Server) ListCampaigns(c *gin.Context) {
	active, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.campaignSvc.List(c.Request.Context(), campaigndomain.ListCampaignRequest{
		Active: active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Campaigns})
}

func (s *Server) GetCampaignByID(c *gin.Context) {
	record, err := s.campaignSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
