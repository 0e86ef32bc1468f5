package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
)

func (s *Server) GeneratePayouts(c *gin.Context) {
	var req payoutdomain.GeneratePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.Generate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) GetPayoutByID(c *gin.Context) {
	record, err := s.payoutSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

type listPayoutsQuery struct {
	CreatorID string `form:"creator_id"`
	Status    string `form:"status"`
	Period    string `form:"period"`
	PageToken string `form:"page_token"`
	PageSize  int32  `form:"page_size"`
}

func (s *Server) ListPayouts(c *gin.Context) {
	var query listPayoutsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.List(c.Request.Context(), payoutdomain.ListPayoutRequest{
		CreatorID: strings.TrimSpace(query.CreatorID),
		Status:    payoutdomain.PayoutStatus(strings.TrimSpace(query.Status)),
		Period:    strings.TrimSpace(query.Period),
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Payouts, "page_info": resp.PageInfo})
}

func (s *Server) SendPayout(c *gin.Context) {
	record, err := s.payoutSvc.Send(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

type failPayoutBody struct {
	Reason string `json:"reason"`
}

func (s *Server) FailPayout(c *gin.Context) {
	var body failPayoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.payoutSvc.Fail(c.Request.Context(), payoutdomain.FailPayoutRequest{
		PayoutID: c.Param("id"),
		Reason:   body.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
