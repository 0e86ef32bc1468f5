package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
)

func (s *Server) CreateSubmission(c *gin.Context) {
	var req submissiondomain.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.submissionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (s *Server) GetSubmissionByID(c *gin.Context) {
	record, err := s.submissionSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

type listSubmissionsQuery struct {
	CreatorID  string `form:"creator_id"`
	CampaignID string `form:"campaign_id"`
	Status     string `form:"status"`
	PageToken  string `form:"page_token"`
	PageSize   int32  `form:"page_size"`
}

func (s *Server) ListSubmissions(c *gin.Context) {
	var query listSubmissionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.submissionSvc.List(c.Request.Context(), submissiondomain.ListSubmissionRequest{
		CreatorID:  strings.TrimSpace(query.CreatorID),
		CampaignID: strings.TrimSpace(query.CampaignID),
		Status:     submissiondomain.SubmissionStatus(strings.TrimSpace(query.Status)),
		PageToken:  strings.TrimSpace(query.PageToken),
		PageSize:   query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Submissions, "page_info": resp.PageInfo})
}

type reviewBody struct {
	Note string `json:"note"`
}

func (s *Server) reviewRequest(c *gin.Context) (submissiondomain.ReviewRequest, bool) {
	actor, ok := s.actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return submissiondomain.ReviewRequest{}, false
	}

	var body reviewBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithError(c, invalidRequestError())
			return submissiondomain.ReviewRequest{}, false
		}
	}

	return submissiondomain.ReviewRequest{
		SubmissionID: c.Param("id"),
		ReviewerID:   actor.ID,
		Note:         body.Note,
	}, true
}

func (s *Server) ApproveSubmission(c *gin.Context) {
	req, ok := s.reviewRequest(c)
	if !ok {
		return
	}

	record, err := s.submissionSvc.Approve(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) RejectSubmission(c *gin.Context) {
	req, ok := s.reviewRequest(c)
	if !ok {
		return
	}

	record, err := s.submissionSvc.Reject(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) FlagSubmission(c *gin.Context) {
	req, ok := s.reviewRequest(c)
	if !ok {
		return
	}

	record, err := s.submissionSvc.Flag(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
