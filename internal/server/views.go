package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	impressiondomain "github.com/smallbiznis/creatorpay/internal/impression/domain"
	"github.com/smallbiznis/creatorpay/internal/observability/logger"
	"go.uber.org/zap"
)

const rateLimitReasonSubmissionRate = "submission-rate"

func (s *Server) RecordView(c *gin.Context) {
	var req impressiondomain.RecordViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if submissionID := strings.TrimSpace(req.SubmissionID); submissionID != "" {
		c.Set("submission_id", submissionID)
	}

	resp, err := s.impressionSvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type viewIngestRateLimitKey struct {
	SubmissionID string `json:"submission_id"`
}

func (s *Server) ViewIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.viewLimiter == nil || !s.viewLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		submissionID, err := readViewIngestKey(c)
		if err != nil {
			logger.FromContext(ctx).Warn("view ingest rate limit read body failed", zap.Error(err))
			AbortWithError(c, invalidRequestError())
			return
		}
		if submissionID == "" {
			c.Next()
			return
		}

		result, err := s.viewLimiter.AllowSubmission(ctx, submissionID)
		if err != nil {
			logger.FromContext(ctx).Warn("view ingest rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			logger.FromContext(ctx).Warn("view ingest rate limit exceeded",
				zap.String("submission_id", submissionID),
				zap.String("endpoint", endpoint),
			)
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, rateLimitReasonSubmissionRate)
			}
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			c.Header("X-Rate-Limited-Reason", rateLimitReasonSubmissionRate)
			AbortWithError(c, ErrRateLimited)
			return
		}

		if s.obsMetrics != nil {
			s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
		}
		c.Next()
	}
}

func readViewIngestKey(c *gin.Context) (string, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return "", nil
	}

	var payload viewIngestRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}

	return strings.TrimSpace(payload.SubmissionID), nil
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
