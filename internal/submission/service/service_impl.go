package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	"github.com/smallbiznis/creatorpay/internal/clock"
	obsmetrics "github.com/smallbiznis/creatorpay/internal/observability/metrics"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
	"github.com/smallbiznis/creatorpay/pkg/db/option"
	"github.com/smallbiznis/creatorpay/pkg/db/pagination"
	"github.com/smallbiznis/creatorpay/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics

	submissionrepo repository.Repository[submissiondomain.Submission]
}

func NewService(p ServiceParam) submissiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("submission.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,

		submissionrepo: repository.ProvideStore[submissiondomain.Submission](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req submissiondomain.CreateSubmissionRequest) (*submissiondomain.Submission, error) {
	creatorID, err := s.parseID(req.CreatorID, submissiondomain.ErrInvalidCreator)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, submissiondomain.ErrInvalidTitle
	}

	var campaignID *snowflake.ID
	if strings.TrimSpace(req.CampaignID) != "" {
		parsed, err := s.parseID(req.CampaignID, submissiondomain.ErrInvalidCampaign)
		if err != nil {
			return nil, err
		}
		campaignID = &parsed
	}

	now := s.clock.Now()
	record := &submissiondomain.Submission{
		ID:          s.genID.Generate(),
		CreatorID:   creatorID,
		CampaignID:  campaignID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		ContentRef:  strings.TrimSpace(req.ContentRef),
		Status:      submissiondomain.SubmissionStatusPendingReview,
		Visibility:  submissiondomain.VisibilityPrivate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.submissionrepo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*submissiondomain.Submission, error) {
	submissionID, err := s.parseID(id, submissiondomain.ErrInvalidSubmissionID)
	if err != nil {
		return nil, err
	}

	item, err := s.submissionrepo.FindOne(ctx, &submissiondomain.Submission{ID: submissionID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, submissiondomain.ErrNotFound
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, req submissiondomain.ListSubmissionRequest) (submissiondomain.ListSubmissionResponse, error) {
	filter := &submissiondomain.Submission{}

	if strings.TrimSpace(req.CreatorID) != "" {
		creatorID, err := s.parseID(req.CreatorID, submissiondomain.ErrInvalidCreator)
		if err != nil {
			return submissiondomain.ListSubmissionResponse{}, err
		}
		filter.CreatorID = creatorID
	}
	if strings.TrimSpace(req.CampaignID) != "" {
		campaignID, err := s.parseID(req.CampaignID, submissiondomain.ErrInvalidCampaign)
		if err != nil {
			return submissiondomain.ListSubmissionResponse{}, err
		}
		filter.CampaignID = &campaignID
	}
	if req.Status != "" {
		filter.Status = req.Status
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.submissionrepo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return submissiondomain.ListSubmissionResponse{}, err
	}
	return buildSubmissionListResponse(items, pageSize)
}

// Approve transitions a submission to approved/public. Re-approving an
// already-approved submission returns the stored row untouched so approved_at
// never moves forward and previously counted views stay valid.
func (s *Service) Approve(ctx context.Context, req submissiondomain.ReviewRequest) (*submissiondomain.Submission, error) {
	return s.review(ctx, req, "submission.approve", false, func(record *submissiondomain.Submission, now time.Time) (map[string]any, bool) {
		if record.Status == submissiondomain.SubmissionStatusApproved {
			return nil, false
		}
		return map[string]any{
			"status":      submissiondomain.SubmissionStatusApproved,
			"visibility":  submissiondomain.VisibilityPublic,
			"approved_at": now,
			"rejected_at": nil,
		}, true
	})
}

func (s *Service) Reject(ctx context.Context, req submissiondomain.ReviewRequest) (*submissiondomain.Submission, error) {
	if strings.TrimSpace(req.Note) == "" {
		return nil, submissiondomain.ErrEmptyReviewNote
	}
	return s.review(ctx, req, "submission.reject", true, func(record *submissiondomain.Submission, now time.Time) (map[string]any, bool) {
		return map[string]any{
			"status":      submissiondomain.SubmissionStatusRejected,
			"visibility":  submissiondomain.VisibilityPrivate,
			"rejected_at": now,
			"approved_at": nil,
		}, true
	})
}

func (s *Service) Flag(ctx context.Context, req submissiondomain.ReviewRequest) (*submissiondomain.Submission, error) {
	return s.review(ctx, req, "submission.flag", false, func(record *submissiondomain.Submission, now time.Time) (map[string]any, bool) {
		return map[string]any{
			"status":     submissiondomain.SubmissionStatusFlagged,
			"visibility": submissiondomain.VisibilityPrivate,
		}, true
	})
}

// review runs one moderation action inside a transaction. The updates map is
// assembled from fixed keys only; no caller input ever names a column.
func (s *Service) review(
	ctx context.Context,
	req submissiondomain.ReviewRequest,
	action string,
	noteRequired bool,
	buildUpdates func(record *submissiondomain.Submission, now time.Time) (map[string]any, bool),
) (*submissiondomain.Submission, error) {

	submissionID, err := s.parseID(req.SubmissionID, submissiondomain.ErrInvalidSubmissionID)
	if err != nil {
		return nil, err
	}
	reviewerID := strings.TrimSpace(req.ReviewerID)
	if reviewerID == "" {
		return nil, submissiondomain.ErrInvalidReviewer
	}
	note := strings.TrimSpace(req.Note)
	if noteRequired && note == "" {
		return nil, submissiondomain.ErrEmptyReviewNote
	}

	var record submissiondomain.Submission
	var mutated bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", submissionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return submissiondomain.ErrNotFound
			}
			return err
		}

		now := s.clock.Now()
		updates, ok := buildUpdates(&record, now)
		if !ok {
			return nil
		}

		updates["reviewed_by"] = reviewerID
		updates["review_note"] = note
		updates["updated_at"] = now

		if err := tx.Model(&submissiondomain.Submission{}).
			Where("id = ?", submissionID).
			Updates(updates).Error; err != nil {
			return err
		}

		mutated = true
		// Re-read into a clean struct; gorm leaves pointer fields from the
		// first read in place when the column came back NULL.
		record = submissiondomain.Submission{}
		return tx.First(&record, "id = ?", submissionID).Error
	})
	if err != nil {
		return nil, err
	}

	if mutated {
		s.writeAudit(ctx, action, &record, note)
		if s.obsMetrics != nil {
			s.obsMetrics.RecordModerationAction(ctx, action)
		}
	}

	return &record, nil
}

func (s *Service) writeAudit(ctx context.Context, action string, record *submissiondomain.Submission, note string) {
	if s.auditSvc == nil || record == nil {
		return
	}
	targetID := record.ID.String()
	metadata := map[string]any{
		"status":     string(record.Status),
		"visibility": string(record.Visibility),
		"creator_id": record.CreatorID.String(),
	}
	if note != "" {
		metadata["review_note"] = note
	}
	reviewer := record.ReviewedBy
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &reviewer, action, "submission", &targetID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func buildSubmissionListResponse(items []*submissiondomain.Submission, pageSize int32) (submissiondomain.ListSubmissionResponse, error) {
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record *submissiondomain.Submission) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	records := make([]submissiondomain.Submission, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	resp := submissiondomain.ListSubmissionResponse{
		Submissions: records,
	}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
