package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creatorpay/internal/clock"
	impressiondomain "github.com/smallbiznis/creatorpay/internal/impression/domain"
	"github.com/smallbiznis/creatorpay/internal/impression/liveevents"
	obsmetrics "github.com/smallbiznis/creatorpay/internal/observability/metrics"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const viewDateLayout = "2006-01-02"

// maxOccurredAtSkew is how far ahead of server time an event timestamp may
// sit before it is rejected outright rather than soft-rejected.
const maxOccurredAtSkew = 5 * time.Minute

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
	LiveEvents *liveevents.Hub     `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
	liveEvents *liveevents.Hub
}

func NewService(p ServiceParam) impressiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("impression.service"),

		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
		liveEvents: p.LiveEvents,
	}
}

// Record counts a single view event. Ineligible events are soft-rejected:
// the call succeeds with Counted=false and the stored view counter is left
// untouched. Eligible events increment the submission counter and the
// matching aggregate row with single atomic writes, so concurrent calls for
// the same submission never lose an increment.
func (s *Service) Record(ctx context.Context, req impressiondomain.RecordViewRequest) (impressiondomain.RecordViewResponse, error) {
	submissionID, err := snowflake.ParseString(strings.TrimSpace(req.SubmissionID))
	if err != nil || submissionID == 0 {
		return impressiondomain.RecordViewResponse{}, submissiondomain.ErrInvalidSubmissionID
	}

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.clock.Now()
	}
	occurredAt = occurredAt.UTC()
	if occurredAt.After(s.clock.Now().Add(maxOccurredAtSkew)) {
		return impressiondomain.RecordViewResponse{}, impressiondomain.ErrInvalidOccurredAt
	}

	var record submissiondomain.Submission
	if err := s.db.WithContext(ctx).First(&record, "id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return impressiondomain.RecordViewResponse{}, submissiondomain.ErrNotFound
		}
		return impressiondomain.RecordViewResponse{}, err
	}

	if reason := rejectionReason(&record, occurredAt); reason != "" {
		if s.obsMetrics != nil {
			s.obsMetrics.RecordViewRejected(ctx, reason)
		}
		s.emitLiveEvent(&record, req, occurredAt, liveevents.StatusRejected, reason)
		return impressiondomain.RecordViewResponse{
			Counted: false,
			Views:   record.Views,
			Reason:  reason,
		}, nil
	}

	region := normalizeDimension(req.Region)
	device := normalizeDimension(req.Device)
	viewDate := occurredAt.Format(viewDateLayout)
	now := s.clock.Now()

	var views int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`UPDATE submissions SET views = views + 1, updated_at = ? WHERE id = ?`,
			now, submissionID,
		).Error; err != nil {
			return err
		}

		aggregate := impressiondomain.ImpressionAggregate{
			SubmissionID:  submissionID,
			ViewDate:      viewDate,
			Region:        region,
			Device:        device,
			VerifiedViews: 1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "submission_id"},
				{Name: "view_date"},
				{Name: "region"},
				{Name: "device"},
			},
			DoUpdates: clause.Assignments(map[string]any{
				"verified_views": gorm.Expr("verified_views + 1"),
				"updated_at":     now,
			}),
		}).Create(&aggregate).Error; err != nil {
			return err
		}

		return tx.Model(&submissiondomain.Submission{}).
			Select("views").
			Where("id = ?", submissionID).
			Scan(&views).Error
	})
	if err != nil {
		return impressiondomain.RecordViewResponse{}, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordViewCounted(ctx)
	}
	s.emitLiveEvent(&record, req, occurredAt, liveevents.StatusCounted, "")

	return impressiondomain.RecordViewResponse{
		Counted: true,
		Views:   views,
	}, nil
}

func (s *Service) ListAggregates(ctx context.Context, req impressiondomain.ListAggregateRequest) (impressiondomain.ListAggregateResponse, error) {
	submissionID, err := snowflake.ParseString(strings.TrimSpace(req.SubmissionID))
	if err != nil || submissionID == 0 {
		return impressiondomain.ListAggregateResponse{}, submissiondomain.ErrInvalidSubmissionID
	}

	stmt := s.db.WithContext(ctx).
		Model(&impressiondomain.ImpressionAggregate{}).
		Where("submission_id = ?", submissionID)

	if start := strings.TrimSpace(req.StartDate); start != "" {
		if _, err := time.Parse(viewDateLayout, start); err != nil {
			return impressiondomain.ListAggregateResponse{}, impressiondomain.ErrInvalidDateRange
		}
		stmt = stmt.Where("view_date >= ?", start)
	}
	if end := strings.TrimSpace(req.EndDate); end != "" {
		if _, err := time.Parse(viewDateLayout, end); err != nil {
			return impressiondomain.ListAggregateResponse{}, impressiondomain.ErrInvalidDateRange
		}
		stmt = stmt.Where("view_date <= ?", end)
	}

	var rows []impressiondomain.ImpressionAggregate
	if err := stmt.Order("view_date asc, region asc, device asc").Find(&rows).Error; err != nil {
		return impressiondomain.ListAggregateResponse{}, err
	}
	return impressiondomain.ListAggregateResponse{Aggregates: rows}, nil
}

// rejectionReason gates a view event. The approval timestamp bounds
// eligibility so replayed or clock-skewed events from before the submission
// went public never count.
func rejectionReason(record *submissiondomain.Submission, occurredAt time.Time) string {
	if record.Status != submissiondomain.SubmissionStatusApproved {
		return impressiondomain.ReasonNotApproved
	}
	if record.Visibility != submissiondomain.VisibilityPublic {
		return impressiondomain.ReasonNotPublic
	}
	if record.ApprovedAt != nil && occurredAt.Before(*record.ApprovedAt) {
		return impressiondomain.ReasonBackdated
	}
	return ""
}

func (s *Service) emitLiveEvent(record *submissiondomain.Submission, req impressiondomain.RecordViewRequest, occurredAt time.Time, status, reason string) {
	if s.liveEvents == nil || record == nil {
		return
	}
	event := liveevents.LiveEvent{
		SubmissionID: record.ID.String(),
		ViewerID:     strings.TrimSpace(req.ViewerID),
		OccurredAt:   occurredAt.Format(time.RFC3339Nano),
		Region:       normalizeDimension(req.Region),
		Device:       normalizeDimension(req.Device),
		Status:       status,
		Reason:       reason,
		Source:       liveevents.SourceAPI,
	}
	s.liveEvents.Publish(record.ID.String(), event)
}

func normalizeDimension(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
