package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	"github.com/smallbiznis/creatorpay/internal/audit/masking"
	campaigndomain "github.com/smallbiznis/creatorpay/internal/campaign/domain"
	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/config"
	earningsdomain "github.com/smallbiznis/creatorpay/internal/earnings/domain"
	obsmetrics "github.com/smallbiznis/creatorpay/internal/observability/metrics"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	"github.com/smallbiznis/creatorpay/internal/ratelimit"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
	pkgdb "github.com/smallbiznis/creatorpay/pkg/db"
	"github.com/smallbiznis/creatorpay/pkg/db/option"
	"github.com/smallbiznis/creatorpay/pkg/db/pagination"
	"github.com/smallbiznis/creatorpay/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	CfgHolder  *config.PayoutConfigHolder
	BatchLock  *ratelimit.PayoutBatchLock `optional:"true"`
	AuditSvc   auditdomain.Service        `optional:"true"`
	ObsMetrics *obsmetrics.Metrics        `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	cfgHolder  *config.PayoutConfigHolder
	batchLock  *ratelimit.PayoutBatchLock
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics

	payoutrepo repository.Repository[payoutdomain.Payout]
}

func NewService(p ServiceParam) payoutdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("payout.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		cfgHolder:  p.CfgHolder,
		batchLock:  p.BatchLock,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,

		payoutrepo: repository.ProvideStore[payoutdomain.Payout](p.DB),
	}
}

// Generate materializes one pending payout per creator for the period. The
// advisory lock keeps concurrent runs from doing duplicate scan work; the
// batch-run ledger's unique period row is the hard idempotency guard, so a
// period can never pay out twice even if the lock is unavailable.
func (s *Service) Generate(ctx context.Context, req payoutdomain.GeneratePayoutRequest) (payoutdomain.GeneratePayoutResponse, error) {
	period, err := payoutdomain.ParsePeriod(req.Period)
	if err != nil {
		return payoutdomain.GeneratePayoutResponse{}, err
	}

	token, acquired, err := s.batchLock.TryLock(ctx, period.Label)
	if err != nil {
		s.log.Warn("batch lock unavailable, relying on ledger guard",
			zap.String("period", period.Label), zap.Error(err))
	} else if !acquired {
		return payoutdomain.GeneratePayoutResponse{}, payoutdomain.ErrGenerateInProgress
	}
	if token != "" {
		defer func() {
			if releaseErr := s.batchLock.Release(context.WithoutCancel(ctx), period.Label, token); releaseErr != nil {
				s.log.Warn("batch lock release failed", zap.String("period", period.Label), zap.Error(releaseErr))
			}
		}()
	}

	cfg := s.cfgHolder.Get()
	now := s.clock.Now()

	var resp payoutdomain.GeneratePayoutResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		run := payoutdomain.PayoutBatchRun{
			ID:          s.genID.Generate(),
			Period:      period.Label,
			PeriodStart: period.Start,
			PeriodEnd:   period.End,
			CreatedAt:   now,
		}
		if err := tx.Create(&run).Error; err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return payoutdomain.ErrPeriodAlreadyGenerated
			}
			return err
		}

		creators, totals, err := s.scanQualifyingSubmissions(ctx, tx, period, cfg.ScanChunkSize)
		if err != nil {
			return err
		}

		payoutIDs := make([]string, 0, len(creators))
		for _, creatorID := range creators {
			items := totals[creatorID]
			var amount int64
			for _, item := range items {
				amount += item.EarningsCents
			}
			if amount <= 0 || amount < cfg.MinimumAmountCents {
				continue
			}

			breakdown, err := json.Marshal(payoutdomain.Breakdown{
				SchemaVersion: payoutdomain.BreakdownSchemaVersion,
				Items:         items,
			})
			if err != nil {
				return err
			}

			payout := payoutdomain.Payout{
				ID:          s.genID.Generate(),
				CreatorID:   creatorID,
				Period:      period.Label,
				PeriodStart: period.Start,
				PeriodEnd:   period.End,
				AmountCents: amount,
				Breakdown:   datatypes.JSON(breakdown),
				Status:      payoutdomain.PayoutStatusPending,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.Create(&payout).Error; err != nil {
				return err
			}
			payoutIDs = append(payoutIDs, payout.ID.String())
		}

		if err := tx.Model(&payoutdomain.PayoutBatchRun{}).
			Where("id = ?", run.ID).
			Update("payouts_created", len(payoutIDs)).Error; err != nil {
			return err
		}

		resp = payoutdomain.GeneratePayoutResponse{
			BatchRunID: run.ID.String(),
			PayoutIDs:  payoutIDs,
		}
		return nil
	})
	if err != nil {
		return payoutdomain.GeneratePayoutResponse{}, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordPayoutsCreated(ctx, len(resp.PayoutIDs))
	}
	s.writeAudit(ctx, "payout.generate", resp.BatchRunID, map[string]any{
		"period":          period.Label,
		"payouts_created": len(resp.PayoutIDs),
	})

	s.log.Info("payout batch generated",
		zap.String("period", period.Label),
		zap.Int("payouts_created", len(resp.PayoutIDs)))

	return resp, nil
}

// scanQualifyingSubmissions pages through approved, public submissions whose
// approval falls inside the period. Amounts use each submission's current
// lifetime view count; the period scopes which submissions qualify, not which
// views. Creators come back in first-seen order so payout rows are stable.
func (s *Service) scanQualifyingSubmissions(
	ctx context.Context,
	tx *gorm.DB,
	period payoutdomain.Period,
	chunkSize int,
) ([]snowflake.ID, map[snowflake.ID][]payoutdomain.BreakdownItem, error) {

	if chunkSize <= 0 {
		chunkSize = config.DefaultPayoutConfig().ScanChunkSize
	}

	creators := make([]snowflake.ID, 0)
	totals := make(map[snowflake.ID][]payoutdomain.BreakdownItem)
	cpmCache := make(map[snowflake.ID]int64)

	lastID := snowflake.ID(0)
	for {
		var chunk []submissiondomain.Submission
		err := tx.
			Where("status = ?", submissiondomain.SubmissionStatusApproved).
			Where("visibility = ?", submissiondomain.VisibilityPublic).
			Where("approved_at >= ? AND approved_at <= ?", period.Start, period.End).
			Where("id > ?", lastID).
			Order("id asc").
			Limit(chunkSize).
			Find(&chunk).Error
		if err != nil {
			return nil, nil, err
		}
		if len(chunk) == 0 {
			break
		}

		for i := range chunk {
			record := &chunk[i]
			cpmCents, err := s.resolveCPM(tx, cpmCache, record.CampaignID)
			if err != nil {
				return nil, nil, err
			}
			if _, seen := totals[record.CreatorID]; !seen {
				creators = append(creators, record.CreatorID)
			}
			totals[record.CreatorID] = append(totals[record.CreatorID], payoutdomain.BreakdownItem{
				SubmissionID:  record.ID.String(),
				Title:         record.Title,
				Views:         record.Views,
				CPMCents:      cpmCents,
				EarningsCents: earningsdomain.Cents(record.Views, cpmCents),
			})
		}

		lastID = chunk[len(chunk)-1].ID
		if len(chunk) < chunkSize {
			break
		}
	}

	return creators, totals, nil
}

// resolveCPM reads campaign rates through the batch transaction so every
// snapshot in the run prices against the same view of the campaigns table.
func (s *Service) resolveCPM(tx *gorm.DB, cache map[snowflake.ID]int64, campaignID *snowflake.ID) (int64, error) {
	if campaignID == nil || *campaignID == 0 {
		return 0, nil
	}
	if cpm, ok := cache[*campaignID]; ok {
		return cpm, nil
	}
	var campaign campaigndomain.Campaign
	if err := tx.First(&campaign, "id = ?", *campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cache[*campaignID] = 0
			return 0, nil
		}
		return 0, err
	}
	cache[*campaignID] = campaign.CPMCents
	return campaign.CPMCents, nil
}

// Send transitions one payout from pending to sent. The status guard in the
// UPDATE clause makes a second dispatch lose the race cleanly.
func (s *Service) Send(ctx context.Context, payoutID string) (*payoutdomain.Payout, error) {
	id, err := s.parseID(payoutID)
	if err != nil {
		return nil, err
	}

	externalRef := uuid.NewString()
	now := s.clock.Now()

	var record payoutdomain.Payout
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return payoutdomain.ErrNotFound
			}
			return err
		}
		if record.Status != payoutdomain.PayoutStatusPending {
			return payoutdomain.ErrNotPending
		}

		result := tx.Model(&payoutdomain.Payout{}).
			Where("id = ? AND status = ?", id, payoutdomain.PayoutStatusPending).
			Updates(map[string]any{
				"status":       payoutdomain.PayoutStatusSent,
				"external_ref": externalRef,
				"updated_at":   now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return payoutdomain.ErrNotPending
		}
		return tx.First(&record, "id = ?", id).Error
	})
	if err != nil {
		if s.obsMetrics != nil && errors.Is(err, payoutdomain.ErrNotPending) {
			s.obsMetrics.RecordPayoutDispatch(ctx, "rejected")
		}
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordPayoutDispatch(ctx, "sent")
	}
	s.writeAudit(ctx, "payout.send", record.ID.String(), map[string]any{
		"creator_id":   record.CreatorID.String(),
		"period":       record.Period,
		"amount_cents": record.AmountCents,
		"external_ref": masking.MaskSecret(externalRef),
	})

	return &record, nil
}

// Fail marks a pending payout failed. It shares Send's status guard so a
// payout never moves out of pending twice.
func (s *Service) Fail(ctx context.Context, req payoutdomain.FailPayoutRequest) (*payoutdomain.Payout, error) {
	id, err := s.parseID(req.PayoutID)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, payoutdomain.ErrInvalidFailureReason
	}

	now := s.clock.Now()

	var record payoutdomain.Payout
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return payoutdomain.ErrNotFound
			}
			return err
		}
		if record.Status != payoutdomain.PayoutStatusPending {
			return payoutdomain.ErrNotPending
		}

		result := tx.Model(&payoutdomain.Payout{}).
			Where("id = ? AND status = ?", id, payoutdomain.PayoutStatusPending).
			Updates(map[string]any{
				"status":         payoutdomain.PayoutStatusFailed,
				"failure_reason": reason,
				"updated_at":     now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return payoutdomain.ErrNotPending
		}
		return tx.First(&record, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordPayoutDispatch(ctx, "failed")
	}
	s.writeAudit(ctx, "payout.fail", record.ID.String(), map[string]any{
		"creator_id": record.CreatorID.String(),
		"period":     record.Period,
		"reason":     reason,
	})

	return &record, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*payoutdomain.Payout, error) {
	payoutID, err := s.parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.payoutrepo.FindOne(ctx, &payoutdomain.Payout{ID: payoutID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, payoutdomain.ErrNotFound
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, req payoutdomain.ListPayoutRequest) (payoutdomain.ListPayoutResponse, error) {
	filter := &payoutdomain.Payout{}

	if strings.TrimSpace(req.CreatorID) != "" {
		creatorID, err := snowflake.ParseString(strings.TrimSpace(req.CreatorID))
		if err != nil || creatorID == 0 {
			return payoutdomain.ListPayoutResponse{}, earningsdomain.ErrInvalidCreator
		}
		filter.CreatorID = creatorID
	}
	if req.Status != "" {
		filter.Status = req.Status
	}
	if strings.TrimSpace(req.Period) != "" {
		period, err := payoutdomain.ParsePeriod(req.Period)
		if err != nil {
			return payoutdomain.ListPayoutResponse{}, err
		}
		filter.Period = period.Label
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.payoutrepo.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return payoutdomain.ListPayoutResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record *payoutdomain.Payout) string {
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

	payouts := make([]payoutdomain.Payout, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payouts = append(payouts, *item)
	}

	resp := payoutdomain.ListPayoutResponse{Payouts: payouts}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, payoutdomain.ErrInvalidPayoutID
	}
	return id, nil
}

func (s *Service) writeAudit(ctx context.Context, action, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, "payout", &targetID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}
