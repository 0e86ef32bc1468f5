package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/smallbiznis/creatorpay/internal/campaign/domain"
	earningsdomain "github.com/smallbiznis/creatorpay/internal/earnings/domain"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	CampaignSvc campaigndomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	campaignSvc campaigndomain.Service
}

func NewService(p ServiceParam) earningsdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("earnings.service"),

		campaignSvc: p.CampaignSvc,
	}
}

func (s *Service) Summary(ctx context.Context, req earningsdomain.SummaryRequest) (earningsdomain.SummaryResponse, error) {
	creatorID, err := snowflake.ParseString(strings.TrimSpace(req.CreatorID))
	if err != nil || creatorID == 0 {
		return earningsdomain.SummaryResponse{}, earningsdomain.ErrInvalidCreator
	}

	period, err := payoutdomain.ParsePeriod(req.Period)
	if err != nil {
		return earningsdomain.SummaryResponse{}, err
	}

	// The eligibility re-check on status and visibility is deliberate even
	// though ingestion already gates counting; a submission rejected after
	// accruing views must not keep earning.
	var records []submissiondomain.Submission
	err = s.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Where("status = ?", submissiondomain.SubmissionStatusApproved).
		Where("visibility = ?", submissiondomain.VisibilityPublic).
		Where("approved_at >= ? AND approved_at <= ?", period.Start, period.End).
		Order("created_at asc, id asc").
		Find(&records).Error
	if err != nil {
		return earningsdomain.SummaryResponse{}, err
	}

	resp := earningsdomain.SummaryResponse{
		CreatorID:   creatorID.String(),
		Period:      period.Label,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Breakdown:   make([]earningsdomain.SubmissionEarnings, 0, len(records)),
	}

	for i := range records {
		record := &records[i]
		cpmCents, err := s.resolveCPM(ctx, record.CampaignID)
		if err != nil {
			return earningsdomain.SummaryResponse{}, err
		}
		line := earningsdomain.SubmissionEarnings{
			SubmissionID:  record.ID.String(),
			Title:         record.Title,
			Views:         record.Views,
			CPMCents:      cpmCents,
			EarningsCents: earningsdomain.Cents(record.Views, cpmCents),
		}
		resp.TotalViews += line.Views
		resp.TotalEarningsCents += line.EarningsCents
		resp.Breakdown = append(resp.Breakdown, line)
	}

	return resp, nil
}

// resolveCPM returns the monetization rate for a submission's campaign. A
// submission without a campaign, or with a campaign that no longer exists,
// earns at rate zero rather than failing the whole summary.
func (s *Service) resolveCPM(ctx context.Context, campaignID *snowflake.ID) (int64, error) {
	if campaignID == nil || *campaignID == 0 {
		return 0, nil
	}
	campaign, err := s.campaignSvc.GetByID(ctx, campaignID.String())
	if err != nil {
		if errors.Is(err, campaigndomain.ErrNotFound) || errors.Is(err, campaigndomain.ErrInvalidCampaignID) {
			return 0, nil
		}
		return 0, err
	}
	return campaign.CPMCents, nil
}
