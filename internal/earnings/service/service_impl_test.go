package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	campaigndomain "github.com/smallbiznis/creatorpay/internal/campaign/domain"
	earningsdomain "github.com/smallbiznis/creatorpay/internal/earnings/domain"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type campaignStub struct {
	campaigns map[string]*campaigndomain.Campaign
}

func (c *campaignStub) GetByID(ctx context.Context, id string) (*campaigndomain.Campaign, error) {
	if campaign, ok := c.campaigns[id]; ok {
		return campaign, nil
	}
	return nil, campaigndomain.ErrNotFound
}

func (c *campaignStub) List(ctx context.Context, req campaigndomain.ListCampaignRequest) (campaigndomain.ListCampaignResponse, error) {
	return campaigndomain.ListCampaignResponse{}, nil
}

func setupEarningsService(t *testing.T, campaigns *campaignStub) (earningsdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&submissiondomain.Submission{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		CampaignSvc: campaigns,
	})
	return svc, db, node
}

func seedSubmission(t *testing.T, db *gorm.DB, node *snowflake.Node, creatorID snowflake.ID, campaignID *snowflake.ID, status submissiondomain.SubmissionStatus, visibility submissiondomain.Visibility, views int64, approvedAt *time.Time) {
	t.Helper()
	record := &submissiondomain.Submission{
		ID:         node.Generate(),
		CreatorID:  creatorID,
		CampaignID: campaignID,
		Title:      "clip",
		Status:     status,
		Visibility: visibility,
		Views:      views,
		ApprovedAt: approvedAt,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, db.Create(record).Error)
}

func TestSummaryTotalsAndBreakdown(t *testing.T) {
	node, _ := snowflake.NewNode(2)
	campaign := &campaigndomain.Campaign{ID: node.Generate(), CPMCents: 500, Active: true}
	campaigns := &campaignStub{campaigns: map[string]*campaigndomain.Campaign{campaign.ID.String(): campaign}}

	svc, db, node := setupEarningsService(t, campaigns)
	creator := node.Generate()
	approvedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	seedSubmission(t, db, node, creator, &campaign.ID, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPublic, 333, &approvedAt)
	seedSubmission(t, db, node, creator, &campaign.ID, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPublic, 2500, &approvedAt)

	resp, err := svc.Summary(context.Background(), earningsdomain.SummaryRequest{
		CreatorID: creator.String(),
		Period:    "2026-03",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2833), resp.TotalViews)
	// 333*500/1000 floored is 166; 2500*500/1000 is 1250.
	assert.Equal(t, int64(166+1250), resp.TotalEarningsCents)
	require.Len(t, resp.Breakdown, 2)
	assert.Equal(t, "2026-03", resp.Period)
}

func TestSummaryExcludesIneligibleSubmissions(t *testing.T) {
	node, _ := snowflake.NewNode(2)
	campaign := &campaigndomain.Campaign{ID: node.Generate(), CPMCents: 1000, Active: true}
	campaigns := &campaignStub{campaigns: map[string]*campaigndomain.Campaign{campaign.ID.String(): campaign}}

	svc, db, node := setupEarningsService(t, campaigns)
	creator := node.Generate()
	approvedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	outsideApprovedAt := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)

	seedSubmission(t, db, node, creator, &campaign.ID, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPublic, 100, &approvedAt)
	// Rejected after accruing views: must not earn.
	seedSubmission(t, db, node, creator, &campaign.ID, submissiondomain.SubmissionStatusRejected, submissiondomain.VisibilityPrivate, 900, nil)
	// Approved outside the requested period.
	seedSubmission(t, db, node, creator, &campaign.ID, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPublic, 700, &outsideApprovedAt)

	resp, err := svc.Summary(context.Background(), earningsdomain.SummaryRequest{
		CreatorID: creator.String(),
		Period:    "2026-03",
	})
	require.NoError(t, err)

	require.Len(t, resp.Breakdown, 1)
	assert.Equal(t, int64(100), resp.TotalViews)
	assert.Equal(t, int64(100), resp.TotalEarningsCents)
}

func TestSummaryMissingCampaignEarnsZero(t *testing.T) {
	svc, db, node := setupEarningsService(t, &campaignStub{})
	creator := node.Generate()
	unknownCampaign := node.Generate()
	approvedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	seedSubmission(t, db, node, creator, &unknownCampaign, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPublic, 5000, &approvedAt)
	seedSubmission(t, db, node, creator, nil, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPublic, 4000, &approvedAt)

	resp, err := svc.Summary(context.Background(), earningsdomain.SummaryRequest{
		CreatorID: creator.String(),
		Period:    "2026-03",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(9000), resp.TotalViews)
	assert.Zero(t, resp.TotalEarningsCents)
	require.Len(t, resp.Breakdown, 2)
	for _, line := range resp.Breakdown {
		assert.Zero(t, line.EarningsCents)
		assert.Zero(t, line.CPMCents)
	}
}

func TestSummaryValidation(t *testing.T) {
	svc, _, node := setupEarningsService(t, &campaignStub{})

	_, err := svc.Summary(context.Background(), earningsdomain.SummaryRequest{CreatorID: "nope", Period: "2026-03"})
	assert.ErrorIs(t, err, earningsdomain.ErrInvalidCreator)

	_, err = svc.Summary(context.Background(), earningsdomain.SummaryRequest{CreatorID: node.Generate().String(), Period: "Q1-2026"})
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidPeriod)
}
