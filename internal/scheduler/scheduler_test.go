package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/creatorpay/internal/clock"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func emptyBreakdown(t *testing.T) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(payoutdomain.Breakdown{SchemaVersion: payoutdomain.BreakdownSchemaVersion})
	require.NoError(t, err)
	return datatypes.JSON(raw)
}

type payoutStub struct {
	mu        sync.Mutex
	generated []string
	err       error
}

func (p *payoutStub) Generate(ctx context.Context, req payoutdomain.GeneratePayoutRequest) (payoutdomain.GeneratePayoutResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return payoutdomain.GeneratePayoutResponse{}, p.err
	}
	p.generated = append(p.generated, req.Period)
	return payoutdomain.GeneratePayoutResponse{
		BatchRunID: "1",
		PayoutIDs:  []string{"10", "11"},
	}, nil
}

func (p *payoutStub) Send(ctx context.Context, payoutID string) (*payoutdomain.Payout, error) {
	return nil, payoutdomain.ErrNotFound
}

func (p *payoutStub) Fail(ctx context.Context, req payoutdomain.FailPayoutRequest) (*payoutdomain.Payout, error) {
	return nil, payoutdomain.ErrNotFound
}

func (p *payoutStub) GetByID(ctx context.Context, id string) (*payoutdomain.Payout, error) {
	return nil, payoutdomain.ErrNotFound
}

func (p *payoutStub) List(ctx context.Context, req payoutdomain.ListPayoutRequest) (payoutdomain.ListPayoutResponse, error) {
	return payoutdomain.ListPayoutResponse{}, nil
}

func (p *payoutStub) periods() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.generated...)
}

func setupScheduler(t *testing.T, fake *clock.FakeClock, payouts *payoutStub, cfg Config) (*Scheduler, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&payoutdomain.Payout{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	sched, err := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		PayoutSvc: payouts,
		GenID:     node,
		Clock:     fake,
		Config:    cfg,
	})
	require.NoError(t, err)
	return sched, db
}

func TestPayoutBatchGeneratesPreviousPeriodAfterDelay(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 2, 6, 0, 0, 0, time.UTC))
	payouts := &payoutStub{}
	sched, _ := setupScheduler(t, fake, payouts, Config{PayoutDelay: 24 * time.Hour})

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Equal(t, []string{"2026-03"}, payouts.periods())
}

func TestPayoutBatchWaitsForDelay(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC))
	payouts := &payoutStub{}
	sched, _ := setupScheduler(t, fake, payouts, Config{PayoutDelay: 24 * time.Hour})

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Empty(t, payouts.periods())

	fake.Advance(30 * time.Hour)
	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Equal(t, []string{"2026-03"}, payouts.periods())
}

func TestPayoutBatchToleratesAlreadyGenerated(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC))
	payouts := &payoutStub{err: payoutdomain.ErrPeriodAlreadyGenerated}
	sched, _ := setupScheduler(t, fake, payouts, Config{})

	assert.NoError(t, sched.RunOnce(context.Background()))
}

func TestPayoutBatchToleratesLockHeldElsewhere(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC))
	payouts := &payoutStub{err: payoutdomain.ErrGenerateInProgress}
	sched, _ := setupScheduler(t, fake, payouts, Config{})

	assert.NoError(t, sched.RunOnce(context.Background()))
}

func TestPayoutBatchSurfacesRealErrors(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC))
	boom := errors.New("db unavailable")
	payouts := &payoutStub{err: boom}
	sched, _ := setupScheduler(t, fake, payouts, Config{})

	err := sched.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestDisabledJobsDoNotRun(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC))
	payouts := &payoutStub{}
	sched, _ := setupScheduler(t, fake, payouts, Config{EnabledJobs: []string{"stale_pending_sweep"}})

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Empty(t, payouts.periods())
}

func TestStalePendingSweepCountsOldPayouts(t *testing.T) {
	start := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(start)
	payouts := &payoutStub{}
	sched, db := setupScheduler(t, fake, payouts, Config{
		EnabledJobs:           []string{"stale_pending_sweep"},
		StalePendingThreshold: 7 * 24 * time.Hour,
	})

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	require.NoError(t, db.Create(&payoutdomain.Payout{
		ID:          node.Generate(),
		CreatorID:   node.Generate(),
		Period:      "2026-03",
		AmountCents: 500,
		Breakdown:   emptyBreakdown(t),
		Status:      payoutdomain.PayoutStatusPending,
		CreatedAt:   start.Add(-10 * 24 * time.Hour),
		UpdatedAt:   start.Add(-10 * 24 * time.Hour),
	}).Error)
	require.NoError(t, db.Create(&payoutdomain.Payout{
		ID:          node.Generate(),
		CreatorID:   node.Generate(),
		Period:      "2026-04",
		AmountCents: 700,
		Breakdown:   emptyBreakdown(t),
		Status:      payoutdomain.PayoutStatusPending,
		CreatedAt:   start.Add(-time.Hour),
		UpdatedAt:   start.Add(-time.Hour),
	}).Error)

	assert.NoError(t, sched.RunOnce(context.Background()))
}
