package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/creatorpay/internal/clock"
	impressiondomain "github.com/smallbiznis/creatorpay/internal/impression/domain"
	"github.com/smallbiznis/creatorpay/internal/impression/liveevents"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupImpressionService(t *testing.T, fake *clock.FakeClock, hub *liveevents.Hub) (impressiondomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&submissiondomain.Submission{},
		&impressiondomain.ImpressionAggregate{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      fake,
		LiveEvents: hub,
	})
	return svc, db, node
}

func seedSubmission(t *testing.T, db *gorm.DB, node *snowflake.Node, status submissiondomain.SubmissionStatus, visibility submissiondomain.Visibility, approvedAt *time.Time) *submissiondomain.Submission {
	t.Helper()
	record := &submissiondomain.Submission{
		ID:         node.Generate(),
		CreatorID:  node.Generate(),
		Title:      "clip",
		Status:     status,
		Visibility: visibility,
		ApprovedAt: approvedAt,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, db.Create(record).Error)
	return record
}

func storedViews(t *testing.T, db *gorm.DB, id snowflake.ID) int64 {
	t.Helper()
	var views int64
	require.NoError(t, db.Model(&submissiondomain.Submission{}).
		Select("views").Where("id = ?", id).Scan(&views).Error)
	return views
}

func TestRecordCountsEligibleView(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	svc, db, node := setupImpressionService(t, fake, nil)

	approvedAt := fake.Now().Add(-time.Hour)
	record := seedSubmission(t, db, node, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPublic, &approvedAt)

	resp, err := svc.Record(context.Background(), impressiondomain.RecordViewRequest{
		SubmissionID: record.ID.String(),
		OccurredAt:   fake.Now(),
		Region:       "ID",
		Device:       "Mobile",
	})
	require.NoError(t, err)
	assert.True(t, resp.Counted)
	assert.Equal(t, int64(1), resp.Views)
	assert.Equal(t, int64(1), storedViews(t, db, record.ID))

	var aggregate impressiondomain.ImpressionAggregate
	require.NoError(t, db.First(&aggregate, "submission_id = ?", record.ID).Error)
	assert.Equal(t, "2026-04-01", aggregate.ViewDate)
	assert.Equal(t, "id", aggregate.Region)
	assert.Equal(t, "mobile", aggregate.Device)
	assert.Equal(t, int64(1), aggregate.VerifiedViews)
}

func TestRecordSoftRejectsIneligibleStatus(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	svc, db, node := setupImpressionService(t, fake, nil)

	for _, status := range []submissiondomain.SubmissionStatus{
		submissiondomain.SubmissionStatusPendingReview,
		submissiondomain.SubmissionStatusFlagged,
		submissiondomain.SubmissionStatusRejected,
	} {
		record := seedSubmission(t, db, node, status, submissiondomain.VisibilityPrivate, nil)

		resp, err := svc.Record(context.Background(), impressiondomain.RecordViewRequest{
			SubmissionID: record.ID.String(),
			OccurredAt:   fake.Now(),
		})
		require.NoError(t, err, "soft rejection must not be an error")
		assert.False(t, resp.Counted)
		assert.Equal(t, impressiondomain.ReasonNotApproved, resp.Reason)
		assert.Zero(t, storedViews(t, db, record.ID), "views must stay unchanged for status %s", status)
	}
}

func TestRecordSoftRejectsPrivateApproved(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	svc, db, node := setupImpressionService(t, fake, nil)

	approvedAt := fake.Now().Add(-time.Hour)
	record := seedSubmission(t, db, node, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPrivate, &approvedAt)

	resp, err := svc.Record(context.Background(), impressiondomain.RecordViewRequest{
		SubmissionID: record.ID.String(),
		OccurredAt:   fake.Now(),
	})
	require.NoError(t, err)
	assert.False(t, resp.Counted)
	assert.Equal(t, impressiondomain.ReasonNotPublic, resp.Reason)
	assert.Zero(t, storedViews(t, db, record.ID))
}

func TestRecordRejectsBackdatedView(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	svc, db, node := setupImpressionService(t, fake, nil)

	approvedAt := fake.Now()
	record := seedSubmission(t, db, node, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPublic, &approvedAt)

	before, err := svc.Record(context.Background(), impressiondomain.RecordViewRequest{
		SubmissionID: record.ID.String(),
		OccurredAt:   approvedAt.Add(-time.Minute),
	})
	require.NoError(t, err)
	assert.False(t, before.Counted)
	assert.Equal(t, impressiondomain.ReasonBackdated, before.Reason)
	assert.Zero(t, storedViews(t, db, record.ID))

	at, err := svc.Record(context.Background(), impressiondomain.RecordViewRequest{
		SubmissionID: record.ID.String(),
		OccurredAt:   approvedAt,
	})
	require.NoError(t, err)
	assert.True(t, at.Counted, "view at the approval instant must count")
	assert.Equal(t, int64(1), at.Views)
}

func TestRecordRejectsFutureTimestamp(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	svc, db, node := setupImpressionService(t, fake, nil)

	approvedAt := fake.Now()
	record := seedSubmission(t, db, node, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPublic, &approvedAt)

	_, err := svc.Record(context.Background(), impressiondomain.RecordViewRequest{
		SubmissionID: record.ID.String(),
		OccurredAt:   fake.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, impressiondomain.ErrInvalidOccurredAt)
	assert.Zero(t, storedViews(t, db, record.ID))

	// Small clock skew is tolerated.
	ahead, err := svc.Record(context.Background(), impressiondomain.RecordViewRequest{
		SubmissionID: record.ID.String(),
		OccurredAt:   fake.Now().Add(2 * time.Minute),
	})
	require.NoError(t, err)
	assert.True(t, ahead.Counted)
}

func TestRecordNotFound(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	svc, _, node := setupImpressionService(t, fake, nil)

	_, err := svc.Record(context.Background(), impressiondomain.RecordViewRequest{
		SubmissionID: node.Generate().String(),
		OccurredAt:   fake.Now(),
	})
	assert.ErrorIs(t, err, submissiondomain.ErrNotFound)
}

func TestRecordAggregatesPerDimension(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	svc, db, node := setupImpressionService(t, fake, nil)

	approvedAt := fake.Now().Add(-time.Hour)
	record := seedSubmission(t, db, node, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPublic, &approvedAt)

	events := []struct {
		region string
		device string
	}{
		{"id", "mobile"},
		{"id", "mobile"},
		{"id", "desktop"},
		{"sg", "mobile"},
	}
	for _, ev := range events {
		_, err := svc.Record(context.Background(), impressiondomain.RecordViewRequest{
			SubmissionID: record.ID.String(),
			OccurredAt:   fake.Now(),
			Region:       ev.region,
			Device:       ev.device,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, int64(4), storedViews(t, db, record.ID))

	resp, err := svc.ListAggregates(context.Background(), impressiondomain.ListAggregateRequest{
		SubmissionID: record.ID.String(),
	})
	require.NoError(t, err)
	require.Len(t, resp.Aggregates, 3)

	totals := map[string]int64{}
	for _, row := range resp.Aggregates {
		totals[row.Region+"/"+row.Device] = row.VerifiedViews
	}
	assert.Equal(t, int64(2), totals["id/mobile"])
	assert.Equal(t, int64(1), totals["id/desktop"])
	assert.Equal(t, int64(1), totals["sg/mobile"])
}

func TestRecordConcurrentIncrements(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	svc, db, node := setupImpressionService(t, fake, nil)

	approvedAt := fake.Now().Add(-time.Hour)
	record := seedSubmission(t, db, node, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPublic, &approvedAt)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Record(context.Background(), impressiondomain.RecordViewRequest{
				SubmissionID: record.ID.String(),
				OccurredAt:   fake.Now(),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(workers), storedViews(t, db, record.ID))
}

func TestRecordPublishesLiveEvent(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	hub := liveevents.NewHub()
	svc, db, node := setupImpressionService(t, fake, hub)

	approvedAt := fake.Now().Add(-time.Hour)
	record := seedSubmission(t, db, node, submissiondomain.SubmissionStatusApproved, submissiondomain.VisibilityPublic, &approvedAt)

	sub, _, err := hub.Subscribe(record.ID.String())
	require.NoError(t, err)
	defer sub.Close()

	_, err = svc.Record(context.Background(), impressiondomain.RecordViewRequest{
		SubmissionID: record.ID.String(),
		OccurredAt:   fake.Now(),
	})
	require.NoError(t, err)

	select {
	case event := <-sub.Events():
		assert.Equal(t, liveevents.StatusCounted, event.Status)
		assert.Equal(t, record.ID.String(), event.SubmissionID)
	case <-time.After(time.Second):
		t.Fatal("expected a live event")
	}
}
