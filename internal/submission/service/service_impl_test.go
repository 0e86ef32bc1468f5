package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/creatorpay/internal/clock"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupSubmissionService(t *testing.T, fake *clock.FakeClock) (submissiondomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&submissiondomain.Submission{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
	})
	return svc, db, node
}

func createPending(t *testing.T, svc submissiondomain.Service, node *snowflake.Node) *submissiondomain.Submission {
	t.Helper()
	record, err := svc.Create(context.Background(), submissiondomain.CreateSubmissionRequest{
		CreatorID: node.Generate().String(),
		Title:     "launch teaser",
	})
	require.NoError(t, err)
	require.Equal(t, submissiondomain.SubmissionStatusPendingReview, record.Status)
	require.Equal(t, submissiondomain.VisibilityPrivate, record.Visibility)
	return record
}

func assertVisibilityInvariant(t *testing.T, db *gorm.DB) {
	t.Helper()
	var count int64
	err := db.Model(&submissiondomain.Submission{}).
		Where("visibility = ? AND status <> ?", submissiondomain.VisibilityPublic, submissiondomain.SubmissionStatusApproved).
		Count(&count).Error
	require.NoError(t, err)
	assert.Zero(t, count, "public submission with non-approved status")
}

func TestApproveSetsPublicAndTimestamps(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupSubmissionService(t, fake)
	record := createPending(t, svc, node)
	reviewer := node.Generate().String()

	updated, err := svc.Approve(context.Background(), submissiondomain.ReviewRequest{
		SubmissionID: record.ID.String(),
		ReviewerID:   reviewer,
		Note:         "meets guidelines",
	})
	require.NoError(t, err)

	assert.Equal(t, submissiondomain.SubmissionStatusApproved, updated.Status)
	assert.Equal(t, submissiondomain.VisibilityPublic, updated.Visibility)
	require.NotNil(t, updated.ApprovedAt)
	assert.True(t, updated.ApprovedAt.Equal(fake.Now()))
	assert.Nil(t, updated.RejectedAt)
	assert.Equal(t, reviewer, updated.ReviewedBy)
	assert.Equal(t, "meets guidelines", updated.ReviewNote)
	assertVisibilityInvariant(t, db)
}

func TestReapproveIsNoOp(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupSubmissionService(t, fake)
	record := createPending(t, svc, node)
	reviewer := node.Generate().String()

	first, err := svc.Approve(context.Background(), submissiondomain.ReviewRequest{
		SubmissionID: record.ID.String(),
		ReviewerID:   reviewer,
	})
	require.NoError(t, err)
	require.NotNil(t, first.ApprovedAt)
	firstApprovedAt := *first.ApprovedAt

	fake.Advance(48 * time.Hour)

	second, err := svc.Approve(context.Background(), submissiondomain.ReviewRequest{
		SubmissionID: record.ID.String(),
		ReviewerID:   node.Generate().String(),
		Note:         "second look",
	})
	require.NoError(t, err)
	require.NotNil(t, second.ApprovedAt)
	assert.True(t, second.ApprovedAt.Equal(firstApprovedAt), "approved_at must not move on re-approval")
	assert.Equal(t, reviewer, second.ReviewedBy, "reviewer must not change on re-approval")
	assertVisibilityInvariant(t, db)
}

func TestRejectRequiresNote(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupSubmissionService(t, fake)
	record := createPending(t, svc, node)

	for _, note := range []string{"", "   ", "\t\n"} {
		_, err := svc.Reject(context.Background(), submissiondomain.ReviewRequest{
			SubmissionID: record.ID.String(),
			ReviewerID:   node.Generate().String(),
			Note:         note,
		})
		assert.ErrorIs(t, err, submissiondomain.ErrEmptyReviewNote)
	}

	var stored submissiondomain.Submission
	require.NoError(t, db.First(&stored, "id = ?", record.ID).Error)
	assert.Equal(t, submissiondomain.SubmissionStatusPendingReview, stored.Status)
	assert.Empty(t, stored.ReviewedBy)
	assert.Nil(t, stored.RejectedAt)
}

func TestRejectClearsApproval(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupSubmissionService(t, fake)
	record := createPending(t, svc, node)

	_, err := svc.Approve(context.Background(), submissiondomain.ReviewRequest{
		SubmissionID: record.ID.String(),
		ReviewerID:   node.Generate().String(),
	})
	require.NoError(t, err)

	fake.Advance(time.Hour)
	updated, err := svc.Reject(context.Background(), submissiondomain.ReviewRequest{
		SubmissionID: record.ID.String(),
		ReviewerID:   node.Generate().String(),
		Note:         "brand safety issue",
	})
	require.NoError(t, err)

	assert.Equal(t, submissiondomain.SubmissionStatusRejected, updated.Status)
	assert.Equal(t, submissiondomain.VisibilityPrivate, updated.Visibility)
	assert.Nil(t, updated.ApprovedAt)
	require.NotNil(t, updated.RejectedAt)
	assert.True(t, updated.RejectedAt.Equal(fake.Now()))

	// The returned record and the stored row must agree.
	stored, err := svc.GetByID(context.Background(), record.ID.String())
	require.NoError(t, err)
	assert.Nil(t, stored.ApprovedAt)
	require.NotNil(t, stored.RejectedAt)
	assert.True(t, stored.RejectedAt.Equal(*updated.RejectedAt))
	assertVisibilityInvariant(t, db)
}

func TestApproveAfterRejectClearsRejection(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupSubmissionService(t, fake)
	record := createPending(t, svc, node)

	_, err := svc.Reject(context.Background(), submissiondomain.ReviewRequest{
		SubmissionID: record.ID.String(),
		ReviewerID:   node.Generate().String(),
		Note:         "needs edits",
	})
	require.NoError(t, err)

	fake.Advance(time.Hour)
	updated, err := svc.Approve(context.Background(), submissiondomain.ReviewRequest{
		SubmissionID: record.ID.String(),
		ReviewerID:   node.Generate().String(),
	})
	require.NoError(t, err)

	assert.Equal(t, submissiondomain.SubmissionStatusApproved, updated.Status)
	require.NotNil(t, updated.ApprovedAt)
	assert.Nil(t, updated.RejectedAt, "rejected_at must clear on approval")
	assertVisibilityInvariant(t, db)
}

func TestFlagParksSubmissionPrivate(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupSubmissionService(t, fake)
	record := createPending(t, svc, node)

	_, err := svc.Approve(context.Background(), submissiondomain.ReviewRequest{
		SubmissionID: record.ID.String(),
		ReviewerID:   node.Generate().String(),
	})
	require.NoError(t, err)

	updated, err := svc.Flag(context.Background(), submissiondomain.ReviewRequest{
		SubmissionID: record.ID.String(),
		ReviewerID:   node.Generate().String(),
		Note:         "escalated for manual review",
	})
	require.NoError(t, err)

	assert.Equal(t, submissiondomain.SubmissionStatusFlagged, updated.Status)
	assert.Equal(t, submissiondomain.VisibilityPrivate, updated.Visibility)
	assertVisibilityInvariant(t, db)
}

func TestModerationNotFound(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	svc, _, node := setupSubmissionService(t, fake)

	_, err := svc.Approve(context.Background(), submissiondomain.ReviewRequest{
		SubmissionID: node.Generate().String(),
		ReviewerID:   node.Generate().String(),
	})
	assert.ErrorIs(t, err, submissiondomain.ErrNotFound)

	_, err = svc.GetByID(context.Background(), node.Generate().String())
	assert.ErrorIs(t, err, submissiondomain.ErrNotFound)

	_, err = svc.GetByID(context.Background(), "not-a-snowflake")
	assert.ErrorIs(t, err, submissiondomain.ErrInvalidSubmissionID)
}

func TestListFiltersByCreatorAndStatus(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	svc, _, node := setupSubmissionService(t, fake)

	creatorA := node.Generate().String()
	creatorB := node.Generate().String()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), submissiondomain.CreateSubmissionRequest{
			CreatorID: creatorA,
			Title:     "clip",
		})
		require.NoError(t, err)
	}
	other, err := svc.Create(context.Background(), submissiondomain.CreateSubmissionRequest{
		CreatorID: creatorB,
		Title:     "clip",
	})
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), submissiondomain.ReviewRequest{
		SubmissionID: other.ID.String(),
		ReviewerID:   node.Generate().String(),
	})
	require.NoError(t, err)

	byCreator, err := svc.List(context.Background(), submissiondomain.ListSubmissionRequest{CreatorID: creatorA})
	require.NoError(t, err)
	assert.Len(t, byCreator.Submissions, 3)

	approved, err := svc.List(context.Background(), submissiondomain.ListSubmissionRequest{Status: submissiondomain.SubmissionStatusApproved})
	require.NoError(t, err)
	require.Len(t, approved.Submissions, 1)
	assert.Equal(t, other.ID, approved.Submissions[0].ID)
}
