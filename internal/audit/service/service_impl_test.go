package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	auditrepository "github.com/smallbiznis/creatorpay/internal/audit/repository"
	auditcontext "github.com/smallbiznis/creatorpay/internal/auditcontext"
	"github.com/smallbiznis/creatorpay/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuditService(t *testing.T) (auditdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepository.Provide(),
	})
	return svc, db, node
}

func TestAuditLogWriteAndFilter(t *testing.T) {
	svc, _, node := setupAuditService(t)
	ctx := context.Background()

	reviewer := node.Generate().String()
	target := node.Generate().String()

	require.NoError(t, svc.AuditLog(ctx, "user", &reviewer, "submission.approve", "submission", &target, map[string]any{
		"note": "looks good",
	}))
	require.NoError(t, svc.AuditLog(ctx, "system", nil, "payout.generate", "payout_batch_run", nil, nil))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "submission.approve"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	entry := resp.AuditLogs[0]
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, reviewer, *entry.ActorID)
	assert.Equal(t, "submission", entry.TargetType)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, target, *entry.TargetID)
	assert.Equal(t, "looks good", entry.Metadata["note"])

	resp, err = svc.List(ctx, auditdomain.ListAuditLogRequest{TargetType: "payout_batch_run"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "system", resp.AuditLogs[0].ActorType)
	assert.Nil(t, resp.AuditLogs[0].ActorID)
}

func TestAuditLogActorFromContext(t *testing.T) {
	svc, _, node := setupAuditService(t)

	actorID := node.Generate().String()
	ctx := auditcontext.WithActor(context.Background(), "user", actorID)
	ctx = auditcontext.WithRequestID(ctx, "req-123")

	require.NoError(t, svc.AuditLog(ctx, "", nil, "payout.send", "payout", nil, nil))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{Action: "payout.send"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	entry := resp.AuditLogs[0]
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, actorID, *entry.ActorID)
	assert.Equal(t, "req-123", entry.Metadata["request_id"])
}

func TestAuditLogRejectsEmptyAction(t *testing.T) {
	svc, _, _ := setupAuditService(t)
	err := svc.AuditLog(context.Background(), "system", nil, "   ", "payout", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestAuditListValidation(t *testing.T) {
	svc, _, _ := setupAuditService(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)

	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageToken: "garbage"},
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}

func TestAuditListPagination(t *testing.T) {
	svc, db, node := setupAuditService(t)
	ctx := context.Background()
	repo := auditrepository.Provide()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := &auditdomain.AuditLog{
			ID:         node.Generate(),
			ActorType:  "system",
			Action:     "payout.generate",
			TargetType: "payout_batch_run",
			Metadata:   map[string]any{},
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Insert(ctx, db, entry))
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	require.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)
	// Newest first.
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))

	rest, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageToken: first.NextPageToken, PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, rest.AuditLogs, 1)
	assert.False(t, rest.HasMore)

	seen := map[snowflake.ID]bool{}
	for _, entry := range append(first.AuditLogs, rest.AuditLogs...) {
		seen[entry.ID] = true
	}
	assert.Len(t, seen, 3)
}
