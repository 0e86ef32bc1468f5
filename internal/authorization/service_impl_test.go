package authorization

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuthorization(t *testing.T) (Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&UserRole{}))

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Enforcer: enforcer,
	})
	return svc, db, node
}

func grantRole(t *testing.T, db *gorm.DB, userID snowflake.ID, role string) {
	t.Helper()
	require.NoError(t, db.Create(&UserRole{UserID: userID, Role: role}).Error)
}

func TestModeratorCanReviewSubmissions(t *testing.T) {
	svc, db, node := setupAuthorization(t)
	userID := node.Generate()
	grantRole(t, db, userID, RoleModerator)

	actor := fmt.Sprintf("user:%s", userID)
	assert.NoError(t, svc.Authorize(context.Background(), actor, ObjectSubmission, ActionSubmissionReview))
	assert.NoError(t, svc.Authorize(context.Background(), actor, ObjectAuditLog, ActionAuditLogView))
}

func TestModeratorCannotDispatchPayouts(t *testing.T) {
	svc, db, node := setupAuthorization(t)
	userID := node.Generate()
	grantRole(t, db, userID, RoleModerator)

	actor := fmt.Sprintf("user:%s", userID)
	err := svc.Authorize(context.Background(), actor, ObjectPayout, ActionPayoutDispatch)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestFinanceCanGenerateAndDispatch(t *testing.T) {
	svc, db, node := setupAuthorization(t)
	userID := node.Generate()
	grantRole(t, db, userID, RoleFinance)

	actor := fmt.Sprintf("user:%s", userID)
	assert.NoError(t, svc.Authorize(context.Background(), actor, ObjectPayout, ActionPayoutGenerate))
	assert.NoError(t, svc.Authorize(context.Background(), actor, ObjectPayout, ActionPayoutDispatch))

	err := svc.Authorize(context.Background(), actor, ObjectSubmission, ActionSubmissionReview)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSystemActorScopedToBatchGeneration(t *testing.T) {
	svc, _, _ := setupAuthorization(t)

	assert.NoError(t, svc.Authorize(context.Background(), "system", ObjectPayout, ActionPayoutGenerate))

	err := svc.Authorize(context.Background(), "system", ObjectSubmission, ActionSubmissionReview)
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.Authorize(context.Background(), "system", ObjectPayout, ActionPayoutDispatch)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUserWithoutRoleIsForbidden(t *testing.T) {
	svc, _, node := setupAuthorization(t)

	actor := fmt.Sprintf("user:%s", node.Generate())
	err := svc.Authorize(context.Background(), actor, ObjectSubmission, ActionSubmissionView)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRoleChangeReplacesGrouping(t *testing.T) {
	svc, db, node := setupAuthorization(t)
	userID := node.Generate()
	grantRole(t, db, userID, RoleModerator)

	actor := fmt.Sprintf("user:%s", userID)
	require.NoError(t, svc.Authorize(context.Background(), actor, ObjectSubmission, ActionSubmissionReview))

	require.NoError(t, db.Model(&UserRole{}).Where("user_id = ?", userID).Update("role", RoleFinance).Error)

	assert.NoError(t, svc.Authorize(context.Background(), actor, ObjectPayout, ActionPayoutDispatch))
	err := svc.Authorize(context.Background(), actor, ObjectSubmission, ActionSubmissionReview)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeRejectsMalformedActors(t *testing.T) {
	svc, _, _ := setupAuthorization(t)

	for _, actor := range []string{"", "   ", "user:", "user:abc", "api_key:123", "creator"} {
		err := svc.Authorize(context.Background(), actor, ObjectSubmission, ActionSubmissionView)
		assert.ErrorIs(t, err, ErrInvalidActor, "actor %q", actor)
	}

	err := svc.Authorize(context.Background(), "system", "", ActionPayoutGenerate)
	assert.ErrorIs(t, err, ErrInvalidObject)

	err = svc.Authorize(context.Background(), "system", ObjectPayout, " ")
	assert.ErrorIs(t, err, ErrInvalidAction)
}
