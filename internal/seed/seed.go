package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	campaigndomain "github.com/smallbiznis/creatorpay/internal/campaign/domain"
	"gorm.io/gorm"
)

const (
	defaultCampaignName = "Default"
	defaultCampaignCPM  = 500
)

// EnsureDefaultCampaign seeds a fallback campaign so submissions created
// before any campaign setup still accrue earnings in local environments.
func EnsureDefaultCampaign(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&campaigndomain.Campaign{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		return tx.Create(&campaigndomain.Campaign{
			ID:        node.Generate(),
			Name:      defaultCampaignName,
			CPMCents:  defaultCampaignCPM,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error
	})
}

// EnsureAdminRole grants the admin role to the bootstrap user when one is
// configured. Existing role assignments are left alone.
func EnsureAdminRole(db *gorm.DB, userID snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if userID == 0 {
		return nil
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&authorization.UserRole{}).
			Where("user_id = ?", userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		return tx.Create(&authorization.UserRole{
			UserID:    userID,
			Role:      authorization.RoleAdmin,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error
	})
}
