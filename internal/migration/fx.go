package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creatorpay/internal/config"
	"github.com/smallbiznis/creatorpay/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			log.Warn("skipping schema migrations for non-postgres database", zap.String("db_type", cfg.DBType))
		}

		if err := seed.EnsureDefaultCampaign(conn); err != nil {
			return err
		}
		if cfg.BootstrapAdminUserID != 0 {
			return seed.EnsureAdminRole(conn, snowflake.ID(cfg.BootstrapAdminUserID))
		}
		return nil
	}),
)
