package authorization

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleModerator = "moderator"
	RoleFinance   = "finance"
	RoleAdmin     = "admin"
)

type UserRole struct {
	UserID    snowflake.ID `gorm:"column:user_id;primaryKey"`
	Role      string       `gorm:"column:role"`
	CreatedAt time.Time    `gorm:"column:created_at"`
	UpdatedAt time.Time    `gorm:"column:updated_at"`
}

func (UserRole) TableName() string {
	return "user_roles"
}
