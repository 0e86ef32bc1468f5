// Package domain contains persistence models for campaigns. Campaigns are a
// read-only dependency of the monetization pipeline; CRUD lives elsewhere.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Campaign carries the monetization rate applied to qualifying views.
type Campaign struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	CPMCents    int64        `gorm:"not null" json:"cpm_cents"`
	BudgetCents *int64       `json:"budget_cents,omitempty"` // informational cap, not enforced here
	StartAt     *time.Time   `json:"start_at,omitempty"`
	EndAt       *time.Time   `json:"end_at,omitempty"`
	Active      bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Campaign) TableName() string { return "campaigns" }
