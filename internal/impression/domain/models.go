// Package domain contains persistence models for view ingestion.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ImpressionAggregate is the deduplicated, dimension-sliced view counter.
// Exactly one row exists per (submission, calendar date, region, device);
// every qualifying view adds 1 to VerifiedViews via an atomic upsert.
type ImpressionAggregate struct {
	SubmissionID  snowflake.ID `gorm:"primaryKey" json:"submission_id"`
	ViewDate      string       `gorm:"type:text;primaryKey" json:"view_date"`
	Region        string       `gorm:"type:text;primaryKey" json:"region"`
	Device        string       `gorm:"type:text;primaryKey" json:"device"`
	VerifiedViews int64        `gorm:"not null;default:0" json:"verified_views"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ImpressionAggregate) TableName() string { return "impression_aggregates" }
