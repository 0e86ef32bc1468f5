// Package domain contains persistence models for creator submissions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubmissionStatus represents the moderation lifecycle states.
type SubmissionStatus string

const (
	SubmissionStatusPendingReview SubmissionStatus = "pending_review"
	SubmissionStatusFlagged       SubmissionStatus = "flagged"
	SubmissionStatusApproved      SubmissionStatus = "approved"
	SubmissionStatusRejected      SubmissionStatus = "rejected"
)

// Visibility controls whether a submission is publicly viewable. A submission
// is public only while it is approved.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Submission is a piece of creator content moving through brand-safety review.
// Views is only ever mutated by the impression service, with a single atomic
// increment per counted event.
type Submission struct {
	ID          snowflake.ID     `gorm:"primaryKey" json:"id"`
	CreatorID   snowflake.ID     `gorm:"not null;index" json:"creator_id"`
	CampaignID  *snowflake.ID    `gorm:"index" json:"campaign_id,omitempty"`
	Title       string           `gorm:"type:text;not null" json:"title"`
	Description string           `gorm:"type:text" json:"description,omitempty"`
	ContentRef  string           `gorm:"type:text" json:"content_ref,omitempty"`
	Status      SubmissionStatus `gorm:"type:text;not null;default:'pending_review'" json:"status"`
	Visibility  Visibility       `gorm:"type:text;not null;default:'private'" json:"visibility"`
	Views       int64            `gorm:"not null;default:0" json:"views"`
	ApprovedAt  *time.Time       `json:"approved_at,omitempty"`
	RejectedAt  *time.Time       `json:"rejected_at,omitempty"`
	ReviewedBy  string           `gorm:"type:text" json:"reviewed_by,omitempty"`
	ReviewNote  string           `gorm:"type:text" json:"review_note,omitempty"`
	CreatedAt   time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Submission) TableName() string { return "submissions" }
