// Package domain contains persistence models for payout batches.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PayoutStatus represents payout lifecycle states.
type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusSent    PayoutStatus = "sent"
	PayoutStatusFailed  PayoutStatus = "failed"
)

// BreakdownSchemaVersion is stamped into every stored breakdown so old
// payout rows stay interpretable if the snapshot shape changes later.
const BreakdownSchemaVersion = 1

// BreakdownItem is one submission's earnings line frozen at generation time.
type BreakdownItem struct {
	SubmissionID  string `json:"submission_id"`
	Title         string `json:"title"`
	Views         int64  `json:"views"`
	CPMCents      int64  `json:"cpm_cents"`
	EarningsCents int64  `json:"earnings_cents"`
}

// Breakdown is the typed, versioned snapshot stored on a Payout. It is
// written once and never updated.
type Breakdown struct {
	SchemaVersion int             `json:"schema_version"`
	Items         []BreakdownItem `json:"items"`
}

// Payout is one creator's aggregated earnings for a batch period.
type Payout struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	CreatorID     snowflake.ID   `gorm:"not null;index" json:"creator_id"`
	Period        string         `gorm:"type:text;not null;index" json:"period"`
	PeriodStart   time.Time      `gorm:"not null" json:"period_start"`
	PeriodEnd     time.Time      `gorm:"not null" json:"period_end"`
	AmountCents   int64          `gorm:"not null" json:"amount_cents"`
	Breakdown     datatypes.JSON `gorm:"type:jsonb;not null" json:"breakdown"`
	Status        PayoutStatus   `gorm:"type:text;not null;default:'pending';index" json:"status"`
	ExternalRef   *string        `gorm:"type:text" json:"external_ref,omitempty"`
	FailureReason *string        `gorm:"type:text" json:"failure_reason,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payout) TableName() string { return "payouts" }

// DecodeBreakdown unmarshals the stored snapshot.
func (p *Payout) DecodeBreakdown() (Breakdown, error) {
	var breakdown Breakdown
	if len(p.Breakdown) == 0 {
		return breakdown, nil
	}
	if err := json.Unmarshal(p.Breakdown, &breakdown); err != nil {
		return Breakdown{}, err
	}
	return breakdown, nil
}

// PayoutBatchRun is the per-period generation ledger. The unique period
// column is what makes a batch run happen at most once.
type PayoutBatchRun struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Period         string       `gorm:"type:text;not null;uniqueIndex" json:"period"`
	PeriodStart    time.Time    `gorm:"not null" json:"period_start"`
	PeriodEnd      time.Time    `gorm:"not null" json:"period_end"`
	PayoutsCreated int64        `gorm:"not null;default:0" json:"payouts_created"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PayoutBatchRun) TableName() string { return "payout_batch_runs" }
