package domain

import (
	"context"
	"errors"
	"time"
)

// SubmissionEarnings is one submission's line in an earnings summary.
type SubmissionEarnings struct {
	SubmissionID  string `json:"submission_id"`
	Title         string `json:"title"`
	Views         int64  `json:"views"`
	CPMCents      int64  `json:"cpm_cents"`
	EarningsCents int64  `json:"earnings_cents"`
}

type SummaryRequest struct {
	CreatorID string
	Period    string
}

type SummaryResponse struct {
	CreatorID          string               `json:"creator_id"`
	Period             string               `json:"period"`
	PeriodStart        time.Time            `json:"period_start"`
	PeriodEnd          time.Time            `json:"period_end"`
	TotalViews         int64                `json:"total_views"`
	TotalEarningsCents int64                `json:"total_earnings_cents"`
	Breakdown          []SubmissionEarnings `json:"breakdown"`
}

type Service interface {
	// Summary itemizes a creator's earnings for one month. Only approved,
	// public submissions approved inside the period contribute; the amounts
	// reflect each submission's current lifetime view count, matching what a
	// payout batch for the same period would pay.
	Summary(ctx context.Context, req SummaryRequest) (SummaryResponse, error)
}

var (
	ErrInvalidCreator = errors.New("invalid_creator_id")
)
