package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/creatorpay/pkg/db/pagination"
)

type GeneratePayoutRequest struct {
	Period string `json:"period"`
}

type GeneratePayoutResponse struct {
	BatchRunID string   `json:"batch_run_id"`
	PayoutIDs  []string `json:"payout_ids"`
}

type FailPayoutRequest struct {
	PayoutID string
	Reason   string
}

type ListPayoutRequest struct {
	CreatorID string
	Status    PayoutStatus
	Period    string
	PageToken string
	PageSize  int32
}

type ListPayoutResponse struct {
	pagination.PageInfo
	Payouts []Payout `json:"payouts"`
}

type Service interface {
	// Generate materializes one pending payout per creator whose approved
	// public submissions fall in the period. A period generates at most once.
	Generate(ctx context.Context, req GeneratePayoutRequest) (GeneratePayoutResponse, error)
	// Send moves a pending payout to sent and issues its external reference.
	Send(ctx context.Context, payoutID string) (*Payout, error)
	// Fail marks a pending payout failed with an operator-supplied reason.
	Fail(ctx context.Context, req FailPayoutRequest) (*Payout, error)
	GetByID(ctx context.Context, id string) (*Payout, error)
	List(ctx context.Context, req ListPayoutRequest) (ListPayoutResponse, error)
}

var (
	ErrNotFound               = errors.New("payout_not_found")
	ErrInvalidPayoutID        = errors.New("invalid_payout_id")
	ErrInvalidPeriod          = errors.New("invalid_period")
	ErrPeriodAlreadyGenerated = errors.New("payout_period_already_generated")
	ErrGenerateInProgress     = errors.New("payout_generate_in_progress")
	ErrNotPending             = errors.New("payout_not_pending")
	ErrInvalidFailureReason   = errors.New("invalid_failure_reason")
)
