package domain

import (
	"context"
	"errors"
	"time"
)

// Soft rejection reasons returned on uncounted views.
const (
	ReasonNotApproved = "not_approved"
	ReasonNotPublic   = "not_public"
	ReasonBackdated   = "backdated"
)

type RecordViewRequest struct {
	SubmissionID string    `json:"submission_id"`
	ViewerID     string    `json:"viewer_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	Region       string    `json:"region,omitempty"`
	Device       string    `json:"device,omitempty"`
}

// RecordViewResponse reports whether the view was counted. An uncounted view
// is a success, not an error; Reason says why it did not count.
type RecordViewResponse struct {
	Counted bool   `json:"counted"`
	Views   int64  `json:"views"`
	Reason  string `json:"reason,omitempty"`
}

type ListAggregateRequest struct {
	SubmissionID string
	StartDate    string
	EndDate      string
}

type ListAggregateResponse struct {
	Aggregates []ImpressionAggregate `json:"aggregates"`
}

type Service interface {
	Record(ctx context.Context, req RecordViewRequest) (RecordViewResponse, error)
	ListAggregates(ctx context.Context, req ListAggregateRequest) (ListAggregateResponse, error)
}

var (
	ErrInvalidOccurredAt = errors.New("invalid_occurred_at")
	ErrInvalidDateRange  = errors.New("invalid_date_range")
)
