package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/creatorpay/pkg/db/pagination"
)

type CreateSubmissionRequest struct {
	CreatorID   string `json:"creator_id"`
	CampaignID  string `json:"campaign_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ContentRef  string `json:"content_ref,omitempty"`
}

// ReviewRequest is the input for every moderation action. ReviewerID is the
// explicit acting principal; there is no ambient current user.
type ReviewRequest struct {
	SubmissionID string
	ReviewerID   string
	Note         string
}

type ListSubmissionRequest struct {
	CreatorID  string
	CampaignID string
	Status     SubmissionStatus
	PageToken  string
	PageSize   int32
}

type ListSubmissionResponse struct {
	pagination.PageInfo
	Submissions []Submission `json:"submissions"`
}

type Service interface {
	Create(ctx context.Context, req CreateSubmissionRequest) (*Submission, error)
	GetByID(ctx context.Context, id string) (*Submission, error)
	List(ctx context.Context, req ListSubmissionRequest) (ListSubmissionResponse, error)

	// Approve moves a submission to approved/public and stamps approved_at.
	// Approving an already-approved submission is a no-op so the approval
	// timestamp, which bounds view eligibility, never shifts forward.
	Approve(ctx context.Context, req ReviewRequest) (*Submission, error)
	// Reject moves a submission to rejected/private. The note is required.
	Reject(ctx context.Context, req ReviewRequest) (*Submission, error)
	// Flag parks a submission for external moderation tooling.
	Flag(ctx context.Context, req ReviewRequest) (*Submission, error)
}

var (
	ErrNotFound            = errors.New("submission_not_found")
	ErrInvalidSubmissionID = errors.New("invalid_submission_id")
	ErrInvalidCreator      = errors.New("invalid_creator_id")
	ErrInvalidCampaign     = errors.New("invalid_campaign_id")
	ErrInvalidTitle        = errors.New("invalid_title")
	ErrInvalidReviewer     = errors.New("invalid_reviewer_id")
	ErrEmptyReviewNote     = errors.New("invalid_review_note")
)
