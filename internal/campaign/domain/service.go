package domain

import (
	"context"
	"errors"
)

type ListCampaignRequest struct {
	Active *bool
}

type ListCampaignResponse struct {
	Campaigns []Campaign `json:"campaigns"`
}

type Service interface {
	GetByID(ctx context.Context, id string) (*Campaign, error)
	List(ctx context.Context, req ListCampaignRequest) (ListCampaignResponse, error)
}

var (
	ErrNotFound          = errors.New("campaign_not_found")
	ErrInvalidCampaignID = errors.New("invalid_campaign_id")
)
