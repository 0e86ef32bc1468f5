package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/smallbiznis/creatorpay/internal/campaign/domain"
	"github.com/smallbiznis/creatorpay/pkg/db/option"
	"github.com/smallbiznis/creatorpay/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	campaignrepo repository.Repository[campaigndomain.Campaign]
}

func NewService(p ServiceParam) campaigndomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("campaign.service"),

		campaignrepo: repository.ProvideStore[campaigndomain.Campaign](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*campaigndomain.Campaign, error) {
	campaignID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || campaignID == 0 {
		return nil, campaigndomain.ErrInvalidCampaignID
	}

	item, err := s.campaignrepo.FindOne(ctx, &campaigndomain.Campaign{ID: campaignID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, campaigndomain.ErrNotFound
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, req campaigndomain.ListCampaignRequest) (campaigndomain.ListCampaignResponse, error) {
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	}
	if req.Active != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "active", Operator: option.EQ, Value: *req.Active}))
	}

	items, err := s.campaignrepo.Find(ctx, &campaigndomain.Campaign{}, opts...)
	if err != nil {
		return campaigndomain.ListCampaignResponse{}, err
	}

	campaigns := make([]campaigndomain.Campaign, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		campaigns = append(campaigns, *item)
	}
	return campaigndomain.ListCampaignResponse{Campaigns: campaigns}, nil
}
