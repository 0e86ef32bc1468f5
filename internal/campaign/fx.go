package campaign

import (
	"github.com/smallbiznis/creatorpay/internal/campaign/service"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign",
	fx.Provide(service.NewService),
)
