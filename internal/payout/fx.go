package payout

import (
	"github.com/smallbiznis/creatorpay/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout",
	fx.Provide(service.NewService),
)
