package earnings

import (
	"github.com/smallbiznis/creatorpay/internal/earnings/service"
	"go.uber.org/fx"
)

var Module = fx.Module("earnings",
	fx.Provide(service.NewService),
)
