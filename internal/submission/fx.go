package submission

import (
	"github.com/smallbiznis/creatorpay/internal/submission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("submission",
	fx.Provide(service.NewService),
)
