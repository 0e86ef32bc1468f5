package impression

import (
	"github.com/smallbiznis/creatorpay/internal/impression/liveevents"
	"github.com/smallbiznis/creatorpay/internal/impression/service"
	"go.uber.org/fx"
)

var Module = fx.Module("impression",
	fx.Provide(liveevents.NewHub),
	fx.Provide(service.NewService),
)
