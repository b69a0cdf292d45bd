package rule

import (
	"github.com/marketlane/backoffice/internal/rule/repository"
	"github.com/marketlane/backoffice/internal/rule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rule.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
