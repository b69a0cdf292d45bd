package audit

import (
	"github.com/marketlane/backoffice/internal/audit/repository"
	"github.com/marketlane/backoffice/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
