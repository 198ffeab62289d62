package modules

import (
	"github.com/fieldcrew/mobsched/modules/scheduling"
	"github.com/fieldcrew/mobsched/pkg/application"
	"github.com/fieldcrew/mobsched/pkg/configuration"
)

// BuiltInModules lists the modules every entrypoint loads.
func BuiltInModules(conf *configuration.Configuration) []application.Module {
	return []application.Module{
		scheduling.NewModule(&scheduling.ModuleOptions{
			Scheduling:    conf.Scheduling,
			RedisURL:      conf.RedisURL,
			TenantHeader:  conf.TenantHeader,
			DefaultTenant: conf.DefaultTenant(),
			Outbox:        conf.Outbox.Enabled,
		}),
	}
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
