package modules

import (
	"github.com/omnierp/controlplane/modules/catalog"
	"github.com/omnierp/controlplane/modules/tenants"
	"github.com/omnierp/controlplane/pkg/application"
)

var BuiltInModules = []application.Module{
	catalog.NewModule(),
	tenants.NewModule(),
}

func Load(app application.Application, mods ...application.Module) error {
	for _, module := range mods {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
