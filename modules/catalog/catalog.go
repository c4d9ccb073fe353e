// Package catalog is the product catalog module: a products table, the roles
// allowed to work with it and a read-only product API.
package catalog

import (
	"github.com/Suhaibinator/SModule/internal/module"
	"go.uber.org/zap"
)

const (
	Identifier = "catalog"
	Version    = "1.2.0"
)

// New returns the catalog definition for registration in the module table.
func New(log *zap.Logger) module.Definition {
	h := hooks{log: log.Named(Identifier)}
	return module.Definition{
		Descriptor: module.Descriptor{
			Identifier:  Identifier,
			DisplayName: "Products",
			Version:     Version,
			Description: "Manage store's products",
		},
		Migrations: migrations,
		Hooks: module.Hooks{
			Install:   h.install,
			Uninstall: h.uninstall,
			Upgrade:   h.upgrade,
		},
		Routes: routes,
	}
}
