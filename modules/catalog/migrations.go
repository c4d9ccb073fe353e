package catalog

import (
	"github.com/Suhaibinator/SModule/internal/module"
	"gorm.io/gorm"
)

var migrations = []module.Migration{
	{ID: "0001_create_products", Up: func(tx *gorm.DB) error {
		return tx.Migrator().CreateTable(&productV1{})
	}},
	{ID: "0002_create_role_permissions", Up: func(tx *gorm.DB) error {
		return tx.Migrator().CreateTable(&RolePermission{})
	}},
	// 1.1.0
	{ID: "0003_product_description", Up: addProductColumn("Description")},
	// 1.2.0
	{ID: "0004_product_category", Up: addProductColumn("Category")},
}

func addProductColumn(field string) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		if tx.Migrator().HasColumn(&Product{}, field) {
			return nil
		}
		return tx.Migrator().AddColumn(&Product{}, field)
	}
}
