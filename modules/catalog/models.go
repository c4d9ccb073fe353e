package catalog

import "time"

// Product is a sellable item. Description arrived in 1.1.0 and Category in
// 1.2.0; both are nullable because older rows predate them.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(200);not null" json:"name"`
	Barcode     string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"barcode"`
	Price       float64   `gorm:"not null;default:0" json:"price"`
	Stock       int       `gorm:"not null;default:0" json:"stock"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	Category    *string   `gorm:"type:varchar(100)" json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Product) TableName() string { return "catalog_products" }

// productV1 is the shape catalog_products was created with.
type productV1 struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"type:varchar(200);not null"`
	Barcode   string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	Price     float64   `gorm:"not null;default:0"`
	Stock     int       `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (productV1) TableName() string { return "catalog_products" }

// RolePermission grants one permission on products to one role.
type RolePermission struct {
	ID         uint   `gorm:"primaryKey"`
	Role       string `gorm:"type:varchar(100);not null;uniqueIndex:idx_catalog_role_permission"`
	Permission string `gorm:"type:varchar(100);not null;uniqueIndex:idx_catalog_role_permission"`
}

func (RolePermission) TableName() string { return "catalog_role_permissions" }
