package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Module is the persisted installation record of one known module.
// Rows are never deleted; uninstalling only flips Installed.
type Module struct {
	ID               uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	Name             string            `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	AppIdentifier    string            `gorm:"type:varchar(100);not null;uniqueIndex" json:"app_identifier"` // Joins to the registry descriptor
	Version          string            `gorm:"type:varchar(20);not null" json:"version"`                     // Last applied version
	Description      string            `gorm:"type:text;not null;default:''" json:"description"`
	Installed        bool              `gorm:"not null;default:false" json:"installed"`
	InstallationDate *time.Time        `json:"installation_date"`
	LastUpdate       time.Time         `gorm:"autoUpdateTime" json:"last_update"`
	Config           datatypes.JSONMap `gorm:"not null" json:"config"` // Module-private state, round-tripped through upgrade hooks
}

// BeforeCreate assigns the primary key in Go so the same model works on
// Postgres and SQLite (no uuid_generate_v4() on the latter).
func (m *Module) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Config == nil {
		m.Config = datatypes.JSONMap{}
	}
	return nil
}

// SchemaMigration records one applied module migration.
type SchemaMigration struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Module    string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_schema_migration"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_schema_migration"`
	AppliedAt time.Time `gorm:"not null"`
}

func (m *SchemaMigration) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
