// Package migrate applies the schema migrations modules register in the module
// table and keeps a ledger of what has been applied.
package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/Suhaibinator/SModule/internal/models"
	"github.com/Suhaibinator/SModule/internal/module"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Executor applies pending schema changes for one module. Migrate must be
// idempotent: running it again with nothing pending is a no-op.
type Executor interface {
	Migrate(ctx context.Context, tx *gorm.DB, identifier string) error
	Pending(ctx context.Context, db *gorm.DB, identifier string) ([]string, error)
}

// Migrator is the gorm Executor backed by a module table and the
// schema_migrations ledger. It runs on whatever handle it is given, so a
// caller holding a transaction gets migrations that roll back with it.
type Migrator struct {
	table *module.Table
	log   *zap.Logger
	now   func() time.Time
}

// New creates a Migrator over the migrations registered in table.
func New(table *module.Table, log *zap.Logger) *Migrator {
	return &Migrator{table: table, log: log.Named("migrate"), now: time.Now}
}

// Migrate applies, in registration order, every migration of identifier that
// is not yet in the ledger. Modules without migrations, and identifiers the
// table does not know, are a no-op.
func (m *Migrator) Migrate(ctx context.Context, tx *gorm.DB, identifier string) error {
	def, ok := m.table.Lookup(identifier)
	if !ok || len(def.Migrations) == 0 {
		m.log.Debug("No migrations registered", zap.String("module", identifier))
		return nil
	}

	tx = tx.WithContext(ctx)
	done, err := m.applied(tx, identifier)
	if err != nil {
		return err
	}

	count := 0
	for _, mig := range def.Migrations {
		if _, ok := done[mig.ID]; ok {
			continue
		}
		m.log.Info("Applying migration", zap.String("module", identifier), zap.String("migration", mig.ID))
		if err := mig.Up(tx); err != nil {
			return fmt.Errorf("migration %s/%s: %w", identifier, mig.ID, err)
		}
		entry := models.SchemaMigration{Module: identifier, Name: mig.ID, AppliedAt: m.now().UTC()}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("record migration %s/%s: %w", identifier, mig.ID, err)
		}
		count++
	}
	if count > 0 {
		m.log.Info("Migrations applied", zap.String("module", identifier), zap.Int("count", count))
	}
	return nil
}

// Pending lists the migration IDs of identifier that have not been applied yet.
func (m *Migrator) Pending(ctx context.Context, db *gorm.DB, identifier string) ([]string, error) {
	def, ok := m.table.Lookup(identifier)
	if !ok {
		return nil, nil
	}
	done, err := m.applied(db.WithContext(ctx), identifier)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, mig := range def.Migrations {
		if _, ok := done[mig.ID]; !ok {
			pending = append(pending, mig.ID)
		}
	}
	return pending, nil
}

func (m *Migrator) applied(db *gorm.DB, identifier string) (map[string]struct{}, error) {
	var names []string
	if err := db.Model(&models.SchemaMigration{}).Where("module = ?", identifier).Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("read migration ledger for %s: %w", identifier, err)
	}
	done := make(map[string]struct{}, len(names))
	for _, n := range names {
		done[n] = struct{}{}
	}
	return done, nil
}
