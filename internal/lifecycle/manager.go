// Package lifecycle drives modules through install, upgrade and uninstall.
//
// Every operation runs in one database transaction: the module record update,
// the schema migrations and the module hook either all persist or none do.
// Hooks run in a savepoint inside that transaction, so the writes of a hook
// whose failure is tolerated (uninstall, upgrade) are discarded while the rest
// of the operation commits.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/Suhaibinator/SModule/internal/metrics"
	"github.com/Suhaibinator/SModule/internal/migrate"
	"github.com/Suhaibinator/SModule/internal/models"
	"github.com/Suhaibinator/SModule/internal/module"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Registry resolves module descriptors.
type Registry interface {
	Get(ctx context.Context, identifier string) (module.Descriptor, bool)
	GetAll(ctx context.Context) map[string]module.Descriptor
}

// Definitions resolves the compiled-in definition, and therefore the hooks, of a module.
type Definitions interface {
	Lookup(identifier string) (module.Definition, bool)
}

// Manager is the only writer of the lifecycle fields of module records.
type Manager struct {
	db       *gorm.DB
	registry Registry
	defs     Definitions
	migrator migrate.Executor
	log      *zap.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for installation dates.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager.
func New(db *gorm.DB, registry Registry, defs Definitions, migrator migrate.Executor, log *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		db:       db,
		registry: registry,
		defs:     defs,
		migrator: migrator,
		log:      log.Named("lifecycle"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Install creates or reactivates the record of identifier, applies its
// migrations and runs its install hook. Any failure rolls everything back.
// A previously uninstalled record is reused with its config intact.
func (m *Manager) Install(ctx context.Context, identifier string) (rec *models.Module, err error) {
	// Lifecycle operations are not cancellable once started.
	ctx = context.WithoutCancel(ctx)
	defer m.observe("install", identifier, time.Now(), &err)

	desc, ok := m.registry.Get(ctx, identifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, identifier)
	}
	hooks := m.hooks(identifier)

	var record models.Module
	err = m.inTx(ctx, func(tx *gorm.DB) error {
		err := tx.Where(models.Module{AppIdentifier: identifier}).
			Attrs(models.Module{
				Name:        desc.DisplayName,
				Version:     desc.Version,
				Description: desc.Description,
				Config:      datatypes.JSONMap{},
			}).
			FirstOrCreate(&record).Error
		if err != nil {
			return fmt.Errorf("find or create record for %s: %w", identifier, err)
		}

		installedAt := m.now().UTC()
		record.Installed = true
		record.InstallationDate = &installedAt
		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("save record for %s: %w", identifier, err)
		}

		if err := m.migrator.Migrate(ctx, tx, identifier); err != nil {
			return &SchemaMigrationError{Module: identifier, Err: err}
		}

		if hooks.Install != nil {
			return m.runHook(tx, identifier, "install", func(htx *gorm.DB) error {
				return hooks.Install(ctx, htx)
			})
		}
		return nil
	})
	if err != nil {
		m.log.Error("Module install failed", zap.String("module", identifier), zap.Error(err))
		return nil, err
	}

	m.log.Info("Module installed", zap.String("module", identifier), zap.String("version", record.Version))
	return &record, nil
}

// Uninstall marks the record of identifier as not installed. The record and
// its config are kept for a later reinstall. A failing uninstall hook is
// logged and does not stop the uninstall.
func (m *Manager) Uninstall(ctx context.Context, identifier string) (rec *models.Module, err error) {
	ctx = context.WithoutCancel(ctx)
	defer m.observe("uninstall", identifier, time.Now(), &err)

	record, err := m.installedRecord(ctx, identifier)
	if err != nil {
		return nil, err
	}
	hooks := m.hooks(identifier)

	err = m.inTx(ctx, func(tx *gorm.DB) error {
		if hooks.Uninstall != nil {
			herr := m.runHook(tx, identifier, "uninstall", func(htx *gorm.DB) error {
				return hooks.Uninstall(ctx, htx)
			})
			if herr != nil {
				m.log.Warn("Uninstall hook failed, uninstalling anyway", zap.String("module", identifier), zap.Error(herr))
			}
		}

		record.Installed = false
		if err := tx.Save(record).Error; err != nil {
			return fmt.Errorf("save record for %s: %w", identifier, err)
		}
		return nil
	})
	if err != nil {
		m.log.Error("Module uninstall failed", zap.String("module", identifier), zap.Error(err))
		return nil, err
	}

	m.log.Info("Module uninstalled", zap.String("module", identifier))
	return record, nil
}

// Upgrade re-runs the migrations of an installed module, lets its upgrade hook
// migrate the stored config and moves the record to the descriptor version.
// Migration failures abort; hook failures are logged and leave config untouched.
func (m *Manager) Upgrade(ctx context.Context, identifier string) (rec *models.Module, err error) {
	ctx = context.WithoutCancel(ctx)
	defer m.observe("upgrade", identifier, time.Now(), &err)

	record, err := m.installedRecord(ctx, identifier)
	if err != nil {
		return nil, err
	}
	desc, ok := m.registry.Get(ctx, identifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, identifier)
	}
	hooks := m.hooks(identifier)
	from := record.Version
	if older(desc.Version, from) {
		m.log.Warn("Descriptor version is older than the installed version",
			zap.String("module", identifier), zap.String("installed", from), zap.String("descriptor", desc.Version))
	}

	err = m.inTx(ctx, func(tx *gorm.DB) error {
		if err := m.migrator.Migrate(ctx, tx, identifier); err != nil {
			return &SchemaMigrationError{Module: identifier, Err: err}
		}

		if hooks.Upgrade != nil {
			current := maps.Clone(record.Config)
			if current == nil {
				current = datatypes.JSONMap{}
			}
			var replacement datatypes.JSONMap
			herr := m.runHook(tx, identifier, "upgrade", func(htx *gorm.DB) error {
				var err error
				replacement, err = hooks.Upgrade(ctx, htx, current)
				return err
			})
			switch {
			case herr != nil:
				m.log.Warn("Upgrade hook failed, keeping current config", zap.String("module", identifier), zap.Error(herr))
			case replacement != nil:
				record.Config = replacement
			}
		}

		record.Version = desc.Version
		if err := tx.Save(record).Error; err != nil {
			return fmt.Errorf("save record for %s: %w", identifier, err)
		}
		return nil
	})
	if err != nil {
		m.log.Error("Module upgrade failed", zap.String("module", identifier), zap.Error(err))
		return nil, err
	}

	m.log.Info("Module upgraded", zap.String("module", identifier), zap.String("from", from), zap.String("to", record.Version))
	return record, nil
}

// IsInstalled reports whether identifier has an installed record. A missing
// record is not an error.
func (m *Manager) IsInstalled(ctx context.Context, identifier string) (bool, error) {
	var count int64
	err := m.db.WithContext(ctx).Model(&models.Module{}).
		Where("app_identifier = ? AND installed = ?", identifier, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check installation of %s: %w", identifier, err)
	}
	return count > 0, nil
}

// Record returns the persisted record of identifier, or nil if there is none.
func (m *Manager) Record(ctx context.Context, identifier string) (*models.Module, error) {
	var record models.Module
	err := m.db.WithContext(ctx).Where("app_identifier = ?", identifier).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load record for %s: %w", identifier, err)
	}
	return &record, nil
}

func (m *Manager) installedRecord(ctx context.Context, identifier string) (*models.Module, error) {
	var record models.Module
	err := m.db.WithContext(ctx).Where("app_identifier = ? AND installed = ?", identifier, true).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotInstalled, identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("load record for %s: %w", identifier, err)
	}
	return &record, nil
}

func (m *Manager) hooks(identifier string) module.Hooks {
	if m.defs == nil {
		return module.Hooks{}
	}
	def, ok := m.defs.Lookup(identifier)
	if !ok {
		return module.Hooks{}
	}
	return def.Hooks
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func (m *Manager) inTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// runHook calls fn in a savepoint. module.ErrSkipHook counts as success; any
// other error or panic rolls the savepoint back and is returned as a
// HookExecutionError.
func (m *Manager) runHook(tx *gorm.DB, identifier, hook string, fn func(htx *gorm.DB) error) error {
	err := tx.Transaction(func(htx *gorm.DB) (herr error) {
		defer func() {
			if r := recover(); r != nil {
				herr = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(htx)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, module.ErrSkipHook) {
		m.log.Debug("Hook skipped", zap.String("module", identifier), zap.String("hook", hook))
		return nil
	}
	metrics.HookFailuresTotal.WithLabelValues(hook, identifier).Inc()
	return &HookExecutionError{Module: identifier, Hook: hook, Err: err}
}

func (m *Manager) observe(operation, identifier string, start time.Time, err *error) {
	outcome := "success"
	if *err != nil {
		outcome = "error"
	}
	metrics.LifecycleOperationsTotal.WithLabelValues(operation, identifier, outcome).Inc()
	metrics.LifecycleDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// older reports whether version a sorts before b. Unparseable versions never compare.
func older(a, b string) bool {
	va, err := semver.NewVersion(a)
	if err != nil {
		return false
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return false
	}
	return va.LessThan(vb)
}
