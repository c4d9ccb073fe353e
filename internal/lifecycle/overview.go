package lifecycle

import (
	"context"
	"fmt"
	"sort"

	"github.com/Suhaibinator/SModule/internal/models"
	"github.com/Suhaibinator/SModule/internal/module"
)

// Status is a discovered module joined with its record, if it has one.
type Status struct {
	Descriptor       module.Descriptor `json:"descriptor"`
	Installed        bool              `json:"installed"`
	UpgradeAvailable bool              `json:"upgrade_available"`
	Record           *models.Module    `json:"record,omitempty"`

	// PendingMigrations is only filled by Inspect.
	PendingMigrations []string `json:"pending_migrations,omitempty"`
}

// Overview lists every discovered module with its installation state, sorted
// by display name. It rescans the registry so removed modules drop out.
func (m *Manager) Overview(ctx context.Context) ([]Status, error) {
	descs := m.registry.GetAll(ctx)

	var records []models.Module
	if err := m.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list module records: %w", err)
	}
	byID := make(map[string]*models.Module, len(records))
	for i := range records {
		byID[records[i].AppIdentifier] = &records[i]
	}

	statuses := make([]Status, 0, len(descs))
	for id, desc := range descs {
		statuses = append(statuses, status(desc, byID[id]))
	}
	sort.Slice(statuses, func(i, j int) bool {
		a, b := statuses[i].Descriptor, statuses[j].Descriptor
		if a.DisplayName != b.DisplayName {
			return a.DisplayName < b.DisplayName
		}
		return a.Identifier < b.Identifier
	})
	return statuses, nil
}

// Inspect returns the status of one module, including the migrations the
// next install or upgrade would apply.
func (m *Manager) Inspect(ctx context.Context, identifier string) (Status, error) {
	desc, ok := m.registry.Get(ctx, identifier)
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrModuleNotFound, identifier)
	}
	record, err := m.Record(ctx, identifier)
	if err != nil {
		return Status{}, err
	}
	s := status(desc, record)
	if s.PendingMigrations, err = m.migrator.Pending(ctx, m.db, identifier); err != nil {
		return Status{}, err
	}
	return s, nil
}

func status(desc module.Descriptor, record *models.Module) Status {
	s := Status{Descriptor: desc, Record: record}
	if record != nil {
		s.Installed = record.Installed
		s.UpgradeAvailable = record.Installed && older(record.Version, desc.Version)
	}
	return s
}
