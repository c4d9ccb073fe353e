package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"time"

	"github.com/Suhaibinator/SModule/internal/module"
	"go.uber.org/zap"
)

// BackupObject is the storage key of the registry backup document.
const BackupObject = "registry/module_registry_backup.json"

// ErrBackupDisabled is returned by Backup and Restore when no store is configured.
var ErrBackupDisabled = errors.New("registry: no backup store configured")

type backupDocument struct {
	Modules     map[string]module.Descriptor `json:"modules"`
	LastUpdated time.Time                    `json:"last_updated"`
}

// Backup writes the current snapshot to the backup store.
func (r *Registry) Backup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		return ErrBackupDisabled
	}
	current := *r.snapshot.Load()
	if len(current) == 0 {
		// An empty backup would shadow the last useful one.
		return fmt.Errorf("registry snapshot is empty, nothing to back up")
	}
	return r.writeBackup(ctx, current)
}

// Restore replaces the snapshot with the backup document and returns it.
func (r *Registry) Restore(ctx context.Context) (map[string]module.Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		return nil, ErrBackupDisabled
	}
	restored, err := r.readBackup(ctx)
	if err != nil {
		return nil, err
	}
	r.swap(restored)
	r.backedUp = restored
	return maps.Clone(restored), nil
}

func (r *Registry) writeBackup(ctx context.Context, modules map[string]module.Descriptor) error {
	data, err := json.MarshalIndent(backupDocument{
		Modules:     modules,
		LastUpdated: r.now().UTC(),
	}, "", "    ")
	if err != nil {
		return fmt.Errorf("encode registry backup: %w", err)
	}
	if err := r.store.UploadFile(ctx, BackupObject, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return fmt.Errorf("write registry backup: %w", err)
	}
	r.backedUp = modules
	r.log.Info("Module registry backup saved", zap.String("object", BackupObject), zap.Int("modules", len(modules)))
	return nil
}

func (r *Registry) readBackup(ctx context.Context) (map[string]module.Descriptor, error) {
	rc, err := r.store.DownloadFile(ctx, BackupObject)
	if err != nil {
		return nil, fmt.Errorf("read registry backup: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read registry backup: %w", err)
	}
	var doc backupDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode registry backup: %w", err)
	}

	restored := make(map[string]module.Descriptor, len(doc.Modules))
	for id, d := range doc.Modules {
		if d.Identifier == "" {
			d.Identifier = id
		}
		nd, err := d.Normalize()
		if err != nil || nd.Identifier != id {
			r.log.Warn("Skipping invalid entry in registry backup", zap.String("module", id), zap.Error(err))
			continue
		}
		restored[id] = nd
	}
	r.log.Info("Module registry restored from backup",
		zap.Int("modules", len(restored)),
		zap.Time("last_updated", doc.LastUpdated))
	return restored, nil
}
