// Package registry maintains the refreshable mapping from module identifier to
// descriptor.
//
// A refresh builds a complete new mapping from every Source and swaps it in
// atomically; readers always see either the previous or the next snapshot,
// never a partially built one. Refreshes are serialized.
package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Suhaibinator/SModule/internal/metrics"
	"github.com/Suhaibinator/SModule/internal/module"
	"github.com/Suhaibinator/SModule/internal/storage"
	"go.uber.org/zap"
)

// Source supplies candidate descriptors. Units that fail to load are skipped
// by the source itself; an error means the whole source is unavailable.
type Source interface {
	Name() string
	Descriptors(ctx context.Context) ([]module.Descriptor, error)
}

// Registry is the process-wide descriptor cache. Create it with New and share
// the instance; it is safe for concurrent use.
type Registry struct {
	sources []Source
	store   storage.Provider // nil disables backups
	log     *zap.Logger
	now     func() time.Time

	mu       sync.Mutex // serializes Discover, Backup and Restore
	snapshot atomic.Pointer[map[string]module.Descriptor]
	backedUp map[string]module.Descriptor // last snapshot known to be in the store; guarded by mu
}

// Option configures a Registry.
type Option func(*Registry)

// WithBackupStore enables the snapshot backup written before every refresh.
func WithBackupStore(p storage.Provider) Option {
	return func(r *Registry) { r.store = p }
}

// WithClock overrides the clock used to stamp backups.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates an empty registry over the given sources. Sources are consulted
// in order; on identifier clashes the earlier source wins.
func New(log *zap.Logger, sources []Source, opts ...Option) *Registry {
	r := &Registry{
		sources: sources,
		log:     log.Named("registry"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	empty := map[string]module.Descriptor{}
	r.snapshot.Store(&empty)
	return r
}

// Discover rescans every source and replaces the snapshot with the result.
// The previous snapshot is backed up first when a backup store is configured
// and it changed since the last backup. An unavailable source is skipped; only
// when no source produced anything is the snapshot repopulated from the
// backup, and the error is returned only when that fails too.
func (r *Registry) Discover(ctx context.Context) (map[string]module.Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() { metrics.RegistryDiscoveryDuration.Observe(time.Since(start).Seconds()) }()

	if current := *r.snapshot.Load(); len(current) > 0 && r.store != nil && !maps.Equal(current, r.backedUp) {
		if err := r.writeBackup(ctx, current); err != nil {
			r.log.Warn("Failed to back up module registry before refresh", zap.Error(err))
		}
	}

	fresh, scanErr := r.scan(ctx)
	if scanErr != nil {
		if r.store == nil {
			return nil, scanErr
		}
		r.log.Warn("Module discovery unavailable, restoring registry from backup", zap.Error(scanErr))
		restored, err := r.readBackup(ctx)
		if err != nil {
			return nil, errors.Join(scanErr, fmt.Errorf("restore registry from backup: %w", err))
		}
		metrics.RegistryRestoresTotal.Inc()
		r.backedUp = restored
		fresh = restored
	}

	r.swap(fresh)
	r.log.Info("Module registry refreshed", zap.Int("modules", len(fresh)))
	return maps.Clone(fresh), nil
}

// Get returns the descriptor for identifier, discovering first when the
// snapshot is empty. Unknown identifiers yield false, never an error.
func (r *Registry) Get(ctx context.Context, identifier string) (module.Descriptor, bool) {
	snap := *r.snapshot.Load()
	if len(snap) == 0 {
		if _, err := r.Discover(ctx); err != nil {
			r.log.Warn("Module discovery failed", zap.String("module", identifier), zap.Error(err))
			return module.Descriptor{}, false
		}
		snap = *r.snapshot.Load()
	}
	d, ok := snap[identifier]
	return d, ok
}

// GetAll rediscovers and returns every descriptor. Listing screens use it so
// newly added or removed modules show up immediately. On failure the current
// snapshot is returned.
func (r *Registry) GetAll(ctx context.Context) map[string]module.Descriptor {
	all, err := r.Discover(ctx)
	if err != nil {
		r.log.Warn("Module discovery failed, serving current snapshot", zap.Error(err))
		return r.Snapshot()
	}
	return all
}

// Snapshot returns a copy of the current mapping without rescanning.
func (r *Registry) Snapshot() map[string]module.Descriptor {
	return maps.Clone(*r.snapshot.Load())
}

func (r *Registry) swap(next map[string]module.Descriptor) {
	r.snapshot.Store(&next)
	metrics.RegistryModules.Set(float64(len(next)))
}

// scan builds a fresh mapping. Sources that fail are skipped, as are
// descriptors that fail normalization, repeat an identifier or reuse another
// module's URL prefix. An error is returned only when a source failed and no
// other source produced a descriptor.
func (r *Registry) scan(ctx context.Context) (map[string]module.Descriptor, error) {
	fresh := make(map[string]module.Descriptor)
	prefixes := make(map[string]string) // url prefix -> identifier

	var failures []error
	for _, src := range r.sources {
		descs, err := src.Descriptors(ctx)
		if err != nil {
			r.log.Warn("Skipping unavailable module source", zap.String("source", src.Name()), zap.Error(err))
			metrics.RegistrySkippedTotal.WithLabelValues("source_unavailable").Inc()
			failures = append(failures, fmt.Errorf("module source %s: %w", src.Name(), err))
			continue
		}
		sort.Slice(descs, func(i, j int) bool { return descs[i].Identifier < descs[j].Identifier })

		for _, raw := range descs {
			d, err := raw.Normalize()
			if err != nil {
				r.log.Warn("Skipping invalid module descriptor", zap.String("source", src.Name()), zap.Error(err))
				metrics.RegistrySkippedTotal.WithLabelValues("invalid").Inc()
				continue
			}
			if _, dup := fresh[d.Identifier]; dup {
				r.log.Warn("Skipping duplicate module identifier", zap.String("source", src.Name()), zap.String("module", d.Identifier))
				metrics.RegistrySkippedTotal.WithLabelValues("duplicate_identifier").Inc()
				continue
			}
			if owner, taken := prefixes[d.URLPrefix]; taken {
				r.log.Warn("Skipping module whose URL prefix is already taken",
					zap.String("module", d.Identifier),
					zap.String("url_prefix", d.URLPrefix),
					zap.String("owner", owner))
				metrics.RegistrySkippedTotal.WithLabelValues("url_prefix_collision").Inc()
				continue
			}
			fresh[d.Identifier] = d
			prefixes[d.URLPrefix] = d.Identifier
		}
	}
	if len(failures) > 0 && len(fresh) == 0 {
		return nil, errors.Join(failures...)
	}
	return fresh, nil
}
