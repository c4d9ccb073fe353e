package module

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gorilla/mux"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrSkipHook may be returned by a hook that found nothing to do. The manager
// treats it exactly like an absent hook.
var ErrSkipHook = errors.New("module: hook skipped")

// Hooks are the optional lifecycle callbacks of a module. A nil field means the
// module does not participate in that transition. Every hook runs inside the
// transaction of the lifecycle operation and must use tx for database work.
type Hooks struct {
	Install   func(ctx context.Context, tx *gorm.DB) error
	Uninstall func(ctx context.Context, tx *gorm.DB) error
	// Upgrade receives the current config; a non-nil result replaces it.
	Upgrade func(ctx context.Context, tx *gorm.DB, config datatypes.JSONMap) (datatypes.JSONMap, error)
}

// Migration is one schema change owned by a module. IDs must be unique within
// the module and are applied in slice order.
type Migration struct {
	ID string
	Up func(tx *gorm.DB) error
}

// Definition is everything a compiled-in module registers with the host.
type Definition struct {
	Descriptor Descriptor
	Migrations []Migration
	Hooks      Hooks
	// Routes mounts the module's HTTP handlers; r is already scoped to the module's URL prefix.
	Routes func(r *mux.Router, db *gorm.DB)
}

// Table is the set of modules compiled into the host binary.
type Table struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewTable creates an empty module table.
func NewTable() *Table {
	return &Table{defs: make(map[string]Definition)}
}

// Register adds a module definition. Identifiers must be unique.
func (t *Table) Register(def Definition) error {
	if def.Descriptor.Identifier == "" {
		return fmt.Errorf("module definition has no identifier")
	}
	seen := make(map[string]struct{}, len(def.Migrations))
	for _, m := range def.Migrations {
		if _, dup := seen[m.ID]; dup || m.ID == "" || m.Up == nil {
			return fmt.Errorf("module %s: invalid or duplicate migration %q", def.Descriptor.Identifier, m.ID)
		}
		seen[m.ID] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.defs[def.Descriptor.Identifier]; exists {
		return fmt.Errorf("module %s already registered", def.Descriptor.Identifier)
	}
	t.defs[def.Descriptor.Identifier] = def
	return nil
}

// MustRegister is Register for startup code; it panics on error.
func (t *Table) MustRegister(def Definition) {
	if err := t.Register(def); err != nil {
		panic(err)
	}
}

// Lookup returns the definition registered under identifier.
func (t *Table) Lookup(identifier string) (Definition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	def, ok := t.defs[identifier]
	return def, ok
}

// Definitions returns all definitions sorted by identifier.
func (t *Table) Definitions() []Definition {
	t.mu.RLock()
	defs := make([]Definition, 0, len(t.defs))
	for _, def := range t.defs {
		defs = append(defs, def)
	}
	t.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Descriptor.Identifier < defs[j].Descriptor.Identifier
	})
	return defs
}
