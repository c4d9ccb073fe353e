package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrModuleNotFound is returned when the registry has no descriptor for the identifier.
	ErrModuleNotFound = errors.New("module not found")
	// ErrModuleNotInstalled is returned by Uninstall and Upgrade when there is no installed record.
	ErrModuleNotInstalled = errors.New("module not installed")
)

// HookExecutionError wraps a failure returned (or panicked) by a module hook.
// Install returns it; Uninstall and Upgrade only log it.
type HookExecutionError struct {
	Module string
	Hook   string
	Err    error
}

func (e *HookExecutionError) Error() string {
	return fmt.Sprintf("module %s: %s hook failed: %v", e.Module, e.Hook, e.Err)
}

func (e *HookExecutionError) Unwrap() error { return e.Err }

// SchemaMigrationError wraps a migration executor failure. It always aborts
// the operation.
type SchemaMigrationError struct {
	Module string
	Err    error
}

func (e *SchemaMigrationError) Error() string {
	return fmt.Sprintf("module %s: schema migration failed: %v", e.Module, e.Err)
}

func (e *SchemaMigrationError) Unwrap() error { return e.Err }
