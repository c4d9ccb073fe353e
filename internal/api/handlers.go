package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Suhaibinator/SModule/internal/api/response"
	"github.com/Suhaibinator/SModule/internal/lifecycle"
	"github.com/Suhaibinator/SModule/internal/models"
	"github.com/Suhaibinator/SModule/internal/module"
	"github.com/Suhaibinator/SModule/internal/registry"
	"github.com/Suhaibinator/SModule/internal/storage"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Lifecycle is the part of the lifecycle manager the API drives.
type Lifecycle interface {
	Install(ctx context.Context, identifier string) (*models.Module, error)
	Uninstall(ctx context.Context, identifier string) (*models.Module, error)
	Upgrade(ctx context.Context, identifier string) (*models.Module, error)
	Overview(ctx context.Context) ([]lifecycle.Status, error)
	Inspect(ctx context.Context, identifier string) (lifecycle.Status, error)
}

// Registry is the part of the module registry the API exposes.
type Registry interface {
	Get(ctx context.Context, identifier string) (module.Descriptor, bool)
	Discover(ctx context.Context) (map[string]module.Descriptor, error)
	Restore(ctx context.Context) (map[string]module.Descriptor, error)
}

// Handler serves the admin API.
type Handler struct {
	lifecycle Lifecycle
	registry  Registry
	log       *zap.Logger
}

// NewHandler creates the admin API handler.
func NewHandler(lc Lifecycle, reg Registry, log *zap.Logger) *Handler {
	return &Handler{lifecycle: lc, registry: reg, log: log.Named("api")}
}

// ListModulesResponse defines the structure for the list modules endpoint.
type ListModulesResponse struct {
	Modules []lifecycle.Status `json:"modules"`
}

// LifecycleResponse is returned by the install, uninstall and upgrade endpoints.
type LifecycleResponse struct {
	Message string         `json:"message"`
	Module  *models.Module `json:"module"`
}

// RegistryResponse is returned by the registry refresh and restore endpoints.
type RegistryResponse struct {
	Count   int                          `json:"count"`
	Modules map[string]module.Descriptor `json:"modules"`
}

// ListModules handles requests to list every discovered module with its state.
// GET /api/v1/modules
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.lifecycle.Overview(r.Context())
	if err != nil {
		h.log.Error("Error listing modules", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "Failed to retrieve modules")
		return
	}
	if statuses == nil {
		// Ensure we return an empty array instead of null
		statuses = []lifecycle.Status{}
	}
	response.JSON(w, http.StatusOK, ListModulesResponse{Modules: statuses})
}

// GetModule handles requests for a single module's state.
// GET /api/v1/modules/{identifier}
func (h *Handler) GetModule(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]
	if identifier == "" {
		response.Error(w, http.StatusBadRequest, "Module identifier is required")
		return
	}

	status, err := h.lifecycle.Inspect(r.Context(), identifier)
	if err != nil {
		h.writeLifecycleError(w, "inspect", identifier, err)
		return
	}
	response.JSON(w, http.StatusOK, status)
}

// InstallModule handles POST /api/v1/modules/{identifier}/install. Requires Authentication.
func (h *Handler) InstallModule(w http.ResponseWriter, r *http.Request) {
	h.runLifecycle(w, r, "install", "installed", h.lifecycle.Install)
}

// UninstallModule handles POST /api/v1/modules/{identifier}/uninstall. Requires Authentication.
func (h *Handler) UninstallModule(w http.ResponseWriter, r *http.Request) {
	h.runLifecycle(w, r, "uninstall", "uninstalled", h.lifecycle.Uninstall)
}

// UpgradeModule handles POST /api/v1/modules/{identifier}/upgrade. Requires Authentication.
func (h *Handler) UpgradeModule(w http.ResponseWriter, r *http.Request) {
	h.runLifecycle(w, r, "upgrade", "upgraded", h.lifecycle.Upgrade)
}

func (h *Handler) runLifecycle(w http.ResponseWriter, r *http.Request, operation, done string,
	op func(ctx context.Context, identifier string) (*models.Module, error)) {
	identifier := mux.Vars(r)["identifier"]
	if identifier == "" {
		response.Error(w, http.StatusBadRequest, "Module identifier is required")
		return
	}

	record, err := op(r.Context(), identifier)
	if err != nil {
		h.writeLifecycleError(w, operation, identifier, err)
		return
	}
	response.JSON(w, http.StatusOK, LifecycleResponse{
		Message: fmt.Sprintf("Module %s %s successfully", identifier, done),
		Module:  record,
	})
}

// writeLifecycleError maps lifecycle errors to status codes. Every failure is
// reported to the caller as a JSON notification.
func (h *Handler) writeLifecycleError(w http.ResponseWriter, operation, identifier string, err error) {
	var hookErr *lifecycle.HookExecutionError
	var migErr *lifecycle.SchemaMigrationError

	switch {
	case errors.Is(err, lifecycle.ErrModuleNotFound):
		response.Error(w, http.StatusNotFound, fmt.Sprintf("Module %s not found", identifier))
	case errors.Is(err, lifecycle.ErrModuleNotInstalled):
		response.Error(w, http.StatusConflict, fmt.Sprintf("Module %s is not installed", identifier))
	case errors.As(err, &hookErr):
		response.Error(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s module %s: %s hook failed: %v", operation, identifier, hookErr.Hook, hookErr.Err))
	case errors.As(err, &migErr):
		response.Error(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s module %s: schema migration failed: %v", operation, identifier, migErr.Err))
	default:
		h.log.Error("Lifecycle operation failed", zap.String("operation", operation), zap.String("module", identifier), zap.Error(err))
		response.Error(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s module %s", operation, identifier))
	}
}

// RefreshRegistry rescans the module sources.
// POST /api/v1/registry/refresh. Requires Authentication.
func (h *Handler) RefreshRegistry(w http.ResponseWriter, r *http.Request) {
	modules, err := h.registry.Discover(r.Context())
	if err != nil {
		h.log.Error("Error refreshing module registry", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "Failed to refresh module registry")
		return
	}
	response.JSON(w, http.StatusOK, RegistryResponse{Count: len(modules), Modules: modules})
}

// RestoreRegistry repopulates the registry from its last backup.
// POST /api/v1/registry/restore. Requires Authentication.
func (h *Handler) RestoreRegistry(w http.ResponseWriter, r *http.Request) {
	modules, err := h.registry.Restore(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrBackupDisabled):
			response.Error(w, http.StatusServiceUnavailable, "Registry backups are not configured")
		case errors.Is(err, storage.ErrNotFound):
			response.Error(w, http.StatusNotFound, "No registry backup found")
		default:
			h.log.Error("Error restoring module registry", zap.Error(err))
			response.Error(w, http.StatusInternalServerError, "Failed to restore module registry")
		}
		return
	}
	response.JSON(w, http.StatusOK, RegistryResponse{Count: len(modules), Modules: modules})
}
