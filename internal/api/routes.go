package api

import (
	"context"
	"net/http"

	"github.com/Suhaibinator/SModule/internal/module"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterRoutes sets up the admin API, health and metrics routes.
func RegisterRoutes(router *mux.Router, h *Handler, authToken string) {
	apiV1 := router.PathPrefix("/api/v1").Subrouter()

	// --- Public Routes (No Auth Required) ---

	// List All Modules: GET /api/v1/modules
	apiV1.HandleFunc("/modules", h.ListModules).Methods("GET")

	// Module State: GET /api/v1/modules/{identifier}
	apiV1.HandleFunc("/modules/{identifier}", h.GetModule).Methods("GET")

	// --- Protected Routes (Auth Required) ---

	apiV1.Handle("/modules/{identifier}/install", ApplyAuth(http.HandlerFunc(h.InstallModule), authToken, h.log)).Methods("POST")
	apiV1.Handle("/modules/{identifier}/uninstall", ApplyAuth(http.HandlerFunc(h.UninstallModule), authToken, h.log)).Methods("POST")
	apiV1.Handle("/modules/{identifier}/upgrade", ApplyAuth(http.HandlerFunc(h.UpgradeModule), authToken, h.log)).Methods("POST")
	apiV1.Handle("/registry/refresh", ApplyAuth(http.HandlerFunc(h.RefreshRegistry), authToken, h.log)).Methods("POST")
	apiV1.Handle("/registry/restore", ApplyAuth(http.HandlerFunc(h.RestoreRegistry), authToken, h.log)).Methods("POST")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// MountModules mounts the routes of every compiled-in module at
// /module/{url_prefix}/. Each mount answers 404 while its module is not
// installed. Modules the registry rejected are not mounted.
func MountModules(ctx context.Context, router *mux.Router, defs []module.Definition, reg Registry, checker InstallChecker, db *gorm.DB, log *zap.Logger) {
	for _, def := range defs {
		if def.Routes == nil {
			continue
		}
		id := def.Descriptor.Identifier
		desc, ok := reg.Get(ctx, id)
		if !ok {
			log.Warn("Module has routes but no registry entry, not mounting", zap.String("module", id))
			continue
		}
		sub := router.PathPrefix("/module/" + desc.URLPrefix).Subrouter()
		sub.StrictSlash(true) // /module/{url_prefix} redirects to the module's "/" route
		sub.Use(RequireInstalled(checker, id, log))
		def.Routes(sub, db)
		log.Info("Mounted module routes", zap.String("module", id), zap.String("prefix", "/module/"+desc.URLPrefix+"/"))
	}
}
