package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Suhaibinator/SModule/internal/api"
	"github.com/Suhaibinator/SModule/internal/api/response"
	"github.com/Suhaibinator/SModule/internal/lifecycle"
	"github.com/Suhaibinator/SModule/internal/models"
	"github.com/Suhaibinator/SModule/internal/module"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestListModules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/modules", r.URL.Path)
		response.JSON(w, http.StatusOK, api.ListModulesResponse{Modules: []lifecycle.Status{
			{Descriptor: module.Descriptor{Identifier: "audit", DisplayName: "Audit", Version: "0.1.0"}},
			{
				Descriptor:       module.Descriptor{Identifier: "catalog", DisplayName: "Products", Version: "1.2.0"},
				Installed:        true,
				UpgradeAvailable: true,
				Record:           &models.Module{Version: "1.1.0", Installed: true},
			},
		}})
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := listModules(context.Background(), newClient(srv.URL, "", zaptest.NewLogger(t)), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "IDENTIFIER")
	assert.Contains(t, out.String(), "available")
	assert.Contains(t, out.String(), "1.1.0 (available: 1.2.0)")
	assert.Contains(t, out.String(), "installed, upgrade available")
}

func TestListModules_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, api.ListModulesResponse{Modules: []lifecycle.Status{}})
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, listModules(context.Background(), newClient(srv.URL, "", zaptest.NewLogger(t)), &out))
	assert.Equal(t, "No modules discovered by the engine.\n", out.String())
}

func TestShowModule(t *testing.T) {
	installedAt := time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/modules/catalog", r.URL.Path)
		response.JSON(w, http.StatusOK, lifecycle.Status{
			Descriptor: module.Descriptor{Identifier: "catalog", DisplayName: "Products", Version: "1.2.0", URLPrefix: "products"},
			Installed:  true,
			Record:     &models.Module{Version: "1.2.0", Installed: true, InstallationDate: &installedAt},

			PendingMigrations: []string{"0005_product_tags"},
		})
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, showModule(context.Background(), newClient(srv.URL, "", zaptest.NewLogger(t)), "catalog", &out))

	assert.Contains(t, out.String(), "/module/products/")
	assert.Contains(t, out.String(), "2025-03-08 09:00:00 UTC")
	assert.Contains(t, out.String(), "0005_product_tags")
}

func TestRunLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/modules/catalog/install", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		response.JSON(w, http.StatusOK, api.LifecycleResponse{
			Message: "Module catalog installed successfully",
			Module:  &models.Module{Version: "1.2.0", Installed: true},
		})
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := runLifecycle(context.Background(), newClient(srv.URL+"/", "secret", zaptest.NewLogger(t)), "install", "catalog", &out)
	require.NoError(t, err)
	assert.Equal(t, "Module catalog installed successfully\n", out.String())
}

func TestRunLifecycle_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusConflict, "Module catalog is not installed")
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := runLifecycle(context.Background(), newClient(srv.URL, "secret", zaptest.NewLogger(t)), "uninstall", "catalog", &out)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "Module catalog is not installed", apiErr.Message)
	assert.Empty(t, out.String())
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newClient(srv.URL, "", zaptest.NewLogger(t)).do(context.Background(), "GET", "/api/v1/modules", nil)
	assert.EqualError(t, err, "engine returned status 502: bad gateway")
}

func TestRefreshRegistry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/registry/refresh", r.URL.Path)
		response.JSON(w, http.StatusOK, api.RegistryResponse{Count: 3})
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, refreshRegistry(context.Background(), newClient(srv.URL, "t", zaptest.NewLogger(t)), &out))
	assert.Equal(t, "Registry refreshed: 3 modules discovered\n", out.String())
}

func TestModulePath(t *testing.T) {
	assert.Equal(t, "/api/v1/modules/catalog", modulePath("catalog"))
	assert.Equal(t, "/api/v1/modules/my%20mod/upgrade", modulePath("my mod", "upgrade"))
}

func TestConfigureCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modengine", "config.yaml")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"configure", "--config", path, "--engine-url", "http://engine:9090"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		cfgFile = ""
	})

	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "engine_url: http://engine:9090")
	assert.Contains(t, out.String(), "Configuration successfully saved to "+path)
}
