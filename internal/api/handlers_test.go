package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Suhaibinator/SModule/internal/api/response"
	"github.com/Suhaibinator/SModule/internal/db"
	"github.com/Suhaibinator/SModule/internal/lifecycle"
	"github.com/Suhaibinator/SModule/internal/migrate"
	"github.com/Suhaibinator/SModule/internal/module"
	"github.com/Suhaibinator/SModule/internal/registry"
	"github.com/Suhaibinator/SModule/internal/storage"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testToken = "test-token"

// --- Test Setup ---

type testAPI struct {
	router   *mux.Router
	handler  *Handler
	manager  *lifecycle.Manager
	registry *registry.Registry
}

// widgetsModule is a module with a single route and an install hook that
// fails when failInstall is set.
func widgetsModule(failInstall *bool) module.Definition {
	return module.Definition{
		Descriptor: module.Descriptor{Identifier: "widgets", DisplayName: "Widgets", Version: "1.0.0"},
		Hooks: module.Hooks{
			Install: func(ctx context.Context, tx *gorm.DB) error {
				if *failInstall {
					return errors.New("seed data missing")
				}
				return nil
			},
		},
		Routes: func(r *mux.Router, db *gorm.DB) {
			r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				response.JSON(w, http.StatusOK, map[string]string{"module": "widgets"})
			}).Methods("GET")
			r.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
				response.JSON(w, http.StatusOK, map[string]string{"pong": "widgets"})
			}).Methods("GET")
		},
	}
}

func setupTestAPI(t *testing.T, failInstall *bool, opts ...registry.Option) *testAPI {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	log := zaptest.NewLogger(t)
	table := module.NewTable()
	table.MustRegister(widgetsModule(failInstall))
	table.MustRegister(module.Definition{Descriptor: module.Descriptor{Identifier: "reports", DisplayName: "Reports"}})

	reg := registry.New(log, []registry.Source{registry.TableSource{Table: table}}, opts...)
	mgr := lifecycle.New(gormDB, reg, table, migrate.New(table, log), log)
	h := NewHandler(mgr, reg, log)

	router := mux.NewRouter()
	RegisterRoutes(router, h, testToken)
	MountModules(context.Background(), router, table.Definitions(), reg, mgr, gormDB, log)
	return &testAPI{router: router, handler: h, manager: mgr, registry: reg}
}

func (a *testAPI) do(t *testing.T, method, path string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

// --- Tests for module listing ---

func TestListModules_Success(t *testing.T) {
	fail := false
	a := setupTestAPI(t, &fail)
	_, err := a.manager.Install(context.Background(), "widgets")
	require.NoError(t, err)

	rr := a.do(t, http.MethodGet, "/api/v1/modules", false)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var resp ListModulesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Modules, 2)
	assert.Equal(t, "reports", resp.Modules[0].Descriptor.Identifier)
	assert.False(t, resp.Modules[0].Installed)
	assert.Equal(t, "widgets", resp.Modules[1].Descriptor.Identifier)
	assert.True(t, resp.Modules[1].Installed)
}

func TestListModules_DBError(t *testing.T) {
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDb.Close() })
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDb, DriverName: "postgres"}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	table := module.NewTable()
	reg := registry.New(log, []registry.Source{registry.TableSource{Table: table}})
	h := NewHandler(lifecycle.New(gormDB, reg, table, migrate.New(table, log), log), reg, log)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "modules"`)).
		WillReturnError(errors.New("connection refused"))

	rr := httptest.NewRecorder()
	h.ListModules(rr, httptest.NewRequest(http.MethodGet, "/api/v1/modules", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to retrieve modules", decodeError(t, rr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetModule(t *testing.T) {
	fail := false
	a := setupTestAPI(t, &fail)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/modules/widgets", nil)
	req = mux.SetURLVars(req, map[string]string{"identifier": "widgets"})
	rr := httptest.NewRecorder()
	a.handler.GetModule(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var status lifecycle.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, "widgets", status.Descriptor.URLPrefix)
	assert.Nil(t, status.Record)
}

func TestGetModule_NotFound(t *testing.T) {
	fail := false
	a := setupTestAPI(t, &fail)

	rr := a.do(t, http.MethodGet, "/api/v1/modules/ghost", false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Module ghost not found", decodeError(t, rr))
}

// --- Tests for lifecycle endpoints ---

func TestInstallModule_RequiresAuth(t *testing.T) {
	fail := false
	a := setupTestAPI(t, &fail)

	rr := a.do(t, http.MethodPost, "/api/v1/modules/widgets/install", false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	installed, err := a.manager.IsInstalled(context.Background(), "widgets")
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestInstallUpgradeUninstall(t *testing.T) {
	fail := false
	a := setupTestAPI(t, &fail)

	rr := a.do(t, http.MethodPost, "/api/v1/modules/widgets/install", true)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp LifecycleResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Module widgets installed successfully", resp.Message)
	require.NotNil(t, resp.Module)
	assert.True(t, resp.Module.Installed)

	rr = a.do(t, http.MethodPost, "/api/v1/modules/widgets/upgrade", true)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = a.do(t, http.MethodPost, "/api/v1/modules/widgets/uninstall", true)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Module.Installed)
}

func TestInstallModule_Unknown(t *testing.T) {
	fail := false
	a := setupTestAPI(t, &fail)

	rr := a.do(t, http.MethodPost, "/api/v1/modules/ghost/install", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestInstallModule_HookFailure(t *testing.T) {
	fail := true
	a := setupTestAPI(t, &fail)

	rr := a.do(t, http.MethodPost, "/api/v1/modules/widgets/install", true)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to install module widgets: install hook failed: seed data missing", decodeError(t, rr))
}

func TestUninstallModule_NotInstalled(t *testing.T) {
	fail := false
	a := setupTestAPI(t, &fail)

	rr := a.do(t, http.MethodPost, "/api/v1/modules/widgets/uninstall", true)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Module widgets is not installed", decodeError(t, rr))
}

// --- Tests for registry endpoints ---

func TestRefreshRegistry(t *testing.T) {
	fail := false
	a := setupTestAPI(t, &fail)

	rr := a.do(t, http.MethodPost, "/api/v1/registry/refresh", true)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp RegistryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Contains(t, resp.Modules, "reports")
}

func TestRestoreRegistry(t *testing.T) {
	fail := false
	disabled := setupTestAPI(t, &fail)
	rr := disabled.do(t, http.MethodPost, "/api/v1/registry/restore", true)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	store, err := storage.NewLocalStorage(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	a := setupTestAPI(t, &fail, registry.WithBackupStore(store))

	rr = a.do(t, http.MethodPost, "/api/v1/registry/restore", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	require.NoError(t, a.registry.Backup(context.Background()))
	rr = a.do(t, http.MethodPost, "/api/v1/registry/restore", true)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp RegistryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

// --- Tests for mounted module routes ---

func TestMountedModuleRoutes_FollowInstallState(t *testing.T) {
	fail := false
	a := setupTestAPI(t, &fail)

	rr := a.do(t, http.MethodGet, "/module/widgets/ping", false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Module not installed", decodeError(t, rr))

	_, err := a.manager.Install(context.Background(), "widgets")
	require.NoError(t, err)
	rr = a.do(t, http.MethodGet, "/module/widgets/ping", false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"pong":"widgets"}`, rr.Body.String())

	_, err = a.manager.Uninstall(context.Background(), "widgets")
	require.NoError(t, err)
	rr = a.do(t, http.MethodGet, "/module/widgets/ping", false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// --- Tests for middleware and ambient routes ---

func TestAuthMiddleware(t *testing.T) {
	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	})
	handler := AuthMiddleware(testToken, zaptest.NewLogger(t))(next)

	tests := []struct {
		name   string
		header string
		status int
		errMsg string
	}{
		{"missing", "", http.StatusUnauthorized, "Unauthorized: Missing Authorization header"},
		{"malformed", "Token abc", http.StatusUnauthorized, "Unauthorized: Invalid Authorization header format"},
		{"wrong token", "Bearer nope", http.StatusUnauthorized, "Unauthorized: Invalid token"},
		{"valid", "Bearer " + testToken, http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, decodeError(t, rr))
				assert.False(t, reached)
			} else {
				assert.True(t, reached)
			}
		})
	}
}

func TestApplyAuth_EmptyTokenDisablesAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	rr := httptest.NewRecorder()
	ApplyAuth(next, "", zaptest.NewLogger(t)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	fail := false
	a := setupTestAPI(t, &fail)

	rr := a.do(t, http.MethodGet, "/health", false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	rr = a.do(t, http.MethodGet, "/metrics", false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "modengine_registry_modules")
}

func TestMountedModule_RootWithoutTrailingSlash(t *testing.T) {
	fail := false
	a := setupTestAPI(t, &fail)
	_, err := a.manager.Install(context.Background(), "widgets")
	require.NoError(t, err)

	rr := a.do(t, http.MethodGet, "/module/widgets", false)
	assert.Equal(t, http.StatusMovedPermanently, rr.Code)
	assert.Equal(t, "/module/widgets/", rr.Header().Get("Location"))

	rr = a.do(t, http.MethodGet, "/module/widgets/", false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"module":"widgets"}`, rr.Body.String())
}
