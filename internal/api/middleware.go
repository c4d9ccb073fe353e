package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/Suhaibinator/SModule/internal/api/response"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// AuthMiddleware creates a middleware function that checks for a static bearer token.
func AuthMiddleware(requiredToken string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Debug("Missing Authorization header", zap.String("path", r.URL.Path))
				response.Error(w, http.StatusUnauthorized, "Unauthorized: Missing Authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Debug("Invalid Authorization header format", zap.String("path", r.URL.Path))
				response.Error(w, http.StatusUnauthorized, "Unauthorized: Invalid Authorization header format")
				return
			}

			if parts[1] != requiredToken {
				log.Warn("Invalid token", zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))
				response.Error(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ApplyAuth selectively applies the authentication middleware only if the token is not empty.
// If the token is empty, it allows all requests through for that handler.
func ApplyAuth(handler http.Handler, requiredToken string, log *zap.Logger) http.Handler {
	if requiredToken == "" {
		log.Warn("Auth token is empty, authentication is disabled for protected routes")
		return handler
	}
	return AuthMiddleware(requiredToken, log)(handler)
}

// InstallChecker answers whether a module is currently installed.
type InstallChecker interface {
	IsInstalled(ctx context.Context, identifier string) (bool, error)
}

// RequireInstalled hides a module's routes with a 404 while it is not installed.
func RequireInstalled(checker InstallChecker, identifier string, log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			installed, err := checker.IsInstalled(r.Context(), identifier)
			if err != nil {
				log.Error("Error checking module installation", zap.String("module", identifier), zap.Error(err))
				response.Error(w, http.StatusInternalServerError, "Failed to check module state")
				return
			}
			if !installed {
				response.Error(w, http.StatusNotFound, "Module not installed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
