package response

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON sends a standard JSON response.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			zap.L().Error("Error encoding JSON response", zap.Error(err))
		}
	}
}

// Error sends a JSON error response.
func Error(w http.ResponseWriter, statusCode int, message string) {
	zap.L().Debug("API error", zap.Int("status", statusCode), zap.String("message", message))
	JSON(w, statusCode, ErrorResponse{Error: message})
}
