package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// APIError is a non-2xx answer from the engine.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("engine returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("engine returned status %d: %s", e.StatusCode, e.Message)
}

type apiErrorResponse struct {
	Error string `json:"error"`
}

// engineClient calls the engine's admin API.
type engineClient struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

// newClientFromConfig builds a client from the effective viper settings.
func newClientFromConfig(log *zap.Logger) (*engineClient, error) {
	base := viper.GetString("engine_url")
	if base == "" {
		return nil, fmt.Errorf("engine URL is not configured. Use --engine-url flag, MODENGINE_ENGINE_URL env var, or 'modctl configure'")
	}
	return newClient(base, viper.GetString("api_token"), log), nil
}

func newClient(baseURL, token string, log *zap.Logger) *engineClient {
	return &engineClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 2 * time.Minute},
		log:     log,
	}
}

// do sends a request to path (segments already escaped) and decodes a JSON
// answer into out when out is non-nil.
func (c *engineClient) do(ctx context.Context, method, path string, out interface{}) error {
	targetURL := c.baseURL + path
	c.log.Debug("Calling engine", zap.String("method", method), zap.String("url", targetURL))

	req, err := http.NewRequestWithContext(ctx, method, targetURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp apiErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil {
			apiErr.Message = errResp.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.log.Debug("Unparseable engine response", zap.ByteString("body", body))
		return fmt.Errorf("parse API response: %w", err)
	}
	return nil
}

func modulePath(identifier string, action ...string) string {
	p := "/api/v1/modules/" + url.PathEscape(identifier)
	for _, a := range action {
		p += "/" + a
	}
	return p
}
