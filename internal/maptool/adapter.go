package maptool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/NNNvD/DMA/internal/config"
	"github.com/NNNvD/DMA/internal/domain"
)

var (
	// ErrMissingCredentials means the adapter needs to log in but has no
	// username/password configured. Not retryable.
	ErrMissingCredentials = errors.New("maptool credentials are required for authentication")

	// ErrProtocol means the MapTool server broke its wire contract, such as
	// a login response missing both token and session fields. Not retryable.
	ErrProtocol = errors.New("maptool protocol violation")
)

// Adapter executes MapTool API calls with bounded retries and a cached
// bearer session token.
//
// Worst-case latency for a call is roughly
// timeout*retries + backoff*retries*(retries-1)/2; callers overriding the
// retry count should budget accordingly.
type Adapter struct {
	baseURL       string
	username      string
	password      string
	maxRetries    int
	backoffFactor time.Duration

	client *http.Client
	sleep  func(time.Duration) // test seam

	mu           sync.Mutex
	sessionToken string
}

// New creates an Adapter from configuration.
func New(cfg config.MapToolConfig) *Adapter {
	return &Adapter{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		username:      cfg.Username,
		password:      cfg.Password,
		maxRetries:    cfg.MaxRetries,
		backoffFactor: cfg.BackoffFactor,
		client:        &http.Client{Timeout: cfg.Timeout},
		sleep:         time.Sleep,
	}
}

// SessionToken returns the cached bearer token, empty when unauthenticated.
func (a *Adapter) SessionToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionToken
}

func (a *Adapter) setSessionToken(token string) {
	a.mu.Lock()
	a.sessionToken = token
	a.mu.Unlock()
}

// authHeaders builds per-call headers. An explicit header wins over the
// cached session token.
func (a *Adapter) authHeaders(authHeader string) map[string]string {
	headers := map[string]string{"Accept": "application/json"}
	token := authHeader
	if token == "" {
		token = a.SessionToken()
	}
	if token != "" {
		headers["Authorization"] = token
	}
	return headers
}

// Authenticate logs in to MapTool and caches the bearer token. When an
// explicit header is supplied it is cached as-is without a network call.
func (a *Adapter) Authenticate(ctx context.Context, authHeader string) (string, error) {
	if authHeader != "" {
		a.setSessionToken(authHeader)
		return authHeader, nil
	}
	if a.username == "" || a.password == "" {
		return "", ErrMissingCredentials
	}

	payload := map[string]string{"username": a.username, "password": a.password}
	status, body, err := a.requestWithRetries(ctx, http.MethodPost, "/auth/login", payload,
		map[string]string{"Accept": "application/json"}, 0)
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", fmt.Errorf("maptool login returned status %d", status)
	}

	var resp struct {
		Token   string `json:"token"`
		Session string `json:"session"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	token := resp.Token
	if token == "" {
		token = resp.Session
	}
	if token == "" {
		return "", fmt.Errorf("%w: authentication response missing token", ErrProtocol)
	}
	if !strings.HasPrefix(token, "Bearer") {
		token = "Bearer " + token
	}
	a.setSessionToken(token)
	slog.Debug("Authenticated to MapTool, token cached")
	return token, nil
}

// ensureAuth resolves the session token for a call: an explicit header always
// wins and overwrites the cache, a cached token is reused, and otherwise the
// adapter logs in with its configured credentials.
func (a *Adapter) ensureAuth(ctx context.Context, authHeader string) (string, error) {
	if authHeader != "" {
		a.setSessionToken(authHeader)
		return authHeader, nil
	}
	if token := a.SessionToken(); token != "" {
		return token, nil
	}
	return a.Authenticate(ctx, "")
}

// FetchMap retrieves a map by ID.
func (a *Adapter) FetchMap(ctx context.Context, mapID, authHeader string, attempts int) (*Map, error) {
	status, body, err := a.requestWithRetries(ctx, http.MethodGet, "/maps/"+mapID, nil,
		a.authHeaders(authHeader), attempts)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("fetch map %s: status %d", mapID, status)
	}
	var m Map
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode map response: %w", err)
	}
	return &m, nil
}

// CreateToken creates a token on a map. Unset optional fields are omitted
// from the payload.
func (a *Adapter) CreateToken(ctx context.Context, mapID string, token Token, authHeader string) (*Token, error) {
	status, body, err := a.requestWithRetries(ctx, http.MethodPost, "/maps/"+mapID+"/tokens", token,
		a.authHeaders(authHeader), 0)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("create token on map %s: status %d", mapID, status)
	}
	var created Token
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &created, nil
}

// UpdateToken applies a partial token update.
func (a *Adapter) UpdateToken(ctx context.Context, mapID string, update TokenUpdate, authHeader string) (*Token, error) {
	return a.patchToken(ctx, mapID, update, a.authHeaders(authHeader), 0)
}

func (a *Adapter) patchToken(ctx context.Context, mapID string, update TokenUpdate, headers map[string]string, attempts int) (*Token, error) {
	path := "/maps/" + mapID + "/tokens/" + update.TokenID
	status, body, err := a.requestWithRetries(ctx, http.MethodPatch, path, update.Payload(), headers, attempts)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("update token %s on map %s: status %d", update.TokenID, mapID, status)
	}
	var updated Token
	if err := json.Unmarshal(body, &updated); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &updated, nil
}

// DeleteToken removes a token. Returns true when the server confirms with 204.
func (a *Adapter) DeleteToken(ctx context.Context, mapID, tokenID, authHeader string) (bool, error) {
	status, _, err := a.requestWithRetries(ctx, http.MethodDelete, "/maps/"+mapID+"/tokens/"+tokenID, nil,
		a.authHeaders(authHeader), 0)
	if err != nil {
		return false, err
	}
	return status == http.StatusNoContent, nil
}

// UpdateFog adjusts fog of war on a map.
func (a *Adapter) UpdateFog(ctx context.Context, mapID string, fog FogUpdate, authHeader string) (map[string]any, error) {
	return a.patchMapAspect(ctx, mapID, "fog", fog, authHeader)
}

// UpdateLight adjusts global lighting on a map.
func (a *Adapter) UpdateLight(ctx context.Context, mapID string, light LightUpdate, authHeader string) (map[string]any, error) {
	return a.patchMapAspect(ctx, mapID, "light", light, authHeader)
}

func (a *Adapter) patchMapAspect(ctx context.Context, mapID, aspect string, payload any, authHeader string) (map[string]any, error) {
	status, body, err := a.requestWithRetries(ctx, http.MethodPatch, "/maps/"+mapID+"/"+aspect, payload,
		a.authHeaders(authHeader), 0)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("update %s on map %s: status %d", aspect, mapID, status)
	}
	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", aspect, err)
	}
	return result, nil
}

// PullMapState fetches a map and translates it into the campaign model.
func (a *Adapter) PullMapState(ctx context.Context, mapID, authHeader string, retries int) (*domain.CampaignMapState, error) {
	token, err := a.ensureAuth(ctx, authHeader)
	if err != nil {
		return nil, err
	}
	m, err := a.FetchMap(ctx, mapID, token, retries)
	if err != nil {
		return nil, err
	}
	state := ToCampaignMap(*m)
	return &state, nil
}

// PushTokenUpdates applies updates strictly in order, one PATCH per token,
// each independently retried. The first failed update aborts the rest;
// callers get all-or-abort semantics, never a partial-success report.
func (a *Adapter) PushTokenUpdates(ctx context.Context, mapID string, updates []TokenUpdate, authHeader string, retries int) ([]domain.CampaignToken, error) {
	token, err := a.ensureAuth(ctx, authHeader)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Accept": "application/json", "Authorization": token}
	results := make([]domain.CampaignToken, 0, len(updates))
	for _, update := range updates {
		updated, err := a.patchToken(ctx, mapID, update, headers, retries)
		if err != nil {
			return nil, fmt.Errorf("push update for token %s: %w", update.TokenID, err)
		}
		results = append(results, ToCampaignToken(*updated))
	}
	return results, nil
}

// requestWithRetries issues one HTTP request with bounded retries and linear
// backoff. Transport errors and 5xx responses are retryable; any other
// response is returned for the caller to interpret. attempts <= 0 uses the
// configured default. Each attempt builds and tears down its own request and
// response so a failed attempt cannot leak into the next.
func (a *Adapter) requestWithRetries(ctx context.Context, method, path string, payload any, headers map[string]string, attempts int) (int, []byte, error) {
	total := attempts
	if total <= 0 {
		total = a.maxRetries
	}

	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request payload: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= total; attempt++ {
		status, body, err := a.doRequest(ctx, method, path, encoded, headers)
		if err == nil && status < 500 {
			return status, body, nil
		}
		if err == nil {
			err = fmt.Errorf("maptool returned status %d", status)
		}
		lastErr = err

		slog.Warn("MapTool request failed",
			"method", method,
			"path", path,
			"attempt", attempt,
			"total", total,
			"error", err,
		)
		if attempt == total {
			break
		}
		a.sleep(a.backoffFactor * time.Duration(attempt))
	}
	return 0, nil, fmt.Errorf("maptool request %s %s failed after %d attempts: %w", method, path, total, lastErr)
}

func (a *Adapter) doRequest(ctx context.Context, method, path string, payload []byte, headers map[string]string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}
