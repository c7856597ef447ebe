// Package httpgateway implements domain.ResourceGateway against a remote
// chaos API server.
package httpgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chaostheorist/chaos/internal/domain"
)

// DefaultTimeout bounds one request. Leverage analysis can be slow, so the
// default is generous.
const DefaultTimeout = 60 * time.Second

// Client calls the /api/systems and /api/simulations routes. It keeps no
// state between calls and never retries. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL, e.g.
// "http://127.0.0.1:7070".
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// ListSystems fetches the full catalog.
func (c *Client) ListSystems(ctx context.Context) ([]domain.ChaoticSystemDefinition, error) {
	var out []domain.ChaoticSystemDefinition
	if err := c.do(ctx, http.MethodGet, "/api/systems", nil, &out, domain.ErrTransport); err != nil {
		return nil, fmt.Errorf("list systems: %w", err)
	}
	for i := range out {
		domain.Normalize(&out[i])
	}
	return out, nil
}

// GetSystem fetches one system.
func (c *Client) GetSystem(ctx context.Context, id string) (domain.ChaoticSystemDefinition, error) {
	var out domain.ChaoticSystemDefinition
	if err := c.do(ctx, http.MethodGet, "/api/systems/"+url.PathEscape(id), nil, &out, domain.ErrTransport); err != nil {
		return domain.ChaoticSystemDefinition{}, fmt.Errorf("get system %s: %w", id, err)
	}
	domain.Normalize(&out)
	return out, nil
}

// IdentifyLeveragePoints asks the server to analyze a system. Every failure
// other than an unknown system matches domain.ErrAnalysis.
func (c *Client) IdentifyLeveragePoints(ctx context.Context, systemID string) ([]domain.LeveragePoint, error) {
	var out []domain.LeveragePoint
	path := "/api/systems/" + url.PathEscape(systemID) + "/leverage-points"
	if err := c.do(ctx, http.MethodGet, path, nil, &out, domain.ErrAnalysis); err != nil {
		return nil, fmt.Errorf("identify leverage points for %s: %w", systemID, err)
	}
	return out, nil
}

// UpdateParameter writes one parameter value.
func (c *Client) UpdateParameter(ctx context.Context, systemID, parameterID string, value domain.Value) (domain.SystemParameter, error) {
	var out domain.SystemParameter
	path := "/api/systems/" + url.PathEscape(systemID) + "/parameters/" + url.PathEscape(parameterID)
	body := map[string]domain.Value{"value": value}
	if err := c.do(ctx, http.MethodPut, path, body, &out, domain.ErrTransport); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			ve.ParameterID = parameterID
			return domain.SystemParameter{}, ve
		}
		return domain.SystemParameter{}, fmt.Errorf("update parameter %s/%s: %w", systemID, parameterID, err)
	}
	return out, nil
}

// StartSimulation starts a run.
func (c *Client) StartSimulation(ctx context.Context, req domain.StartRequest) (domain.SimulationRun, error) {
	var out domain.SimulationRun
	if err := c.do(ctx, http.MethodPost, "/api/simulations", req, &out, domain.ErrTransport); err != nil {
		return domain.SimulationRun{}, fmt.Errorf("start simulation: %w", err)
	}
	return out, nil
}

// GetSimulation fetches one run.
func (c *Client) GetSimulation(ctx context.Context, id string) (domain.SimulationRun, error) {
	var out domain.SimulationRun
	if err := c.do(ctx, http.MethodGet, "/api/simulations/"+url.PathEscape(id), nil, &out, domain.ErrTransport); err != nil {
		return domain.SimulationRun{}, fmt.Errorf("get simulation %s: %w", id, err)
	}
	return out, nil
}

// CancelSimulation cancels a running simulation.
func (c *Client) CancelSimulation(ctx context.Context, id, reason string) (domain.SimulationRun, error) {
	var out domain.SimulationRun
	body := map[string]string{"reason": reason}
	if err := c.do(ctx, http.MethodPost, "/api/simulations/"+url.PathEscape(id)+"/cancel", body, &out, domain.ErrTransport); err != nil {
		return domain.SimulationRun{}, fmt.Errorf("cancel simulation %s: %w", id, err)
	}
	return out, nil
}

// ─── Transport ──────────────────────────────────────────────────────────────

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param,omitempty"`
		Reason  string `json:"reason,omitempty"`
	} `json:"error"`
}

// do sends one request. Network failures, server errors and undecodable
// bodies wrap failure; 404, 409 and 422 map to their domain errors.
func (c *Client) do(ctx context.Context, method, path string, in, out any, failure error) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", failure, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", failure, ctx.Err())
		}
		return fmt.Errorf("%w: %v", failure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", failure, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", failure, err)
		}
		return nil
	}

	var e errorResponse
	_ = json.Unmarshal(data, &e)
	msg := e.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusUnprocessableEntity:
		if e.Error.Reason != "" {
			return &domain.ValidationError{ParameterID: e.Error.Param, Reason: e.Error.Reason}
		}
		return &domain.ValidationError{Reason: msg}
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrInvalidTransition, msg)
	}
	return fmt.Errorf("%w: server returned %d: %s", failure, resp.StatusCode, msg)
}
