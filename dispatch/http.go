package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const apiKeyHeader = "X-Api-Key"

// envelope is the request body: the action discriminator plus its payload.
type envelope struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload,omitempty"`
}

// HTTPDispatcher posts envelopes to a single backend endpoint.
//
// TokenProvider, when set, supplies the current bearer credential for the
// Authorization header. It must be a synchronous read of live state and must
// never trigger a refresh, or auth.refresh_token dispatches would recurse.
type HTTPDispatcher struct {
	endpoint      string
	apiKey        string
	httpClient    *http.Client
	TokenProvider func() string
}

// NewHTTPDispatcher creates a dispatcher for the given endpoint URL and API
// key. A nil httpClient falls back to a client with a 30s overall timeout.
func NewHTTPDispatcher(endpoint, apiKey string, httpClient *http.Client) *HTTPDispatcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPDispatcher{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, action string, payload map[string]any) (*Response, error) {
	body, err := json.Marshal(envelope{Action: action, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set(apiKeyHeader, d.apiKey)
	}
	if d.TokenProvider != nil {
		if token := d.TokenProvider(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %w", action, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", action, err)
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		// No envelope at all; synthesize a rejection from the status code
		// so callers still get the uniform shape for server-side errors.
		if resp.StatusCode >= 400 {
			return &Response{
				OK: false,
				Error: &APIError{
					Code:    http.StatusText(resp.StatusCode),
					Status:  resp.StatusCode,
					Message: string(respBody),
				},
			}, nil
		}
		return nil, fmt.Errorf("failed to decode %s response: %w", action, err)
	}

	if !out.OK && out.Error == nil {
		out.Error = &APIError{Status: resp.StatusCode, Message: "request rejected"}
	}
	return &out, nil
}
