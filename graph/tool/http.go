package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPTool issues outbound HTTP requests. It is stateless (RequiresRuntime
// is false) — it never needs the state snapshot or long-term store.
//
// Input:
//   - method: "GET" or "POST" (default "GET")
//   - url: required
//   - headers: optional map of string->string
//   - body: optional string, used for POST
//
// Output: status_code, headers, body.
type HTTPTool struct {
	client *http.Client
}

// NewHTTPTool creates an HTTPTool with context-driven timeouts (no client
// timeout is set; callers cancel via ctx).
func NewHTTPTool() *HTTPTool {
	return &HTTPTool{client: &http.Client{}}
}

func (h *HTTPTool) Name() string { return "http_request" }

func (h *HTTPTool) RequiresRuntime() bool { return false }

func (h *HTTPTool) Call(ctx context.Context, input map[string]any, _ Runtime) (map[string]any, *Command, error) {
	urlStr, ok := input["url"].(string)
	if !ok || urlStr == "" {
		return nil, nil, fmt.Errorf("url parameter required (string)")
	}

	method := "GET"
	if m, ok := input["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != "GET" && method != "POST" {
		return nil, nil, fmt.Errorf("unsupported HTTP method: %s (supported: GET, POST)", method)
	}

	var body io.Reader
	if bodyStr, ok := input["body"].(string); ok && bodyStr != "" {
		body = bytes.NewBufferString(bodyStr)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	if headers, ok := input["headers"].(map[string]any); ok {
		for key, value := range headers {
			if valueStr, ok := value.(string); ok {
				req.Header.Set(key, valueStr)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response body: %w", err)
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) == 1 {
			respHeaders[key] = values[0]
		} else {
			respHeaders[key] = values
		}
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        string(respBody),
	}
	return result, nil, nil
}
