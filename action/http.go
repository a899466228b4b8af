package action

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// HTTPExecutor is an Executor that dispatches KindHttpCall actions over the
// network. Other Kinds are reported as a failed Result rather than an
// error, matching the dispatch-returns-FAILURE contract used throughout
// the kernel for unhandled variants.
type HTTPExecutor struct {
	client *http.Client
}

// NewHTTPExecutor creates an HTTPExecutor with default settings. Request
// timeouts are controlled via ctx, not the client.
func NewHTTPExecutor() *HTTPExecutor {
	return &HTTPExecutor{client: &http.Client{}}
}

// Execute implements Executor.
func (h *HTTPExecutor) Execute(ctx context.Context, act Action, _ map[string]any) (Result, error) {
	if act.Kind != KindHttpCall {
		return Result{Success: false, Message: "unsupported action kind: " + string(act.Kind)}, nil
	}

	if act.Endpoint == "" {
		return Result{}, fmt.Errorf("action: http_call requires an endpoint")
	}

	method := strings.ToUpper(act.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if act.Body != "" {
		body = bytes.NewBufferString(act.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, act.Endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("action: building request: %w", err)
	}
	for key, value := range act.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("action: http call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("action: reading response body: %w", err)
	}

	output := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(respBody),
	}
	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	return Result{
		Success: success,
		Message: "http " + method + " " + act.Endpoint + " -> " + strconv.Itoa(resp.StatusCode),
		Output:  output,
	}, nil
}
