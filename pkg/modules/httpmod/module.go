// Package httpmod provides invocables that exercise an HTTP target.
package httpmod

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ormasoftchile/tent/pkg/catalog"
	"github.com/ormasoftchile/tent/pkg/ctxlog"
)

// Name is the module name in the catalog.
const Name = "http"

// Module registers the http invocables. A nil Client uses a default one.
type Module struct {
	Client *http.Client
}

// Register adds the module to the registry.
func (m *Module) Register(r *catalog.Registry) {
	r.RegisterModule(catalog.ModuleMeta{
		Name:        Name,
		Description: "HTTP requests against the target, with optional status expectations.",
		Invocables: []*catalog.Invocable{
			{
				Name:        "get",
				Description: "Send a GET request.",
				Params: []catalog.Param{
					catalog.Required("url", "string", "Request URL."),
					catalog.Optional("expect_status", "int", 0, "Required status code; 0 accepts any."),
					catalog.Optional("timeout", "duration", "10s", "Request timeout."),
				},
				Func: m.get,
			},
			{
				Name:        "request",
				Description: "Send a request with any method, headers and body.",
				Params: []catalog.Param{
					catalog.Optional("method", "string", "GET", "HTTP method."),
					catalog.Required("url", "string", "Request URL."),
					catalog.Optional("body", "string", "", "Request body."),
					catalog.Optional("headers", "raw", nil, "Header mapping."),
					catalog.Optional("expect_status", "int", 0, "Required status code; 0 accepts any."),
					catalog.Optional("timeout", "duration", "10s", "Request timeout."),
				},
				Func: m.request,
			},
		},
	})
}

func (m *Module) get(ctx context.Context, params map[string]any) (any, error) {
	req := make(map[string]any, len(params)+1)
	for k, v := range params {
		req[k] = v
	}
	req["method"] = http.MethodGet
	return m.request(ctx, req)
}

func (m *Module) request(ctx context.Context, params map[string]any) (any, error) {
	method := strings.ToUpper(stringParam(params, "method", http.MethodGet))
	url := stringParam(params, "url", "")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	timeout, err := durationParam(params["timeout"])
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if b := stringParam(params, "body", ""); b != "" {
		body = strings.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if hdrs, ok := params["headers"].(map[string]any); ok {
		for k, v := range hdrs {
			req.Header.Set(k, fmt.Sprint(v))
		}
	}

	log := ctxlog.FromContext(ctx)
	log.Debug("Making HTTP request", "method", method, "url", url)

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug("Received HTTP response", "status", resp.Status, "bytes", len(data))

	if want := intParam(params["expect_status"]); want != 0 && resp.StatusCode != want {
		return nil, catalog.Failf("%s %s: status %d, want %d", method, url, resp.StatusCode, want)
	}

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	result := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(data),
		"headers":     headers,
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		var parsed any
		if err := json.Unmarshal(data, &parsed); err == nil {
			result["json"] = parsed
		}
	}
	return result, nil
}

func stringParam(params map[string]any, name, def string) string {
	if v, ok := params[name]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return def
}

func intParam(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// durationParam accepts the coerced duration or the raw default string.
func durationParam(v any) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("timeout: %w", err)
		}
		return parsed, nil
	}
	return 0, fmt.Errorf("timeout: unsupported value %v (%T)", v, v)
}
