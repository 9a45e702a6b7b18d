package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"datanomics/internal"
	"datanomics/internal/errors"
)

// Config holds the gateway settings. BaseURL is the only place a backend
// host is named.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Gateway is the single request/response boundary to the computation
// backend. It encodes JSON, resolves paths against the base URL and turns
// every failure into an *errors.GatewayError. It never retries.
type Gateway struct {
	baseURL *url.URL
	client  *http.Client
	logger  *internal.Logger
}

// NewGateway validates the config and creates a gateway
func NewGateway(cfg Config, logger *internal.Logger) (*Gateway, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.ConfigInvalid("backend base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.ConfigInvalid(fmt.Sprintf("invalid backend base URL %q", raw))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Gateway{
		baseURL: base,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With("Gateway"),
	}, nil
}

// BaseURL returns the resolved base URL
func (g *Gateway) BaseURL() string {
	return g.baseURL.String()
}

func (g *Gateway) resolve(path string) string {
	return g.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

// Call POSTs payload as JSON to path and decodes the success body into out.
// out may be nil when the body is an acknowledgement.
func (g *Gateway) Call(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "encode request for %s", path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.resolve(path), bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "build request for %s", path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return g.do(req, out)
}

// Get issues a GET to path and decodes the body into out
func (g *Gateway) Get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.resolve(path), nil)
	if err != nil {
		return errors.Wrapf(err, "build request for %s", path)
	}
	req.Header.Set("Accept", "application/json")
	return g.do(req, out)
}

// Upload sends content as the multipart field "file"
func (g *Gateway) Upload(ctx context.Context, path string, filename string, content io.Reader, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return errors.Wrap(err, "create multipart field")
	}
	if _, err := io.Copy(part, content); err != nil {
		return errors.Wrapf(err, "read %s", filename)
	}
	if err := mw.Close(); err != nil {
		return errors.Wrap(err, "finish multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.resolve(path), &buf)
	if err != nil {
		return errors.Wrapf(err, "build request for %s", path)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return g.do(req, out)
}

func (g *Gateway) do(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("%s %s failed: %v", req.Method, req.URL.Path, err)
		return errors.NetworkFailure(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.Warn("%s %s: reading body: %v", req.Method, req.URL.Path, err)
		return errors.NetworkFailure(err)
	}
	g.logger.Debug("%s %s -> %d (%s, %d bytes)", req.Method, req.URL.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond), len(raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeFailure(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		g.logger.Warn("%s %s -> %d with an empty body", req.Method, req.URL.Path, resp.StatusCode)
		return errors.InvalidResponse(resp.StatusCode, "empty response body", nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.InvalidResponse(resp.StatusCode, err.Error(), err)
	}
	return nil
}

// failureBody is the backend's error shape. details is usually a list of
// strings but some endpoints send a single string.
type failureBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func decodeFailure(status int, raw []byte) *errors.GatewayError {
	gwErr := &errors.GatewayError{Status: status, Details: []string{}}

	var body failureBody
	if err := json.Unmarshal(raw, &body); err == nil {
		gwErr.Message = body.Error
		gwErr.Details = decodeDetails(body.Details)
	}
	if gwErr.Message == "" {
		gwErr.Message = fmt.Sprintf("backend returned %d %s", status, http.StatusText(status))
	}
	return gwErr
}

func decodeDetails(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if list == nil {
			return []string{}
		}
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}
	var mixed []interface{}
	if err := json.Unmarshal(raw, &mixed); err == nil {
		out := make([]string, len(mixed))
		for i, v := range mixed {
			out[i] = fmt.Sprint(v)
		}
		return out
	}
	return []string{string(raw)}
}
