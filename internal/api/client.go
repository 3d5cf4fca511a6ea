package api

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

	"github.com/bz888/nebula/internal/logger"
)

const (
	chatPath      = "/api/chat"
	threadsPath   = "/api/threads/"
	documentsPath = "/api/documents/"
	uploadPath    = "/api/documents/upload"
	healthPath    = "/health"
)

// ClientConfig holds the configuration for the collaborator client.
type ClientConfig struct {
	// BaseURL is the backend origin, e.g. http://localhost:8000.
	BaseURL       string
	HTTPClient    *http.Client
	MaxUploadSize int64
}

// Client talks to the thread and document endpoints of the backend.
type Client struct {
	base      *url.URL
	http      *http.Client
	maxUpload int64
	log       *logger.Logger
}

func NewClient(config ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", config.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api url %q: scheme and host required", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	maxUpload := config.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadSize
	}

	return &Client{
		base:      base,
		http:      httpClient,
		maxUpload: maxUpload,
		log:       logger.NewLogger("api client"),
	}, nil
}

// ChatURL is the streaming chat endpoint.
func (c *Client) ChatURL() string {
	return c.endpoint(chatPath, nil)
}

func (c *Client) MaxUploadSize() int64 {
	return c.maxUpload
}

func (c *Client) endpoint(path string, query url.Values) string {
	ref := &url.URL{Path: path}
	if query != nil {
		ref.RawQuery = query.Encode()
	}
	return c.base.ResolveReference(ref).String()
}

// Health checks that the backend is up.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, http.MethodGet, c.endpoint(healthPath, nil), nil, "", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out interface{}) error {
	if in == nil {
		return c.do(ctx, method, endpoint, nil, "", out)
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, method, endpoint, bytes.NewReader(body), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		c.log.Error("Failed to create request: ", err)
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("Failed to perform ", method, " ", endpoint, ": ", err)
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Error("Failed to close response body: ", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
		c.log.Warn(method, " ", endpoint, ": ", apiErr)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Error("Failed to decode response: ", err)
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// readDetail extracts the detail field of an error body. Validation errors
// carry a list there and are returned as raw JSON.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(body.Detail, &detail); err == nil {
			return detail
		}
		return string(body.Detail)
	}
	return strings.TrimSpace(string(raw))
}
