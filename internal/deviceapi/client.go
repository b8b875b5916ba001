package deviceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/deskpanel/deskpanel/internal/logging"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is where the display serves its API in AP mode
	DefaultBaseURL = "http://192.168.4.1"

	// DefaultTimeout is the per-request HTTP timeout
	DefaultTimeout = 10 * time.Second

	// DefaultHealthTimeout bounds a single health probe
	DefaultHealthTimeout = 3 * time.Second

	// DefaultMaxAttempts is the total number of config upload attempts
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the fixed delay between config upload attempts
	DefaultRetryDelay = 1 * time.Second

	// maxErrorBody caps how much of an error response is read
	maxErrorBody = 4096
)

// Client represents an HTTP client for the display's configuration API
type Client struct {
	// BaseURL is the base URL for the device (e.g., "http://192.168.4.1")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// HealthTimeout bounds each HealthCheck probe
	HealthTimeout time.Duration

	// MaxAttempts is the total number of UploadConfig attempts
	MaxAttempts int

	// RetryDelay is the fixed delay between UploadConfig attempts
	RetryDelay time.Duration

	logger *zap.Logger
}

// NewClient creates a new device API client
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		HealthTimeout: DefaultHealthTimeout,
		MaxAttempts:   DefaultMaxAttempts,
		RetryDelay:    DefaultRetryDelay,
		logger:        logging.Or(logger),
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures config upload retry behavior
func (c *Client) SetRetry(maxAttempts int, retryDelay time.Duration) {
	c.MaxAttempts = maxAttempts
	c.RetryDelay = retryDelay
}

// HealthCheck performs a single liveness probe. Any failure reports false.
func (c *Client) HealthCheck(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, c.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.BaseURL+PathHealth, nil)
	if err != nil {
		return false
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.Debug("Health probe failed", zap.String("url", c.BaseURL), zap.Error(err))
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	return resp.StatusCode == http.StatusOK
}

// WaitForDevice polls HealthCheck every interval until it succeeds or
// timeout elapses.
func (c *Client) WaitForDevice(ctx context.Context, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if c.HealthCheck(ctx) {
			return true
		}
		if !time.Now().Add(interval).Before(deadline) {
			return false
		}
		if !sleepCtx(ctx, interval) {
			return false
		}
	}
}

// UploadConfig pushes the layout JSON. Timeouts and connection failures
// are retried up to MaxAttempts attempts in total; a validation rejection is
// returned immediately.
func (c *Client) UploadConfig(ctx context.Context, configJSON string) (*ConfigUploadResult, error) {
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.logger.Info("Retrying config upload",
				zap.Int("attempt", attempt),
				zap.Duration("delay", c.RetryDelay),
				zap.Error(lastErr),
			)
			if !sleepCtx(ctx, c.RetryDelay) {
				return nil, NewNetworkError("config upload interrupted", ctx.Err(), c.BaseURL)
			}
		}

		result, err := c.uploadConfigAttempt(ctx, configJSON)
		if err == nil {
			result.Attempts = attempt
			return result, nil
		}

		lastErr = err

		// Don't retry non-retryable errors
		if !IsRetryable(err) {
			return nil, err
		}
	}

	return nil, &HTTPError{
		Type:      ErrTypeExhausted,
		Message:   fmt.Sprintf("config upload failed after %d attempts", attempts),
		Err:       lastErr,
		DeviceURL: c.BaseURL,
		Attempts:  attempts,
	}
}

func (c *Client) uploadConfigAttempt(ctx context.Context, configJSON string) (*ConfigUploadResult, error) {
	body, contentType, err := multipartBody(FieldConfig, "config.json", "application/json", []byte(configJSON), nil)
	if err != nil {
		return nil, NewParseError("failed to build config upload", err)
	}

	resp, err := c.post(ctx, PathConfigUpload, contentType, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusBadRequest {
		return nil, NewValidationError(resp.StatusCode, readErrorMessage(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewStatusError(resp.StatusCode, fmt.Sprintf("config upload failed with status %d: %s", resp.StatusCode, readErrorMessage(resp)))
	}

	var result ConfigUploadResult
	if err := decodeJSON(resp, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, NewValidationError(resp.StatusCode, nonEmpty(result.Error, "device reported failure"))
	}
	return &result, nil
}

// UploadImage pushes one icon. It is never retried.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (*ImageUploadResult, error) {
	return c.uploadImage(ctx, filename, data, KindIcon)
}

// UploadBackground pushes one SJPG background. It is never retried.
func (c *Client) UploadBackground(ctx context.Context, filename string, data []byte) (*ImageUploadResult, error) {
	return c.uploadImage(ctx, filename, data, KindBackground)
}

func (c *Client) uploadImage(ctx context.Context, filename string, data []byte, kind ImageKind) (*ImageUploadResult, error) {
	contentType := "image/png"
	if kind == KindBackground {
		contentType = "application/octet-stream"
	}

	body, mpType, err := multipartBody(FieldImage, filename, contentType, data, map[string]string{FieldKind: string(kind)})
	if err != nil {
		return nil, NewParseError("failed to build image upload", err)
	}

	resp, err := c.post(ctx, PathImageUpload, mpType, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewStatusError(resp.StatusCode, fmt.Sprintf("upload of %s failed with status %d: %s", filename, resp.StatusCode, readErrorMessage(resp)))
	}

	var result ImageUploadResult
	if err := decodeJSON(resp, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, NewValidationError(resp.StatusCode, nonEmpty(result.Error, "device rejected "+filename))
	}

	c.logger.Debug("Uploaded image",
		zap.String("filename", filename),
		zap.String("kind", string(kind)),
		zap.Int("bytes", len(data)),
		zap.String("path", result.Path),
	)
	return &result, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, NewNetworkError("failed to create POST request", err, c.BaseURL)
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, NewNetworkError("failed to create GET request", err, c.BaseURL)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.Debug("Request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, NewNetworkError(req.Method+" "+req.URL.Path+" failed", err, c.BaseURL)
	}
	c.logger.Debug("Request complete",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

// multipartBody builds a form with one file part and optional plain fields.
func multipartBody(field, filename, contentType string, data []byte, extra map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range extra {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func decodeJSON(resp *http.Response, v interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewParseError("failed to read response body", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return NewParseError("failed to parse JSON response", err)
	}
	return nil
}

// readErrorMessage extracts {"error": "..."} from a failed response,
// falling back to the raw body text.
func readErrorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		return er.Error
	}
	return nonEmpty(strings.TrimSpace(string(body)), http.StatusText(resp.StatusCode))
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
