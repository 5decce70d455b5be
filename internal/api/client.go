package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/broadside-sim/broadside/pkg/core"
)

// UploadPath is the archive endpoint exported battles are posted to.
const UploadPath = "/api/v1/battles/add"

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 2
	retryBackoff   = 500 * time.Millisecond
)

// StatusError is returned when the archive answers with an unexpected status.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s returned status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Op, e.Code, e.Message)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Client talks to the battle archive server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default client with its 30s timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries sets how often a failed upload is retried after a 5xx or 429.
func WithRetries(n int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retries = max(n, 0)
		c.backoff = backoff
	}
}

func New(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retries:    defaultRetries,
		backoff:    retryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Healthcheck checks if the archive server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus("healthcheck", resp)
}

// Upload posts an exported battle file with its metadata as a multipart form.
// The form is built once and resent on temporary failures.
func (c *Client) Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error {
	body, contentType, err := c.uploadForm(filePath, meta)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		err = c.post(ctx, body, contentType)
		se, ok := err.(*StatusError)
		if err == nil || !ok || !se.Temporary() || attempt >= c.retries {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("upload cancelled after %d attempts: %w", attempt+1, err)
		case <-time.After(c.backoff * time.Duration(attempt+1)):
		}
	}
}

func (c *Client) uploadForm(filePath string, meta core.UploadMetadata) ([]byte, string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"secret", c.apiKey},
		{"filename", filepath.Base(filePath)},
		{"battleName", meta.BattleName},
		{"enemyName", meta.EnemyName},
		{"winner", string(meta.Winner)},
		{"turns", strconv.Itoa(meta.Turns)},
		{"duration", strconv.FormatFloat(meta.Duration, 'f', 3, 64)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("failed to copy file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) post(ctx context.Context, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UploadPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus("upload", resp)
}

// checkStatus accepts 200 and 201. Otherwise the start of the body becomes
// the error message.
func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return &StatusError{Op: op, Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
}
