// Package databricks implements the volume backend on top of the Databricks
// Files API (/api/2.0/fs).
package databricks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/volumeviewer/internal/logging"
	"github.com/fruitsalade/volumeviewer/internal/metrics"
	"github.com/fruitsalade/volumeviewer/internal/models"
)

const apiPrefix = "/api/2.0/fs"

// Config holds client configuration.
type Config struct {
	Host  string
	Token string
	// Timeout bounds each request; zero leaves requests unbounded.
	Timeout time.Duration
}

// Client talks to the Files API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// StatusError is returned when the Files API answers with a non-success status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d - %s", e.Code, e.Body)
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("databricks host is required")
	}
	host := cfg.Host
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return &Client{
		baseURL: strings.TrimSuffix(host, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}, nil
}

// applyAuth adds the auth headers to a request.
func (c *Client) applyAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// filesURL builds the files endpoint for path. At most one leading "/" is
// dropped so that full volume paths map onto the endpoint.
func (c *Client) filesURL(path string) string {
	path = strings.TrimPrefix(path, "/")
	return c.baseURL + apiPrefix + "/files/" + escapePath(path)
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

type directoryEntry struct {
	Path         string `json:"path"`
	IsDirectory  bool   `json:"is_directory"`
	FileSize     int64  `json:"file_size"`
	LastModified int64  `json:"last_modified"`
	Name         string `json:"name"`
}

type listResponse struct {
	Contents      []directoryEntry `json:"contents"`
	NextPageToken string           `json:"next_page_token"`
}

// List returns the contents of dir, following page tokens until the
// listing is complete.
func (c *Client) List(ctx context.Context, dir string) ([]models.Entry, error) {
	start := time.Now()
	entries, err := c.list(ctx, dir)
	metrics.RecordStorageOperation(c.Type(), "list", time.Since(start), err == nil)
	if err != nil {
		logging.WithContext(ctx).Warn("volume listing failed",
			zap.String("dir", dir), zap.Error(err))
		return nil, err
	}
	return entries, nil
}

func (c *Client) list(ctx context.Context, dir string) ([]models.Entry, error) {
	endpoint := c.baseURL + apiPrefix + "/directories" + escapePath(ensureLeadingSlash(dir))

	entries := []models.Entry{}
	pageToken := ""
	for {
		u := endpoint
		if pageToken != "" {
			u += "?page_token=" + url.QueryEscape(pageToken)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.applyAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}

		if !isSuccess(resp.StatusCode) {
			serr := statusError("list", resp)
			resp.Body.Close()
			return nil, serr
		}

		var lr listResponse
		err = json.NewDecoder(resp.Body).Decode(&lr)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}

		for _, e := range lr.Contents {
			path := e.Path
			if e.IsDirectory && !models.IsDirPath(path) {
				path += models.DirSuffix
			}
			var mtime time.Time
			if e.LastModified > 0 {
				mtime = time.UnixMilli(e.LastModified)
			}
			entries = append(entries, models.NewEntry(path, e.FileSize, mtime))
		}

		if lr.NextPageToken == "" {
			return entries, nil
		}
		pageToken = lr.NextPageToken
	}
}

// Fetch downloads the file at path.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	data, err := c.fetch(ctx, path)
	metrics.RecordStorageOperation(c.Type(), "fetch", time.Since(start), err == nil)
	if err != nil {
		logging.WithContext(ctx).Warn("volume fetch failed",
			zap.String("path", path), zap.Error(err))
		return nil, err
	}
	metrics.RecordFetch(len(data))
	return data, nil
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.filesURL(path), nil)
	if err != nil {
		return nil, err
	}
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, statusError("fetch", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Store uploads data to path, overwriting any existing file.
func (c *Client) Store(ctx context.Context, path string, data []byte) error {
	start := time.Now()
	err := c.store(ctx, path, data)
	metrics.RecordStorageOperation(c.Type(), "store", time.Since(start), err == nil)
	if err != nil {
		logging.WithContext(ctx).Warn("volume upload failed",
			zap.String("path", path), zap.Error(err))
		return err
	}
	metrics.RecordStore(len(data))
	logging.WithContext(ctx).Debug("volume upload",
		zap.String("path", path), zap.Int("size", len(data)))
	return nil
}

func (c *Client) store(ctx context.Context, path string, data []byte) error {
	u := c.filesURL(path) + "?overwrite=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", "application/octet-stream")
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("store %s: %w", path, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return statusError("store", resp)
	}
	return nil
}

// Type returns "databricks".
func (c *Client) Type() string { return "databricks" }

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func statusError(op string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return &StatusError{
		Op:   op,
		Code: resp.StatusCode,
		Body: strings.TrimSpace(string(body)),
	}
}

func ensureLeadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
