// Package client talks to the collector over HTTP with primary/fallback
// endpoint failover.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/t766/control/internal/bundle"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
)

// Config holds the client settings
type Config struct {
	PrimaryURL  string
	FallbackURL string
	Timeout     time.Duration // Per request (default: 20s)
	MaxLogBytes int           // Tail kept per log field (default: 256KiB)
	TempDir     string        // Parent of unpacked bundles (default: os.TempDir())
}

// Client is the agent's collector client
type Client struct {
	endpoints   []string
	httpClient  *http.Client
	maxLogBytes int
	tempDir     string
	logger      *logging.Logger
}

// New creates a Client. Base URLs get a trailing slash if they lack one.
func New(cfg Config, logger *logging.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxLogBytes <= 0 {
		cfg.MaxLogBytes = 256 * 1024
	}

	// Bundles are already tar; transport-level gzip only gets in the way
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableCompression = true

	return &Client{
		endpoints: []string{withSlash(cfg.PrimaryURL), withSlash(cfg.FallbackURL)},
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		maxLogBytes: cfg.MaxLogBytes,
		tempDir:     cfg.TempDir,
		logger:      logger,
	}
}

func withSlash(base string) string {
	if strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}

// failover runs fn against the primary endpoint, then once against the
// fallback. Each failure is logged and wrapped in a TransportError.
func failover[T any](ctx context.Context, c *Client, op string, fn func(ctx context.Context, base string) (T, error)) (T, error) {
	var (
		zero T
		errs []error
	)

	for i, base := range c.endpoints {
		v, err := fn(ctx, base)
		if err == nil {
			if i > 0 {
				c.logger.Info("Fallback endpoint succeeded", "op", op, "endpoint", base)
			}
			return v, nil
		}

		c.logger.Warn("Endpoint request failed",
			"op", op,
			"endpoint", base,
			"attempt", i+1,
			"error", err)
		errs = append(errs, &TransportError{Endpoint: base, Err: err})
	}

	return zero, fmt.Errorf("%s: %w: %w", op, ErrAllEndpointsFailed, errors.Join(errs...))
}

// do performs one request and returns the body when accept(status) holds
func (c *Client) do(ctx context.Context, method, url string, body []byte, accept func(int) bool) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "identity")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if !accept(resp.StatusCode) {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(data[:min(len(data), 200)])}
	}
	return data, nil
}

func isOK(code int) bool { return code == http.StatusOK }

func is2xx(code int) bool { return code >= 200 && code < 300 }

// FetchBundle downloads the raw manifest bundle from GET {base}manifests
func (c *Client) FetchBundle(ctx context.Context) ([]byte, error) {
	return failover(ctx, c, "fetch manifests", func(ctx context.Context, base string) ([]byte, error) {
		return c.do(ctx, http.MethodGet, base+"manifests", nil, isOK)
	})
}

// Bundle is an unpacked manifest tree in a private temporary directory
type Bundle struct {
	Dir          string
	ManifestsDir string
	// ModulesDir is empty when the bundle ships no modules
	ModulesDir string
}

// Close removes the bundle's directory
func (b *Bundle) Close() error {
	return os.RemoveAll(b.Dir)
}

// FetchManifests downloads the bundle and unpacks it into a fresh temporary
// directory. Unpack failures are returned as *ArchiveError.
func (c *Client) FetchManifests(ctx context.Context) (*Bundle, error) {
	data, err := c.FetchBundle(ctx)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(c.tempDir, "t766-manifests-")
	if err != nil {
		return nil, fmt.Errorf("failed to create bundle directory: %w", err)
	}

	if err := bundle.Extract(bytes.NewReader(data), dir); err != nil {
		_ = os.RemoveAll(dir)
		return nil, newArchiveError(err, data)
	}

	b := &Bundle{
		Dir:          dir,
		ManifestsDir: filepath.Join(dir, bundle.ManifestsDir),
	}
	if info, err := os.Stat(b.ManifestsDir); err != nil || !info.IsDir() {
		_ = os.RemoveAll(dir)
		return nil, newArchiveError(errors.New("bundle has no manifests directory"), data)
	}
	if info, err := os.Stat(filepath.Join(dir, bundle.ModulesDir)); err == nil && info.IsDir() {
		b.ModulesDir = filepath.Join(dir, bundle.ModulesDir)
	}

	c.logger.Debug("Unpacked manifest bundle", "dir", dir, "bytes", len(data))
	return b, nil
}

// SubmitStatus posts a sync report to {base}puppet-sync and returns the
// collector's acknowledgement. Logs and check-ins are truncated first.
func (c *Client) SubmitStatus(ctx context.Context, req models.SubmitRequest) (string, error) {
	req.Logs = Truncate(req.Logs, c.maxLogBytes)

	checkins := make([]string, len(req.CheckinLogs))
	for i, entry := range req.CheckinLogs {
		checkins[i] = Truncate(entry, c.maxLogBytes)
	}
	req.CheckinLogs = checkins

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal sync report: %w", err)
	}

	return failover(ctx, c, "submit status", func(ctx context.Context, base string) (string, error) {
		data, err := c.do(ctx, http.MethodPost, base+"puppet-sync", body, is2xx)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
}
