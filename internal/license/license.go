// Package license talks to the Software Licensing endpoint of the vendor store:
// activating the add-on's license key, refreshing its status, and checking for
// newer releases.
package license

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"edd-manual-purchases/internal/model"
	"edd-manual-purchases/internal/store"
	"edd-manual-purchases/internal/transport"
)

// Option names in the host store.
const (
	OptionKey    = "edd_mp_license_key"
	OptionStatus = "edd_mp_license_active"
)

// StatusValid is the status the licensing server reports for an active key.
const StatusValid = "valid"

// Timeout bounds every licensing call.
const Timeout = 15 * time.Second

const service = "licensing server"

// Config identifies the product to the licensing server.
type Config struct {
	// APIURL is the vendor store's base URL.
	APIURL   string
	ItemName string

	// Version is the running release, compared against get_version.
	Version string
}

// Client calls the licensing endpoint and persists results as host options.
type Client struct {
	httpClient *http.Client
	cfg        Config
	options    store.Options
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default 15s client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a licensing client.
func New(cfg Config, options store.Options, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: transport.NewClient(transport.Options{Timeout: Timeout}),
		cfg:        cfg,
		options:    options,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// response is the subset of the licensing API response this client reads.
type response struct {
	License    string `json:"license"`
	NewVersion string `json:"new_version"`
}

// SaveKey stores the submitted key and activates it.
// Returns the resulting status. A failed activation leaves the stored status untouched.
func (c *Client) SaveKey(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if err := c.options.UpdateOption(ctx, OptionKey, key); err != nil {
		return "", fmt.Errorf("saving license key: %w", err)
	}
	return c.Activate(ctx, key)
}

// Activate sends activate_license unless the stored status is already valid,
// then stores the returned status. On a network or decode failure nothing is
// persisted.
func (c *Client) Activate(ctx context.Context, key string) (string, error) {
	current, err := c.options.GetOption(ctx, OptionStatus)
	if err != nil {
		return "", fmt.Errorf("reading license status: %w", err)
	}
	if current == StatusValid {
		return current, nil
	}

	resp, err := c.call(ctx, "activate_license", key)
	if err != nil {
		c.logger.WarnContext(ctx, "license activation failed", slog.String("error", err.Error()))
		return "", err
	}
	if err := c.options.UpdateOption(ctx, OptionStatus, resp.License); err != nil {
		return "", fmt.Errorf("saving license status: %w", err)
	}

	c.logger.InfoContext(ctx, "license activated", slog.String("status", resp.License))
	return resp.License, nil
}

// Check refreshes the stored status with check_license.
func (c *Client) Check(ctx context.Context, key string) (string, error) {
	resp, err := c.call(ctx, "check_license", key)
	if err != nil {
		return "", err
	}
	if err := c.options.UpdateOption(ctx, OptionStatus, resp.License); err != nil {
		return "", fmt.Errorf("saving license status: %w", err)
	}
	return resp.License, nil
}

// LatestVersion asks the licensing server for the newest release.
func (c *Client) LatestVersion(ctx context.Context, key string) (string, error) {
	resp, err := c.call(ctx, "get_version", key)
	if err != nil {
		return "", err
	}
	return resp.NewVersion, nil
}

// call issues GET {base}?edd_action=ACTION&license=KEY&item_name=NAME.
func (c *Client) call(ctx context.Context, action, key string) (*response, error) {
	q := url.Values{}
	q.Set("edd_action", action)
	q.Set("license", key)
	q.Set("item_name", c.cfg.ItemName)
	if action == "get_version" {
		q.Set("version", c.cfg.Version)
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", action, err)
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewUpstreamError(service, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, model.NewUpstreamError(service, err)
	}
	if httpResp.StatusCode >= 400 {
		return nil, model.NewUpstreamError(service, fmt.Errorf("%s: status %d", action, httpResp.StatusCode))
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.NewUpstreamError(service, fmt.Errorf("decoding %s response: %w", action, err))
	}
	if action != "get_version" && resp.License == "" {
		return nil, model.NewUpstreamError(service, fmt.Errorf("%s response has no license status", action))
	}
	return &resp, nil
}
