package edd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"edd-manual-purchases/internal/model"
	"edd-manual-purchases/internal/store"
	"edd-manual-purchases/internal/transport"
)

const (
	wpAPIPath  = "/wp-json/wp/v2"
	eddAPIPath = "/wp-json/edd/v3"

	// pageSize is the WordPress REST maximum for per_page.
	pageSize = 100

	// userAgent identifies this client to the host. Some WAFs block requests without one.
	userAgent = "EDD-Manual-Purchases/1.0"

	service = "EDD"
)

// Config holds the host connection settings.
type Config struct {
	StoreURL string

	// Username and AppPassword authenticate with a WordPress application password.
	// The user needs the edit_shop_payments and manage_options capabilities.
	Username    string
	AppPassword string

	// Fingerprint sends requests through the Chrome TLS fingerprint transport.
	Fingerprint bool
}

// Client implements store.Store for an EDD site.
type Client struct {
	httpClient  *http.Client
	storeURL    string
	username    string
	appPassword string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport-backed client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates an EDD client with the given configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	if cfg.Username == "" || cfg.AppPassword == "" {
		return nil, fmt.Errorf("application password credentials are required")
	}

	c := &Client{
		httpClient: transport.NewClient(transport.Options{
			Fingerprint: cfg.Fingerprint,
			Timeout:     transport.DefaultTimeout,
		}),
		storeURL:    strings.TrimSuffix(cfg.StoreURL, "/"),
		username:    cfg.Username,
		appPassword: cfg.AppPassword,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ store.Store = (*Client)(nil)

// === Accounts ===

// GetAccountByID fetches a user by id.
func (c *Client) GetAccountByID(ctx context.Context, id int) (*model.Account, error) {
	var user wpUser
	path := fmt.Sprintf("%s/users/%d?context=edit", wpAPIPath, id)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &user, "account"); err != nil {
		return nil, err
	}
	return user.toAccount(), nil
}

// GetAccountByEmail finds the user whose email matches exactly (case-insensitive).
func (c *Client) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return c.searchUser(ctx, "user_email", email, func(u *wpUser) bool {
		return strings.EqualFold(u.Email, email)
	})
}

// GetAccountByLogin finds the user whose login matches exactly.
func (c *Client) GetAccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	return c.searchUser(ctx, "user_login", login, func(u *wpUser) bool {
		return u.Username == login
	})
}

// searchUser runs a column-restricted user search.
// WordPress search matches substrings, so results are filtered for an exact hit.
func (c *Client) searchUser(ctx context.Context, column, term string, match func(*wpUser) bool) (*model.Account, error) {
	q := url.Values{}
	q.Set("context", "edit")
	q.Set("search", term)
	q.Set("search_columns", column)
	q.Set("per_page", strconv.Itoa(pageSize))

	var users []wpUser
	if _, err := c.do(ctx, http.MethodGet, wpAPIPath+"/users?"+q.Encode(), nil, &users, "account"); err != nil {
		return nil, err
	}
	for i := range users {
		if match(&users[i]) {
			return users[i].toAccount(), nil
		}
	}
	return nil, model.NewNotFoundError("account")
}

// === Catalog ===

// GetProduct fetches a download with its pricing.
func (c *Client) GetProduct(ctx context.Context, id int) (*model.Product, error) {
	var d eddDownload
	path := fmt.Sprintf("%s/downloads/%d", eddAPIPath, id)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &d, "download"); err != nil {
		return nil, err
	}
	return d.toProduct(), nil
}

// ListProducts pages through every published download.
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	products := []model.Product{}
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("status", "publish")
		q.Set("per_page", strconv.Itoa(pageSize))
		q.Set("page", strconv.Itoa(page))

		var batch []eddDownload
		header, err := c.do(ctx, http.MethodGet, eddAPIPath+"/downloads?"+q.Encode(), nil, &batch, "download")
		if err != nil {
			return nil, err
		}
		for i := range batch {
			products = append(products, *batch[i].toProduct())
		}

		totalPages, _ := strconv.Atoi(header.Get("X-WP-TotalPages"))
		if page >= totalPages || len(batch) < pageSize {
			return products, nil
		}
	}
}

// === Orders ===

// InsertOrder creates the order and returns the id EDD assigned.
func (c *Client) InsertOrder(ctx context.Context, order *model.Order) (int, error) {
	var resp eddOrderResponse
	if _, err := c.do(ctx, http.MethodPost, eddAPIPath+"/orders", newOrderRequest(order), &resp, "order"); err != nil {
		return 0, err
	}
	if resp.ID == 0 {
		return 0, model.NewUpstreamError(service, fmt.Errorf("order created without an id"))
	}
	return resp.ID, nil
}

// SetOrderStatus updates an order's status. EDD records sales and earnings on
// the transition to complete.
func (c *Client) SetOrderStatus(ctx context.Context, id int, status model.OrderStatus) error {
	path := fmt.Sprintf("%s/orders/%d", eddAPIPath, id)
	_, err := c.do(ctx, http.MethodPost, path, eddStatusRequest{Status: string(status)}, nil, "order")
	return err
}

// === Options ===

// GetOption reads a registered setting. Unset or unregistered settings read as "".
func (c *Client) GetOption(ctx context.Context, name string) (string, error) {
	var settings map[string]json.RawMessage
	if _, err := c.do(ctx, http.MethodGet, wpAPIPath+"/settings", nil, &settings, "settings"); err != nil {
		return "", err
	}
	raw, ok := settings[name]
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Non-string settings are returned verbatim.
		return string(raw), nil
	}
	return s, nil
}

// UpdateOption writes a registered setting.
func (c *Client) UpdateOption(ctx context.Context, name, value string) error {
	_, err := c.do(ctx, http.MethodPost, wpAPIPath+"/settings", map[string]string{name: value}, nil, "settings")
	return err
}

// === HTTP ===

// do sends a JSON request and decodes a JSON response into out when non-nil.
// resource names the thing a 404 refers to.
func (c *Client) do(ctx context.Context, method, path string, body, out any, resource string) (http.Header, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.storeURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewUpstreamError(service, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resp.StatusCode, respBody, resource)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, model.NewUpstreamError(service, fmt.Errorf("parsing %s response: %w", resource, err))
		}
	}
	return resp.Header, nil
}

// setHeaders sets auth and content headers for REST requests.
func (c *Client) setHeaders(req *http.Request) {
	req.SetBasicAuth(c.username, c.appPassword)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
}

// parseErrorResponse converts a WP_Error body to APIError.
func parseErrorResponse(statusCode int, body []byte, resource string) error {
	var wpErr wpError
	json.Unmarshal(body, &wpErr) // Best effort parse

	switch statusCode {
	case http.StatusNotFound:
		return model.NewNotFoundError(resource)
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.NewUnauthorizedError("EDD authentication failed")
	case http.StatusBadRequest:
		msg := wpErr.Message
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError(resource, msg)
	case http.StatusTooManyRequests:
		return model.NewRateLimitError(service)
	default:
		return model.NewUpstreamError(service,
			fmt.Errorf("status %d: %s - %s", statusCode, wpErr.Code, wpErr.Message))
	}
}
