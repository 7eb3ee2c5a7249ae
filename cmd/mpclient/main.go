// mpclient is a CLI tool for recording manual payments through the JSON API.
// Each command performs a single operation, making it composable for scripts.
//
// Examples:
//
//	mpclient products
//	mpclient variants --download 20
//	mpclient create --user buyer@example.com --download 10 --download 20:large
//	ID=$(mpclient -q create --user 42 --download 10 --amount 0.00)
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorBold = "", ""
}

func main() {
	app := &cli.App{
		Name:  "mpclient",
		Usage: "record manual payments against a Manual Purchases server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "server base URL", EnvVars: []string{"MP_SERVER"}},
			&cli.StringFlag{Name: "admin-user", Value: "admin", Usage: "admin user name", EnvVars: []string{"MP_ADMIN_USER"}},
			&cli.StringFlag{Name: "admin-password", Usage: "admin password", EnvVars: []string{"MP_ADMIN_PASSWORD"}},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only print the result"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "show requests and responses"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable colored output", EnvVars: []string{"NO_COLOR"}},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				disableColors()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "nonce",
				Usage:  "issue a create-payment nonce",
				Action: runNonce,
			},
			{
				Name:   "products",
				Usage:  "list published downloads",
				Action: runProducts,
			},
			{
				Name:  "variants",
				Usage: "list the price tiers of a download",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "download", Aliases: []string{"d"}, Usage: "download ID", Required: true},
				},
				Action: runVariants,
			},
			{
				Name:  "create",
				Usage: "record a manual payment",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "buyer account ID, email, or username", Required: true},
					&cli.StringSliceFlag{Name: "download", Aliases: []string{"d"}, Usage: "download as ID or ID:PRICE_ID (repeatable)", Required: true},
					&cli.StringFlag{Name: "amount", Aliases: []string{"a"}, Usage: "total override; omit to use catalog prices"},
					&cli.StringFlag{Name: "nonce", Usage: "nonce to submit; one is issued when omitted"},
				},
				Action: runCreate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s✗ %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func runNonce(c *cli.Context) error {
	api := newAPIClient(c)
	token, err := api.nonce()
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runProducts(c *cli.Context) error {
	api := newAPIClient(c)

	var resp struct {
		Products []struct {
			ID             int    `json:"id"`
			Title          string `json:"title"`
			Price          string `json:"price"`
			VariablePrices []struct {
				Key    string `json:"key"`
				Name   string `json:"name"`
				Amount string `json:"amount"`
			} `json:"variable_prices"`
		} `json:"products"`
	}
	if err := api.do("GET", "/admin/api/products", nil, &resp); err != nil {
		return fmt.Errorf("listing products: %w", err)
	}

	for _, p := range resp.Products {
		if len(p.VariablePrices) == 0 {
			fmt.Printf("%s%d%s\t%s\t%s\n", colorCyan, p.ID, colorReset, p.Title, p.Price)
			continue
		}
		fmt.Printf("%s%d%s\t%s\n", colorCyan, p.ID, colorReset, p.Title)
		for _, v := range p.VariablePrices {
			fmt.Printf("\t%s:%s\t%s\t%s\n", strconv.Itoa(p.ID), v.Key, v.Name, v.Amount)
		}
	}
	return nil
}

func runVariants(c *cli.Context) error {
	api := newAPIClient(c)
	token, err := api.nonce()
	if err != nil {
		return err
	}

	var resp struct {
		Variants []struct {
			Key    string `json:"key"`
			Name   string `json:"name"`
			Amount string `json:"amount"`
		} `json:"variants"`
	}
	body := map[string]any{"download_id": c.Int("download"), "nonce": token}
	if err := api.do("POST", "/admin/api/variants", body, &resp); err != nil {
		return fmt.Errorf("listing variants: %w", err)
	}

	if len(resp.Variants) == 0 && !api.quiet {
		fmt.Printf("%s⚠ download %d has a single price%s\n", colorYellow, c.Int("download"), colorReset)
	}
	for _, v := range resp.Variants {
		fmt.Printf("%s\t%s\t%s\n", v.Key, v.Name, v.Amount)
	}
	return nil
}

func runCreate(c *cli.Context) error {
	api := newAPIClient(c)

	downloads, err := parseDownloadFlags(c.StringSlice("download"))
	if err != nil {
		return err
	}

	token := c.String("nonce")
	if token == "" {
		if token, err = api.nonce(); err != nil {
			return err
		}
	}

	body := map[string]any{
		"user":      c.String("user"),
		"downloads": downloads,
		"nonce":     token,
	}
	if c.IsSet("amount") {
		body["amount"] = c.String("amount")
	}

	var order struct {
		ID     int    `json:"id"`
		Total  string `json:"price"`
		Status string `json:"status"`
		Email  string `json:"user_email"`
	}
	if err := api.do("POST", "/admin/api/payments", body, &order); err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}

	if api.quiet {
		fmt.Println(order.ID)
		return nil
	}
	fmt.Printf("%s✓ Payment created%s\n", colorGreen, colorReset)
	fmt.Printf("  ID: %s%d%s\n", colorCyan, order.ID, colorReset)
	fmt.Printf("  Buyer: %s\n", order.Email)
	fmt.Printf("  Total: %s (%s)\n", order.Total, order.Status)
	return nil
}

// downloadInput is one download row in the create-payment body.
type downloadInput struct {
	ID      int     `json:"id"`
	PriceID *string `json:"price_id,omitempty"`
}

// parseDownloadFlags reads "ID" or "ID:PRICE_ID" values.
func parseDownloadFlags(values []string) ([]downloadInput, error) {
	downloads := make([]downloadInput, 0, len(values))
	for _, v := range values {
		idPart, priceID, hasPrice := strings.Cut(strings.TrimSpace(v), ":")
		id, err := strconv.Atoi(idPart)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid download %q: want ID or ID:PRICE_ID", v)
		}
		d := downloadInput{ID: id}
		if hasPrice {
			d.PriceID = &priceID
		}
		downloads = append(downloads, d)
	}
	return downloads, nil
}

// =============================================================================
// HTTP
// =============================================================================

type apiClient struct {
	http     *http.Client
	baseURL  string
	user     string
	password string
	quiet    bool
	verbose  bool
}

func newAPIClient(c *cli.Context) *apiClient {
	return &apiClient{
		http:     &http.Client{Timeout: 30 * time.Second},
		baseURL:  strings.TrimRight(c.String("server"), "/"),
		user:     c.String("admin-user"),
		password: c.String("admin-password"),
		quiet:    c.Bool("quiet"),
		verbose:  c.Bool("verbose"),
	}
}

func (a *apiClient) nonce() (string, error) {
	var resp struct {
		Nonce string `json:"nonce"`
	}
	if err := a.do("POST", "/admin/api/nonce", nil, &resp); err != nil {
		return "", fmt.Errorf("issuing nonce: %w", err)
	}
	return resp.Nonce, nil
}

// do sends a JSON request and decodes a successful response into out.
func (a *apiClient) do(method, path string, body, out any) error {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, a.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(a.user, a.password)

	if a.verbose {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := a.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if a.verbose {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Code != "" {
			return fmt.Errorf("HTTP %d %s: %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}
	fmt.Printf("%s%s\n", prefix, pretty.String())
}
