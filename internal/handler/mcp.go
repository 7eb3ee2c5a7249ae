// MCP transport for the manual purchase service using the official MCP Go SDK.
// Exposes the create-payment workflow as tools for assistants.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"edd-manual-purchases/internal/model"
	"edd-manual-purchases/internal/purchase"
)

// === MCP Tool Input/Output Types ===

// CreateNonceInput is the input schema for create_nonce tool.
type CreateNonceInput struct{}

// CreateNonceOutput carries a nonce for create_payment and get_price_variants.
type CreateNonceOutput struct {
	Nonce string `json:"nonce"`
}

// ListProductsInput is the input schema for list_products tool.
type ListProductsInput struct{}

// ListProductsOutput is the catalog.
type ListProductsOutput struct {
	Products []MCPProduct `json:"products"`
}

// MCPProduct is a download as reported to tools. Amounts are decimal strings.
type MCPProduct struct {
	ID       int          `json:"id"`
	Title    string       `json:"title"`
	Price    string       `json:"price"`
	Variants []MCPVariant `json:"variants,omitempty"`
}

// MCPVariant is one price tier.
type MCPVariant struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// PriceVariantsInput is the input schema for get_price_variants tool.
type PriceVariantsInput struct {
	DownloadID int    `json:"download_id" jsonschema:"download ID"`
	Nonce      string `json:"nonce" jsonschema:"nonce from create_nonce"`
}

// PriceVariantsOutput lists a download's price tiers. Empty when the download
// has a single price.
type PriceVariantsOutput struct {
	Variants []MCPVariant `json:"variants"`
}

// CreatePaymentInput is the input schema for create_payment tool.
type CreatePaymentInput struct {
	User      string             `json:"user" jsonschema:"buyer account ID, email, or username"`
	Amount    string             `json:"amount,omitempty" jsonschema:"total override; omit to use catalog prices"`
	Downloads []MCPDownloadInput `json:"downloads" jsonschema:"downloads to record on the payment"`
	Nonce     string             `json:"nonce" jsonschema:"nonce from create_nonce"`
}

// MCPDownloadInput is one download row.
type MCPDownloadInput struct {
	ID      int    `json:"id" jsonschema:"download ID"`
	PriceID string `json:"price_id,omitempty" jsonschema:"price tier key for variable-priced downloads"`
}

// PaymentOutput summarizes the created payment.
type PaymentOutput struct {
	ID          int    `json:"id"`
	Status      string `json:"status"`
	Total       string `json:"total"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	PurchaseKey string `json:"purchase_key"`
	Date        string `json:"date"`
	Items       int    `json:"items"`
}

// NewMCPServer creates an MCP server with the payment tools registered.
// Tools act as the configured MCP operator; nonces they issue are bound to it.
func (h *Handler) NewMCPServer() *mcp.Server {
	version := h.Version
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "edd-manual-purchases",
			Version: version,
		},
		&mcp.ServerOptions{
			Instructions: "Manual Purchases - record store payments without checkout. " +
				"Call create_nonce first and pass the nonce to get_price_variants and create_payment.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_nonce",
		Description: "Issue a nonce authorizing create_payment and get_price_variants.",
	}, h.mcpCreateNonce)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_products",
		Description: "List published downloads with their prices and price tiers.",
	}, h.mcpListProducts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_price_variants",
		Description: "Get the price tiers of a variable-priced download.",
	}, h.mcpPriceVariants)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_payment",
		Description: "Record a manual payment for a buyer. Sends the purchase receipt.",
	}, h.mcpCreatePayment)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpCreateNonce(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CreateNonceInput,
) (*mcp.CallToolResult, CreateNonceOutput, error) {
	return nil, CreateNonceOutput{
		Nonce: h.Nonces.Create(purchase.NonceAction, h.MCPOperator),
	}, nil
}

func (h *Handler) mcpListProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListProductsInput,
) (*mcp.CallToolResult, ListProductsOutput, error) {
	products, err := h.Payments.Products(ctx)
	if err != nil {
		return nil, ListProductsOutput{}, h.mcpError(ctx, err)
	}
	out := ListProductsOutput{Products: make([]MCPProduct, len(products))}
	for i, p := range products {
		out.Products[i] = MCPProduct{
			ID:       p.ID,
			Title:    p.Title,
			Price:    p.Price.String(),
			Variants: toMCPVariants(p.VariablePrices),
		}
	}
	return nil, out, nil
}

func (h *Handler) mcpPriceVariants(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input PriceVariantsInput,
) (*mcp.CallToolResult, PriceVariantsOutput, error) {
	if input.DownloadID <= 0 {
		return nil, PriceVariantsOutput{}, fmt.Errorf("download_id is required")
	}

	variants, err := h.Payments.PriceVariants(ctx, input.Nonce, h.MCPOperator, input.DownloadID)
	if err != nil {
		return nil, PriceVariantsOutput{}, h.mcpError(ctx, err)
	}
	out := PriceVariantsOutput{Variants: toMCPVariants(variants)}
	if out.Variants == nil {
		out.Variants = []MCPVariant{}
	}
	return nil, out, nil
}

func (h *Handler) mcpCreatePayment(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CreatePaymentInput,
) (*mcp.CallToolResult, PaymentOutput, error) {
	amount, err := purchase.ParseAmount(input.Amount)
	if err != nil {
		return nil, PaymentOutput{}, h.mcpError(ctx, err)
	}

	downloads := make([]model.LineItemInput, len(input.Downloads))
	for i, d := range input.Downloads {
		downloads[i] = model.LineItemInput{ProductID: d.ID}
		if d.PriceID != "" {
			priceID := d.PriceID
			downloads[i].PriceID = &priceID
		}
	}

	order, err := h.Payments.CreatePayment(ctx, &purchase.CreatePaymentRequest{
		Operator:  h.MCPOperator,
		Nonce:     input.Nonce,
		User:      input.User,
		Amount:    amount,
		Downloads: downloads,
	})
	if err != nil {
		return nil, PaymentOutput{}, h.mcpError(ctx, err)
	}
	return nil, PaymentOutput{
		ID:          order.ID,
		Status:      string(order.Status),
		Total:       order.Total.String(),
		Currency:    order.Currency,
		Email:       order.Email,
		PurchaseKey: order.PurchaseKey,
		Date:        order.CreatedAt.Format(time.RFC3339),
		Items:       len(order.LineItems),
	}, nil
}

func toMCPVariants(variants []model.PriceVariant) []MCPVariant {
	if len(variants) == 0 {
		return nil
	}
	out := make([]MCPVariant, len(variants))
	for i, v := range variants {
		out[i] = MCPVariant{Key: v.Key, Name: v.Name, Amount: v.Amount.String()}
	}
	return out
}

// mcpError converts service errors to MCP-friendly errors.
func (h *Handler) mcpError(ctx context.Context, err error) error {
	apiErr := h.apiError(ctx, err)
	if apiErr.Code == "INTERNAL_ERROR" {
		// Don't leak internal error details
		return fmt.Errorf("internal error")
	}
	return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
}
