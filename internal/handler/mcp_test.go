package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// jsonrpcRequest is a JSON-RPC 2.0 request structure for testing.
type jsonrpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// jsonrpcResponse is a JSON-RPC 2.0 response structure for testing.
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toolCallParams represents the params for tools/call method.
type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// callToolResult is the expected result structure from a tool call.
type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	IsError bool `json:"isError,omitempty"`
}

func TestMCPServerCreation(t *testing.T) {
	h, _ := testHandler(t, newTestStore())

	if h.NewMCPServer() == nil {
		t.Fatal("NewMCPServer returned nil")
	}
	if h.NewMCPHandler() == nil {
		t.Fatal("NewMCPHandler returned nil")
	}
}

func TestMCPRequiresAuth(t *testing.T) {
	_, mux := testHandler(t, newTestStore())

	req := httptest.NewRequest("POST", "/mcp", strings.NewReader(`{}`))
	setMCPHeaders(req, "")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestMCPToolsList(t *testing.T) {
	_, mux := testHandler(t, newTestStore())
	sessionID := initMCPSession(t, mux)

	resp := mcpRequest(t, mux, sessionID, jsonrpcRequest{JSONRPC: "2.0", ID: 2, Method: "tools/list"})

	var toolsResult struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &toolsResult); err != nil {
		t.Fatalf("Failed to parse tools result: %v", err)
	}

	expectedTools := map[string]bool{
		"create_nonce":       false,
		"list_products":      false,
		"get_price_variants": false,
		"create_payment":     false,
	}
	for _, tool := range toolsResult.Tools {
		if _, ok := expectedTools[tool.Name]; ok {
			expectedTools[tool.Name] = true
		}
	}
	for name, found := range expectedTools {
		if !found {
			t.Errorf("Expected tool %q not found in tools list", name)
		}
	}
}

func TestMCPCreatePayment(t *testing.T) {
	st := newTestStore()
	_, mux := testHandler(t, st)
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "create_nonce", map[string]any{})
	if result.IsError {
		t.Fatalf("create_nonce failed: %+v", result)
	}
	var nonceOut CreateNonceOutput
	if err := json.Unmarshal([]byte(result.Content[0].Text), &nonceOut); err != nil || nonceOut.Nonce == "" {
		t.Fatalf("nonce output = %q, err = %v", result.Content[0].Text, err)
	}

	result = callTool(t, mux, sessionID, "create_payment", map[string]any{
		"user":  "buyer@example.com",
		"nonce": nonceOut.Nonce,
		"downloads": []map[string]any{
			{"id": 10},
			{"id": 20, "price_id": "small"},
		},
	})
	if result.IsError {
		t.Fatalf("create_payment failed: %+v", result)
	}

	var order PaymentOutput
	if err := json.Unmarshal([]byte(result.Content[0].Text), &order); err != nil {
		t.Fatalf("Failed to parse order from result: %v", err)
	}
	if order.ID != 77 || order.Total != "25.00" || order.Status != "complete" || order.Items != 2 {
		t.Errorf("order = %+v", order)
	}
	if len(st.inserted) != 1 {
		t.Errorf("inserted %d orders, want 1", len(st.inserted))
	}
}

func TestMCPCreatePaymentInvalidNonce(t *testing.T) {
	st := newTestStore()
	_, mux := testHandler(t, st)
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "create_payment", map[string]any{
		"user":      "buyer@example.com",
		"nonce":     "forged",
		"downloads": []map[string]any{{"id": 10}},
	})

	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if len(result.Content) == 0 || !strings.Contains(result.Content[0].Text, "INVALID_NONCE") {
		t.Errorf("content = %+v, want INVALID_NONCE", result.Content)
	}
	if len(st.inserted) != 0 {
		t.Error("no order should be inserted")
	}
}

func TestMCPPriceVariants(t *testing.T) {
	h, mux := testHandler(t, newTestStore())
	sessionID := initMCPSession(t, mux)

	result := callTool(t, mux, sessionID, "get_price_variants", map[string]any{
		"download_id": 20,
		"nonce":       validNonce(h),
	})
	if result.IsError {
		t.Fatalf("get_price_variants failed: %+v", result)
	}

	var out PriceVariantsOutput
	if err := json.Unmarshal([]byte(result.Content[0].Text), &out); err != nil {
		t.Fatalf("Failed to parse variants: %v", err)
	}
	if len(out.Variants) != 2 || out.Variants[0].Key != "small" || out.Variants[0].Amount != "15.00" {
		t.Errorf("variants = %+v", out.Variants)
	}
}

// callTool invokes a tool and returns its result.
func callTool(t *testing.T, mux *http.ServeMux, sessionID, name string, args map[string]any) callToolResult {
	t.Helper()

	raw, _ := json.Marshal(args)
	resp := mcpRequest(t, mux, sessionID, jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/call",
		Params:  toolCallParams{Name: name, Arguments: raw},
	})

	var result callToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("Expected content in %s result", name)
	}
	return result
}

// mcpRequest posts one JSON-RPC message and decodes the response.
func mcpRequest(t *testing.T, mux *http.ServeMux, sessionID string, req jsonrpcRequest) jsonrpcResponse {
	t.Helper()

	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, sessionID)
	w := serve(mux, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	jsonData, err := parseSSEResponse(w.Body.String())
	if err != nil {
		t.Fatalf("Failed to parse SSE response: %v", err)
	}
	var resp jsonrpcResponse
	if err := json.Unmarshal(jsonData, &resp); err != nil {
		t.Fatalf("Failed to decode response: %v\nBody: %s", err, string(jsonData))
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	return resp
}

// setMCPHeaders sets the required headers for MCP Streamable HTTP requests.
func setMCPHeaders(req *http.Request, sessionID string) {
	req.Header.Set("Content-Type", "application/json")
	// MCP Streamable HTTP requires Accept header with both json and event-stream
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
}

// parseSSEResponse extracts JSON data from SSE formatted response.
// SSE format: "event: message\ndata: {json}\n\n"
func parseSSEResponse(body string) ([]byte, error) {
	lines := strings.Split(body, "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "data: ") {
			return []byte(strings.TrimPrefix(line, "data: ")), nil
		}
	}
	// If no SSE format found, assume plain JSON
	return []byte(body), nil
}

// initMCPSession initializes an MCP session and returns the session ID.
func initMCPSession(t *testing.T, mux *http.ServeMux) string {
	t.Helper()

	initReq := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]interface{}{
			"protocolVersion": "2025-06-18",
			"clientInfo":      map[string]string{"name": "test", "version": "1.0"},
			"capabilities":    map[string]interface{}{},
		},
	}

	body, _ := json.Marshal(initReq)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, "")
	w := serve(mux, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Failed to initialize MCP session: %s", w.Body.String())
	}

	return w.Header().Get("Mcp-Session-Id")
}
