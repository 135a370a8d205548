package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

// countingTool records invocations so tests can assert nothing ran.
type countingTool struct {
	name  string
	calls atomic.Int32
	err   error
}

func (c *countingTool) Definition() mcp.Tool {
	return mcp.NewTool(c.name,
		mcp.WithDescription("Counts calls."),
		mcp.WithString("text", mcp.Required()),
		mcp.WithNumber("count"),
	)
}

func (c *countingTool) Execute(_ context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return mcp.NewToolResultText(args["text"].(string)), nil
}

type staticResource struct {
	uri  string
	text string
	err  error
}

func (s *staticResource) Definition() mcp.Resource {
	return mcp.NewResource(s.uri, "static")
}

func (s *staticResource) Read(context.Context) (*mcp.TextResourceContents, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &mcp.TextResourceContents{URI: s.uri, MIMEType: "text/plain", Text: s.text}, nil
}

func newTestHandler(t *testing.T, tools ...Tool) Handler {
	t.Helper()
	handler, toolRegistry, resourceRegistry := NewServices(&Config{ServerName: "test-server", ServerVersion: "1.0.0"})
	for _, tool := range tools {
		if err := toolRegistry.RegisterTool(tool); err != nil {
			t.Fatalf("RegisterTool() unexpected error: %v", err)
		}
	}
	if err := resourceRegistry.RegisterResource(&staticResource{uri: "test://ok", text: "hello"}); err != nil {
		t.Fatalf("RegisterResource() unexpected error: %v", err)
	}
	if err := resourceRegistry.RegisterResource(&staticResource{uri: "test://broken", err: errors.New("disk gone")}); err != nil {
		t.Fatalf("RegisterResource() unexpected error: %v", err)
	}
	return handler
}

func call(t *testing.T, h Handler, method string, params any) *Response {
	t.Helper()
	req := &Request{JSONRPC: JSONRPCVersion, ID: 1, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("failed to marshal params: %v", err)
		}
		req.Params = raw
	}
	resp, err := h.HandleRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleRequest(%s) unexpected error: %v", method, err)
	}
	if resp == nil {
		t.Fatalf("HandleRequest(%s) returned nil response", method)
	}
	return resp
}

// roundTrip re-decodes a result through JSON, as a client would see it.
func roundTrip(t *testing.T, result any, into any) {
	t.Helper()
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		t.Fatalf("failed to unmarshal result %s: %v", data, err)
	}
}

func TestHandler_Initialize(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	tests := []struct {
		name        string
		requested   string
		wantVersion string
	}{
		{"supported version echoed", "2024-11-05", "2024-11-05"},
		{"unknown version gets latest", "1999-01-01", LatestProtocolVersion},
		{"no version gets latest", "", LatestProtocolVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := call(t, h, "initialize", map[string]any{
				"protocolVersion": tt.requested,
				"clientInfo":      map[string]string{"name": "test", "version": "0"},
			})
			if resp.IsError() {
				t.Fatalf("initialize error: %v", resp.Error)
			}

			var result InitializeResult
			roundTrip(t, resp.Result, &result)
			if result.ProtocolVersion != tt.wantVersion {
				t.Errorf("ProtocolVersion = %q, want %q", result.ProtocolVersion, tt.wantVersion)
			}
			if result.ServerInfo.Name != "test-server" {
				t.Errorf("ServerInfo.Name = %q, want test-server", result.ServerInfo.Name)
			}
			if result.Capabilities.Tools == nil {
				t.Error("Capabilities.Tools should be advertised")
			}
		})
	}
}

func TestHandler_Ping(t *testing.T) {
	t.Parallel()

	resp := call(t, newTestHandler(t), "ping", nil)
	if resp.IsError() {
		t.Fatalf("ping error: %v", resp.Error)
	}
	data, _ := json.Marshal(resp.Result)
	if string(data) != "{}" {
		t.Errorf("ping result = %s, want {}", data)
	}
}

func TestHandler_Notification(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	for _, method := range []string{"notifications/initialized", "notifications/cancelled", "tools/list"} {
		resp, err := h.HandleRequest(context.Background(), &Request{JSONRPC: JSONRPCVersion, Method: method})
		if err != nil {
			t.Fatalf("HandleRequest(%s) unexpected error: %v", method, err)
		}
		if resp != nil {
			t.Errorf("HandleRequest(%s) without id = %+v, want nil", method, resp)
		}
	}
}

func TestHandler_Envelope(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	tests := []struct {
		name     string
		req      *Request
		wantCode int
	}{
		{"nil request", nil, CodeInvalidRequest},
		{"wrong version", &Request{JSONRPC: "1.0", ID: 1, Method: "ping"}, CodeInvalidRequest},
		{"missing method", &Request{JSONRPC: JSONRPCVersion, ID: 1}, CodeInvalidRequest},
		{"unknown method", &Request{JSONRPC: JSONRPCVersion, ID: 1, Method: "prompts/list"}, CodeMethodNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := h.HandleRequest(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("HandleRequest() unexpected error: %v", err)
			}
			if !resp.IsError() || resp.Error.Code != tt.wantCode {
				t.Errorf("HandleRequest() = %+v, want error code %d", resp, tt.wantCode)
			}
		})
	}
}

func TestHandler_ToolsList_Sorted(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &countingTool{name: "zeta"}, &countingTool{name: "alpha"}, &countingTool{name: "mid"})

	var result mcp.ListToolsResult
	roundTrip(t, call(t, h, "tools/list", nil).Result, &result)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	if strings.Join(names, ",") != "alpha,mid,zeta" {
		t.Errorf("tools/list names = %v, want [alpha mid zeta]", names)
	}
	if result.Tools[0].InputSchema.Type != "object" {
		t.Errorf("InputSchema.Type = %q, want object", result.Tools[0].InputSchema.Type)
	}
}

func TestHandler_ToolsCall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		params    any
		toolErr   error
		wantCode  int
		wantCalls int32
		wantText  string
		wantIsErr bool
	}{
		{
			name:      "success",
			params:    map[string]any{"name": "counter", "arguments": map[string]any{"text": "hi"}},
			wantCalls: 1,
			wantText:  "hi",
		},
		{
			name:      "unknown tool",
			params:    map[string]any{"name": "nope", "arguments": map[string]any{}},
			wantCode:  CodeToolNotFound,
			wantCalls: 0,
		},
		{
			name:      "missing required argument",
			params:    map[string]any{"name": "counter", "arguments": map[string]any{}},
			wantCode:  CodeInvalidParams,
			wantCalls: 0,
		},
		{
			name:      "arguments not an object",
			params:    map[string]any{"name": "counter", "arguments": []string{"hi"}},
			wantCode:  CodeInvalidParams,
			wantCalls: 0,
		},
		{
			name:      "wrong argument type",
			params:    map[string]any{"name": "counter", "arguments": map[string]any{"text": 42}},
			wantCode:  CodeInvalidParams,
			wantCalls: 0,
		},
		{
			name:      "missing name",
			params:    map[string]any{"arguments": map[string]any{"text": "hi"}},
			wantCode:  CodeInvalidParams,
			wantCalls: 0,
		},
		{
			name:      "tool failure is a result",
			params:    map[string]any{"name": "counter", "arguments": map[string]any{"text": "hi"}},
			toolErr:   errors.New("backend down"),
			wantCalls: 1,
			wantText:  "backend down",
			wantIsErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tool := &countingTool{name: "counter", err: tt.toolErr}
			resp := call(t, newTestHandler(t, tool), "tools/call", tt.params)

			if got := tool.calls.Load(); got != tt.wantCalls {
				t.Errorf("tool invoked %d times, want %d", got, tt.wantCalls)
			}

			if tt.wantCode != 0 {
				if !resp.IsError() || resp.Error.Code != tt.wantCode {
					t.Fatalf("tools/call = %+v, want error code %d", resp, tt.wantCode)
				}
				return
			}
			if resp.IsError() {
				t.Fatalf("tools/call unexpected error: %v", resp.Error)
			}

			var result struct {
				Content []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"content"`
				IsError bool `json:"isError"`
			}
			roundTrip(t, resp.Result, &result)
			if len(result.Content) != 1 || result.Content[0].Text != tt.wantText {
				t.Errorf("content = %+v, want single text %q", result.Content, tt.wantText)
			}
			if result.IsError != tt.wantIsErr {
				t.Errorf("isError = %v, want %v", result.IsError, tt.wantIsErr)
			}
		})
	}
}

func TestHandler_Resources(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	var list mcp.ListResourcesResult
	roundTrip(t, call(t, h, "resources/list", nil).Result, &list)
	if len(list.Resources) != 2 || list.Resources[0].URI != "test://broken" {
		t.Errorf("resources/list = %+v, want 2 sorted by URI", list.Resources)
	}

	resp := call(t, h, "resources/read", map[string]string{"uri": "test://ok"})
	if resp.IsError() {
		t.Fatalf("resources/read error: %v", resp.Error)
	}
	var read struct {
		Contents []struct {
			URI  string `json:"uri"`
			Text string `json:"text"`
		} `json:"contents"`
	}
	roundTrip(t, resp.Result, &read)
	if len(read.Contents) != 1 || read.Contents[0].Text != "hello" {
		t.Errorf("resources/read contents = %+v", read.Contents)
	}

	if resp := call(t, h, "resources/read", map[string]string{"uri": "test://missing"}); resp.Error == nil || resp.Error.Code != CodeResourceNotFound {
		t.Errorf("resources/read missing = %+v, want %d", resp, CodeResourceNotFound)
	}
	if resp := call(t, h, "resources/read", map[string]string{"uri": "test://broken"}); resp.Error == nil || resp.Error.Code != CodeInternalError {
		t.Errorf("resources/read broken = %+v, want %d", resp, CodeInternalError)
	}
	if resp := call(t, h, "resources/read", map[string]string{}); resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Errorf("resources/read no uri = %+v, want %d", resp, CodeInvalidParams)
	}
}

func TestResponse_NullID(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(&Response{JSONRPC: JSONRPCVersion, Error: NewError(CodeParseError, "parse error", nil)})
	if err != nil {
		t.Fatalf("json.Marshal() unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"id":null`) {
		t.Errorf("error response %s should carry a null id", data)
	}
}

func TestRequest_IDMember(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		body             string
		wantNotification bool
		wantValid        bool
	}{
		{"number id", `{"jsonrpc":"2.0","id":3,"method":"ping"}`, false, true},
		{"string id", `{"jsonrpc":"2.0","id":"x","method":"ping"}`, false, true},
		{"absent id", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, true, true},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"ping"}`, false, false},
		{"boolean id", `{"jsonrpc":"2.0","id":true,"method":"ping"}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var req Request
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("json.Unmarshal() unexpected error: %v", err)
			}
			if got := req.IsNotification(); got != tt.wantNotification {
				t.Errorf("IsNotification() = %v, want %v", got, tt.wantNotification)
			}
			if err := req.Validate(); (err == nil) != tt.wantValid {
				t.Errorf("Validate() error = %v, want valid %v", err, tt.wantValid)
			}
		})
	}
}

func TestHandler_NullIDRejected(t *testing.T) {
	t.Parallel()

	var req Request
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":null,"method":"ping"}`), &req); err != nil {
		t.Fatalf("json.Unmarshal() unexpected error: %v", err)
	}

	resp, err := newTestHandler(t).HandleRequest(context.Background(), &req)
	if err != nil {
		t.Fatalf("HandleRequest() unexpected error: %v", err)
	}
	if resp == nil {
		t.Fatal("HandleRequest() = nil, want an invalid request error")
	}
	if !resp.IsError() || resp.Error.Code != CodeInvalidRequest {
		t.Errorf("HandleRequest() = %+v, want error code %d", resp, CodeInvalidRequest)
	}
}
