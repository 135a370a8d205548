// Package toolclient drives the fixed MCP request sequence against an
// OAuth-protected tool server and classifies whatever goes wrong.
package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/oauth2"

	"github.com/jamesprial/mcp-oauth-tools/internal/mcpserver"
)

const (
	DefaultServerURL = "http://127.0.0.1:8000/mcp"
	DefaultMessage   = "Hello from the tool client!"

	EchoToolName     = "echo"
	UserInfoToolName = "get_user_info"

	clientName = "mcp-oauth-tool-client"
)

// Config configures a Runner.
type Config struct {
	ServerURL string

	// TokenSource authorizes every request. Nil sends no Authorization header.
	TokenSource oauth2.TokenSource

	// Base is the underlying transport. Nil uses http.DefaultTransport.
	Base http.RoundTripper

	// ClientVersion is reported as clientInfo.version during initialize.
	ClientVersion string

	Message string
	Out     io.Writer
	Logger  *slog.Logger
}

// Result collects what the sequence produced.
type Result struct {
	ServerInfo      mcp.Implementation
	ProtocolVersion string
	Tools           []mcp.Tool
	Echo            string
	UserInfo        string
}

// Runner executes initialize, ping, tools/list, echo and get_user_info in
// that order and stops at the first failure.
type Runner struct {
	cfg      Config
	recorder *recorder
}

// NewRunner applies defaults to cfg.
func NewRunner(cfg Config) *Runner {
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "dev"
	}
	if cfg.Message == "" {
		cfg.Message = DefaultMessage
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg.TokenSource != nil {
		base = &oauth2.Transport{Source: authTokenSource{src: cfg.TokenSource}, Base: base}
	}

	return &Runner{cfg: cfg, recorder: &recorder{base: base}}
}

// Run executes the sequence. Errors are *StepError values whose Kind is one
// of the package sentinels.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	httpClient := &http.Client{Transport: r.recorder}

	c, err := client.NewStreamableHttpClient(r.cfg.ServerURL, transport.WithHTTPBasicClient(httpClient))
	if err != nil {
		return nil, &StepError{Step: "connect", Kind: ErrTransport, Err: err}
	}
	if err := c.Start(ctx); err != nil {
		return nil, r.fail("connect", err)
	}
	defer func() { _ = c.Close() }()

	result := &Result{}

	if err := r.initialize(ctx, c, result); err != nil {
		return result, err
	}
	if err := r.ping(ctx, c); err != nil {
		return result, err
	}
	if err := r.listTools(ctx, c, result); err != nil {
		return result, err
	}

	echo, err := r.callTool(ctx, c, EchoToolName, map[string]any{"message": r.cfg.Message})
	if err != nil {
		return result, err
	}
	result.Echo = echo
	_, _ = fmt.Fprintf(r.cfg.Out, "\nEcho: %s\n", echo)

	info, err := r.callTool(ctx, c, UserInfoToolName, map[string]any{})
	if err != nil {
		return result, err
	}
	result.UserInfo = info
	_, _ = fmt.Fprintf(r.cfg.Out, "\nUser info:\n%s\n", indentJSON(info))

	return result, nil
}

func (r *Runner) initialize(ctx context.Context, c *client.Client, result *Result) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcpserver.LatestProtocolVersion
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: r.cfg.ClientVersion}
	req.Params.Capabilities = mcp.ClientCapabilities{}

	initResult, err := c.Initialize(ctx, req)
	if err != nil {
		return r.fail("initialize", err)
	}
	r.recorder.take()

	result.ServerInfo = initResult.ServerInfo
	result.ProtocolVersion = initResult.ProtocolVersion
	r.cfg.Logger.Debug("initialized", "server", initResult.ServerInfo.Name, "protocol", initResult.ProtocolVersion)
	_, _ = fmt.Fprintf(r.cfg.Out, "Connected to %s %s (protocol %s)\n",
		initResult.ServerInfo.Name, initResult.ServerInfo.Version, initResult.ProtocolVersion)
	return nil
}

func (r *Runner) ping(ctx context.Context, c *client.Client) error {
	if err := c.Ping(ctx); err != nil {
		return r.fail("ping", err)
	}
	r.recorder.take()
	_, _ = fmt.Fprintln(r.cfg.Out, "Ping: ok")
	return nil
}

func (r *Runner) listTools(ctx context.Context, c *client.Client, result *Result) error {
	list, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return r.fail("tools/list", err)
	}
	r.recorder.take()
	result.Tools = list.Tools

	tw := table.NewWriter()
	tw.SetOutputMirror(r.cfg.Out)
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Available tools")
	tw.AppendHeader(table.Row{"Name", "Description"})
	for _, tool := range list.Tools {
		tw.AppendRow(table.Row{tool.Name, tool.Description})
	}
	tw.Render()
	return nil
}

func (r *Runner) callTool(ctx context.Context, c *client.Client, name string, args map[string]any) (string, error) {
	step := "tools/call " + name

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.CallTool(ctx, req)
	if err != nil {
		return "", r.fail(step, err)
	}
	r.recorder.take()

	text := textContent(res)
	if res.IsError {
		return "", &StepError{Step: step, Kind: ErrToolFailed, Err: fmt.Errorf("%s", text)}
	}
	r.cfg.Logger.Debug("tool call succeeded", "tool", name)
	return text, nil
}

// fail classifies err using what the recorder saw on the wire.
func (r *Runner) fail(step string, err error) error {
	obs := r.recorder.take()
	stepErr := &StepError{Step: step, Kind: obs.kind(), Err: err, Challenge: obs.challenge}
	if stepErr.Kind == ErrAuthentication {
		r.cfg.Logger.Warn("request rejected", "step", step, "status", obs.status)
	}
	return stepErr
}

func textContent(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func indentJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(s), "", "  "); err != nil {
		return s
	}
	return buf.String()
}
