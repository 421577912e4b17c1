package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/weftlabs/weft/internal/logging"
)

// DispatcherConfig tunes a Dispatcher. Zero values pick defaults.
type DispatcherConfig struct {
	// HTTPClient handles hosted calls. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// CallTimeout bounds a single tool call on either family. Defaults
	// to 60 seconds.
	CallTimeout time.Duration
}

// Dispatcher executes cached integration tools per provider family.
type Dispatcher struct {
	client      *http.Client
	callTimeout time.Duration
	log         zerolog.Logger
}

// NewDispatcher builds a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	return &Dispatcher{
		client:      httpClient,
		callTimeout: callTimeout,
		log:         logging.Component("integration"),
	}
}

// Execute runs one tool call through the family the integration record
// selects.
func (d *Dispatcher) Execute(ctx context.Context, tool *CachedTool, integ *Integration, args map[string]any) (any, error) {
	d.log.Debug().
		Str("tool", tool.ID).
		Str("provider", integ.Provider).
		Str("kind", string(integ.Kind)).
		Msg("dispatching integration tool")

	switch integ.Kind {
	case KindRPC:
		return d.executeRPC(ctx, tool, args)
	case KindHosted:
		return d.executeHosted(ctx, tool, integ, args)
	default:
		return nil, fmt.Errorf("unsupported integration kind: %q", integ.Kind)
	}
}

// executeRPC spawns the tool's process from its transport config and
// speaks MCP over stdio for a single call.
func (d *Dispatcher) executeRPC(ctx context.Context, tool *CachedTool, args map[string]any) (any, error) {
	if tool.Transport == nil || tool.Transport.Command == "" {
		return nil, fmt.Errorf("integration tool %s has no transport configuration", tool.ID)
	}

	mcpClient, err := client.NewStdioMCPClient(tool.Transport.Command, transportEnv(tool.Transport.Env), tool.Transport.Args...)
	if err != nil {
		return nil, fmt.Errorf("create MCP client for %s: %w", tool.ID, err)
	}
	defer mcpClient.Close()

	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("start MCP client for %s: %w", tool.ID, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.Capabilities = mcp.ClientCapabilities{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "weft",
		Version: "1.0.0",
	}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("initialize MCP client for %s: %w", tool.ID, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	result, err := mcpClient.CallTool(callCtx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      tool.Slug,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mcp tool error: %w", err)
	}
	return translateResult(result)
}

// transportEnv flattens a transport's env map into the KEY=VALUE form
// the process spawn expects, sorted for stable spawns.
func transportEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// translateResult flattens MCP content blocks into a value: text blocks
// are concatenated, and a JSON object or array payload is decoded so
// downstream mappings can address into it.
func translateResult(result *mcp.CallToolResult) (any, error) {
	raw, err := json.Marshal(result.Content)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	var blocks []map[string]any
	_ = json.Unmarshal(raw, &blocks)

	var sb strings.Builder
	for _, block := range blocks {
		kind, _ := block["type"].(string)
		if kind != "text" {
			continue
		}
		if text, ok := block["text"].(string); ok {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}
	text := sb.String()

	if result.IsError {
		return nil, fmt.Errorf("tool execution failed: %s", text)
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded any
		if json.Unmarshal([]byte(trimmed), &decoded) == nil {
			return decoded, nil
		}
	}
	return text, nil
}

// executeHosted POSTs the provider's execute endpoint with auth
// assembled from the integration record.
func (d *Dispatcher) executeHosted(ctx context.Context, tool *CachedTool, integ *Integration, args map[string]any) (any, error) {
	if integ.BaseURL == "" {
		return nil, fmt.Errorf("integration %s has no base URL", integ.Provider)
	}

	body, err := json.Marshal(map[string]any{"arguments": args})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/toolkits/%s/tools/%s/execute",
		strings.TrimRight(integ.BaseURL, "/"), tool.Toolkit, tool.Slug)

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range integ.Headers {
		req.Header.Set(k, v)
	}
	if err := setAuth(req, integ); err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("integration API error %d: %s", resp.StatusCode, string(respBody))
	}

	var out any
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return out, nil
}

// setAuth turns the stored auth material into request credentials.
func setAuth(req *http.Request, integ *Integration) error {
	switch integ.AuthType {
	case "":
		return nil
	case AuthBearer:
		token := integ.AuthFields["token"]
		if token == "" {
			return fmt.Errorf("integration %s missing bearer token", integ.Provider)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case AuthBasic:
		user := integ.AuthFields["username"]
		pass := integ.AuthFields["password"]
		if user == "" {
			return fmt.Errorf("integration %s missing basic auth username", integ.Provider)
		}
		req.SetBasicAuth(user, pass)
	case AuthHeader:
		for k, v := range integ.AuthFields {
			req.Header.Set(k, v)
		}
	default:
		return fmt.Errorf("unsupported auth type: %q", integ.AuthType)
	}
	return nil
}
