package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestParseToolID(t *testing.T) {
	tests := []struct {
		id   string
		want ToolID
		ok   bool
	}{
		{"composio_gmail_send-email", ToolID{"composio", "gmail", "send-email"}, true},
		{"composio_github_create_pull_request", ToolID{"composio", "github", "create_pull_request"}, true},
		{"acme_crm2_lookup", ToolID{"acme", "crm2", "lookup"}, true},
		{"gmail_send", ToolID{}, false},
		{"justaslug", ToolID{}, false},
		{"Composio_gmail_send", ToolID{}, false},
		{"composio__send", ToolID{}, false},
		{"composio_gmail_", ToolID{}, false},
		{"composio_gm ail_send", ToolID{}, false},
		{"", ToolID{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseToolID(tt.id)
		if ok != tt.ok {
			t.Errorf("ParseToolID(%q) ok = %v, want %v", tt.id, ok, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseToolID(%q) = %+v, want %+v", tt.id, got, tt.want)
		}
	}
}

func TestToolIDString(t *testing.T) {
	id := ToolID{Provider: "composio", Toolkit: "github", Slug: "create_pull_request"}
	if got := id.String(); got != "composio_github_create_pull_request" {
		t.Errorf("String() = %q", got)
	}
}

func TestExecuteHosted(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messageId": "m-123"}`))
	}))
	defer srv.Close()

	d := NewDispatcher(DispatcherConfig{HTTPClient: srv.Client()})
	tool := &CachedTool{ID: "composio_gmail_send", Provider: "composio", Toolkit: "gmail", Slug: "send"}
	integ := &Integration{
		Provider:   "composio",
		Kind:       KindHosted,
		BaseURL:    srv.URL,
		AuthType:   AuthBearer,
		AuthFields: map[string]string{"token": "tok-1"},
	}

	out, err := d.Execute(context.Background(), tool, integ, map[string]any{"to": "x@y.z"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if gotPath != "/toolkits/gmail/tools/send/execute" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("auth = %q", gotAuth)
	}
	args, _ := gotBody["arguments"].(map[string]any)
	if args["to"] != "x@y.z" {
		t.Errorf("arguments lost: %v", gotBody)
	}
	result, _ := out.(map[string]any)
	if result["messageId"] != "m-123" {
		t.Errorf("result = %v", out)
	}
}

func TestExecuteHostedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such toolkit", http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDispatcher(DispatcherConfig{HTTPClient: srv.Client()})
	tool := &CachedTool{ID: "p_tk_t", Toolkit: "tk", Slug: "t"}

	tests := []struct {
		name    string
		integ   *Integration
		wantSub string
	}{
		{
			"http status propagates",
			&Integration{Provider: "p", Kind: KindHosted, BaseURL: srv.URL},
			"integration API error 404",
		},
		{
			"missing base url",
			&Integration{Provider: "p", Kind: KindHosted},
			"no base URL",
		},
		{
			"missing bearer token",
			&Integration{Provider: "p", Kind: KindHosted, BaseURL: srv.URL, AuthType: AuthBearer},
			"missing bearer token",
		},
		{
			"unknown auth type",
			&Integration{Provider: "p", Kind: KindHosted, BaseURL: srv.URL, AuthType: "oauth9"},
			"unsupported auth type",
		},
		{
			"unknown kind",
			&Integration{Provider: "p", Kind: "carrier-pigeon"},
			"unsupported integration kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Execute(context.Background(), tool, tt.integ, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestExecuteHostedAuthVariants(t *testing.T) {
	var user, pass string
	var ok bool
	var custom string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		custom = r.Header.Get("X-Api-Key")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	d := NewDispatcher(DispatcherConfig{HTTPClient: srv.Client()})
	tool := &CachedTool{ID: "p_tk_t", Toolkit: "tk", Slug: "t"}

	basic := &Integration{
		Provider: "p", Kind: KindHosted, BaseURL: srv.URL,
		AuthType:   AuthBasic,
		AuthFields: map[string]string{"username": "u1", "password": "p1"},
	}
	if _, err := d.Execute(context.Background(), tool, basic, nil); err != nil {
		t.Fatalf("basic: %v", err)
	}
	if !ok || user != "u1" || pass != "p1" {
		t.Errorf("basic auth = %q/%q (%v)", user, pass, ok)
	}

	header := &Integration{
		Provider: "p", Kind: KindHosted, BaseURL: srv.URL,
		AuthType:   AuthHeader,
		AuthFields: map[string]string{"X-Api-Key": "k-9"},
	}
	if _, err := d.Execute(context.Background(), tool, header, nil); err != nil {
		t.Fatalf("header: %v", err)
	}
	if custom != "k-9" {
		t.Errorf("header auth = %q", custom)
	}
}

func TestExecuteRPCRequiresTransport(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	tool := &CachedTool{ID: "p_tk_t", Toolkit: "tk", Slug: "t"}
	integ := &Integration{Provider: "p", Kind: KindRPC}

	_, err := d.Execute(context.Background(), tool, integ, nil)
	if err == nil || !strings.Contains(err.Error(), "no transport configuration") {
		t.Errorf("err = %v", err)
	}
}

func TestTransportEnv(t *testing.T) {
	got := transportEnv(map[string]string{
		"COMPOSIO_TOOLKIT": "gmail",
		"API_KEY":          "k-1",
	})
	want := []string{"API_KEY=k-1", "COMPOSIO_TOOLKIT=gmail"}
	if len(got) != len(want) {
		t.Fatalf("env = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("env = %v, want %v", got, want)
		}
	}

	if got := transportEnv(nil); len(got) != 0 {
		t.Errorf("nil env should flatten empty, got %v", got)
	}
}

func TestTranslateResult(t *testing.T) {
	plain := mcp.NewToolResultText("all done")
	out, err := translateResult(plain)
	if err != nil || out != "all done" {
		t.Errorf("plain text = %v, %v", out, err)
	}

	structured := mcp.NewToolResultText(`{"count": 3}`)
	out, err = translateResult(structured)
	if err != nil {
		t.Fatalf("structured: %v", err)
	}
	m, _ := out.(map[string]any)
	if m["count"] != float64(3) {
		t.Errorf("structured = %v", out)
	}

	failed := mcp.NewToolResultError("boom")
	if _, err := translateResult(failed); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("error result = %v", err)
	}
}

func TestBind(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	tool := &CachedTool{
		ID:          "composio_gmail_send",
		Toolkit:     "gmail",
		Slug:        "send",
		Description: "sends mail",
		InputSchema: map[string]any{"type": "object"},
	}
	bound := Bind(tool, &Integration{Provider: "composio", Kind: KindHosted}, d)

	if bound.ID() != "composio_gmail_send" {
		t.Errorf("ID = %q", bound.ID())
	}
	if bound.Name() != "send" {
		t.Errorf("Name should fall back to slug, got %q", bound.Name())
	}
	if bound.Description() != "sends mail" {
		t.Errorf("Description = %q", bound.Description())
	}
	if bound.InputSchema()["type"] != "object" {
		t.Errorf("InputSchema = %v", bound.InputSchema())
	}
}
