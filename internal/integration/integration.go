// Package integration resolves tool ids of the form
// provider_toolkitSlug_toolSlug against a pluggable store of cached
// integration tools and dispatches execution per provider family:
// RPC-style tools over a stdio MCP transport, hosted tools over HTTP
// with auth assembled from the stored integration record.
package integration

import (
	"context"
	"errors"
	"strings"
)

// Not-found sentinels. Store implementations return them (possibly
// wrapped) so callers can treat a miss as one more exhausted lookup
// tier rather than a hard failure.
var (
	ErrNotCached     = errors.New("integration tool not cached")
	ErrNoIntegration = errors.New("integration not configured")
)

// Kind is the provider family an integration dispatches through.
type Kind string

const (
	// KindRPC runs the tool as a local process speaking MCP over stdio.
	KindRPC Kind = "rpc"

	// KindHosted calls the provider's hosted execute endpoint.
	KindHosted Kind = "hosted"
)

// AuthType selects how stored auth fields become request credentials.
type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthHeader AuthType = "header"
)

// ToolID is a parsed integration tool id.
type ToolID struct {
	Provider string
	Toolkit  string
	Slug     string
}

// String reassembles the underscore-joined id.
func (id ToolID) String() string {
	return id.Provider + "_" + id.Toolkit + "_" + id.Slug
}

// ParseToolID splits an id against the provider_toolkitSlug_toolSlug
// grammar. The tool slug may itself contain underscores; provider and
// toolkit may not. Ids with fewer than three segments or characters
// outside the lowercase slug alphabet are not integration ids.
func ParseToolID(id string) (ToolID, bool) {
	parts := strings.Split(id, "_")
	if len(parts) < 3 {
		return ToolID{}, false
	}
	for _, part := range parts {
		if !slugSegment(part) {
			return ToolID{}, false
		}
	}
	return ToolID{
		Provider: parts[0],
		Toolkit:  parts[1],
		Slug:     strings.Join(parts[2:], "_"),
	}, true
}

func slugSegment(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// Transport describes how to launch an RPC-style tool's process.
type Transport struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// CachedTool is the stored metadata for one integration tool.
type CachedTool struct {
	ID          string         `json:"id"`
	Provider    string         `json:"provider"`
	Toolkit     string         `json:"toolkit"`
	Slug        string         `json:"slug"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`

	// Transport is required for RPC-family tools.
	Transport *Transport `json:"transport,omitempty"`
}

// Integration is the stored per-provider record: family, endpoint and
// the auth material hosted calls are assembled from.
type Integration struct {
	Provider   string            `json:"provider"`
	Kind       Kind              `json:"kind"`
	BaseURL    string            `json:"base_url,omitempty"`
	AuthType   AuthType          `json:"auth_type,omitempty"`
	AuthFields map[string]string `json:"auth_fields,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// Store supplies cached tool metadata and integration records. Lookup
// misses are reported as ErrNotCached / ErrNoIntegration.
type Store interface {
	CachedTool(ctx context.Context, id ToolID) (*CachedTool, error)
	Integration(ctx context.Context, provider string) (*Integration, error)
}
