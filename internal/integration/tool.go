package integration

import (
	"context"

	"github.com/weftlabs/weft/internal/registry"
)

// Bind adapts a cached integration tool into the registry.Tool shape so
// downstream handling is uniform with statically registered tools.
func Bind(tool *CachedTool, integ *Integration, d *Dispatcher) registry.Tool {
	return &boundTool{tool: tool, integ: integ, dispatcher: d}
}

type boundTool struct {
	tool       *CachedTool
	integ      *Integration
	dispatcher *Dispatcher
}

func (b *boundTool) ID() string { return b.tool.ID }

func (b *boundTool) Name() string {
	if b.tool.Name != "" {
		return b.tool.Name
	}
	return b.tool.Slug
}

func (b *boundTool) Description() string { return b.tool.Description }

func (b *boundTool) InputSchema() map[string]any { return b.tool.InputSchema }

func (b *boundTool) Execute(ctx context.Context, args map[string]any, _ map[string]any) (any, error) {
	return b.dispatcher.Execute(ctx, b.tool, b.integ, args)
}
