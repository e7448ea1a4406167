package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tarsy-labs/mcp-gateway/pkg/llm"
)

// toolsForUser resolves the tool schemas offered to the LLM for this user:
// the bridge's per-user tool listing, narrowed by ACL-based discovery
// filtering. Filtering here is advisory (it keeps obviously-unusable tools
// out of the model's context); the binding enforcement happens again at
// call time in invokeTool, since a tag can be revoked between listing and
// invocation.
func (a *Agent) toolsForUser(ctx context.Context, userEmail string) ([]llm.Tool, error) {
	descriptors, err := a.bridge.GetToolsForUser(ctx, userEmail)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(descriptors))
	byName := make(map[string]int, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
		byName[d.Name] = i
	}

	allowed, err := a.acl.FilterForListing(ctx, names, userEmail)
	if err != nil {
		return nil, err
	}

	tools := make([]llm.Tool, 0, len(allowed))
	for _, name := range allowed {
		d := descriptors[byName[name]]
		var schema map[string]any
		if len(d.InputSchema) > 0 {
			_ = json.Unmarshal(d.InputSchema, &schema)
		}
		tools = append(tools, llm.Tool{Name: d.Name, Description: d.Description, InputSchema: schema})
	}
	return tools, nil
}

// salesFunnelMarker identifies the family of tools scoped to a business
// vertical (e.g. get_sales_funnel). A tool is in the family if its name
// contains this marker.
const salesFunnelMarker = "sales_funnel"

func isSalesFunnelTool(name string) bool {
	return strings.Contains(name, salesFunnelMarker)
}

// locationArgKeys are the tool-argument names canonicalized through the
// location resolver before a call reaches the MCP server.
var locationArgKeys = []string{"location", "locations"}

// preprocessArgs applies argument-marshaling-time scoping (§9 "vertical
// injection at argument-marshaling time"): sales-funnel-family tools get
// the session's vertical injected unless the model already supplied one,
// and any location-shaped argument is canonicalized against the resolver.
// The model-facing tool schema is never touched; only the arguments sent
// on this call are.
func (a *Agent) preprocessArgs(toolName, vertical string, args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}

	for _, key := range locationArgKeys {
		raw, ok := out[key]
		if !ok {
			continue
		}
		out[key] = a.locations.Resolve(toStringSlice(raw))
	}

	if isSalesFunnelTool(toolName) {
		if v, ok := out["vertical"]; !ok || v == "" {
			out["vertical"] = vertical
		}
	}

	return out
}

func toStringSlice(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
