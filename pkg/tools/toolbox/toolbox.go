// Package toolbox provides the tool registry and executor used by the
// tool-resolution loop.
package toolbox

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/logging"
	"github.com/germanamz/swchat/pkg/telemetry"
)

var tracer = otel.Tracer("github.com/germanamz/swchat/pkg/tools/toolbox")

// ToolBox is a registry of tools keyed by name. Tools are reported in
// registration order so payloads built from the same ToolBox are identical.
// A ToolBox is read-only after setup and safe for concurrent Call.
type ToolBox struct {
	tools map[string]Tool
	order []string
}

// New creates a new ToolBox ready for use.
func New() *ToolBox {
	return &ToolBox{
		tools: make(map[string]Tool),
	}
}

// Register adds one or more tools to the ToolBox. If a tool with the same name
// already exists, it is replaced in place.
func (tb *ToolBox) Register(tools ...Tool) {
	for _, t := range tools {
		if _, ok := tb.tools[t.Name]; !ok {
			tb.order = append(tb.order, t.Name)
		}
		tb.tools[t.Name] = t
	}
}

// Get returns a tool by name and a boolean indicating whether it was found.
func (tb *ToolBox) Get(name string) (Tool, bool) {
	t, ok := tb.tools[name]
	return t, ok
}

// Tools returns all registered tools in registration order.
func (tb *ToolBox) Tools() []Tool {
	result := make([]Tool, 0, len(tb.order))
	for _, name := range tb.order {
		result = append(result, tb.tools[name])
	}
	return result
}

// Specs returns the declarations of all registered tools in registration
// order.
func (tb *ToolBox) Specs() []Spec {
	result := make([]Spec, 0, len(tb.order))
	for _, name := range tb.order {
		result = append(result, tb.tools[name].Spec())
	}
	return result
}

// Names returns the names of all registered tools in registration order.
func (tb *ToolBox) Names() []string {
	out := make([]string, len(tb.order))
	copy(out, tb.order)
	return out
}

// Call executes a tool use and returns the matching ToolResult. It never
// fails: unknown tools, handler errors and handler panics all become an
// error object ({"error": "..."}) with IsError set.
func (tb *ToolBox) Call(ctx context.Context, tu content.ToolUse) (result content.ToolResult) {
	ctx, span := tracer.Start(ctx, "tool.call")
	span.SetAttributes(
		attribute.String("tool.name", tu.Name),
		attribute.String("tool.use_id", tu.ID),
	)

	var spanErr error
	defer func() { telemetry.End(span, spanErr) }()

	t, ok := tb.tools[tu.Name]
	if !ok {
		spanErr = fmt.Errorf("unsupported tool: %s", tu.Name)
		return ErrorResult(tu.ID, fmt.Sprintf("Unsupported tool: %s", tu.Name))
	}

	defer func() {
		if r := recover(); r != nil {
			spanErr = fmt.Errorf("tool %q panicked: %v", tu.Name, r)
			logging.FromContext(ctx).ErrorContext(ctx, "tool failed", "tool", tu.Name, "panic", r)
			result = ErrorResult(tu.ID, fmt.Sprintf("Tool '%s' failed: %v", tu.Name, r))
		}
	}()

	input := tu.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}

	out, err := t.Handler(ctx, input)
	if err != nil {
		spanErr = err
		logging.FromContext(ctx).WarnContext(ctx, "tool returned error", "tool", tu.Name, "error", err)
		return ErrorResult(tu.ID, err.Error())
	}

	return content.ToolResult{
		ToolUseID: tu.ID,
		Content:   out,
	}
}

// ErrorResult builds a ToolResult carrying the error object {"error": msg}.
func ErrorResult(toolUseID, msg string) content.ToolResult {
	return content.ToolResult{
		ToolUseID: toolUseID,
		Content:   ErrorContent(msg),
		IsError:   true,
	}
}

// ErrorContent serializes msg as the error object {"error": msg}.
func ErrorContent(msg string) string {
	data, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"unserializable error"}`
	}
	return string(data)
}
