package toolbox

import (
	"context"
	"encoding/json"
)

// Handler executes a tool with the given JSON input and returns the serialized
// outcome. A returned error is converted by ToolBox.Call into an error object.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool represents an executable tool: its declaration (Name, Description,
// InputSchema) as sent to the model, plus the Handler that runs it.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Spec is the declaration half of a Tool: what the model is told about it.
type Spec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Spec returns the tool's declaration.
func (t Tool) Spec() Spec {
	return Spec{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
}
