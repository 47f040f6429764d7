// Package content defines the content blocks carried by transcript messages.
//
// Part is a closed union: the only implementations are Text, ToolUse and
// ToolResult. Consumers switch exhaustively over the three variants.
package content

import "encoding/json"

// Part is a content block within a message.
type Part interface {
	PartKind() string
	isPart()
}

// Text is a plain text block.
type Text struct {
	Text string
}

func (t Text) PartKind() string { return "text" }
func (Text) isPart()            {}

// ToolUse is the model's request to invoke a tool. Input holds the raw JSON
// arguments object exactly as the model produced it.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (tu ToolUse) PartKind() string { return "tool_use" }
func (ToolUse) isPart()             {}

// ToolResult holds the serialized outcome of a ToolUse. ToolUseID references
// the ID of the ToolUse it answers.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (tr ToolResult) PartKind() string { return "tool_result" }
func (ToolResult) isPart()             {}
