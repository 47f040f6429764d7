// Package message provides the Message type: a role plus an ordered list of
// content blocks.
package message

import (
	"strings"

	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/chats/role"
)

// Message is a single turn of a transcript.
type Message struct {
	Role  role.Role
	Parts []content.Part
}

// New creates a Message with the given role and content blocks.
func New(r role.Role, parts ...content.Part) Message {
	return Message{Role: r, Parts: parts}
}

// NewText creates a Message holding a single Text block.
func NewText(r role.Role, text string) Message {
	return New(r, content.Text{Text: text})
}

// TextContent concatenates the text of all Text blocks.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(content.Text); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// FirstText returns the text of the first Text block. The bool is false when
// the message has no Text block.
func (m Message) FirstText() (string, bool) {
	for _, p := range m.Parts {
		if t, ok := p.(content.Text); ok {
			return t.Text, true
		}
	}
	return "", false
}

// ToolUses returns the ToolUse blocks in their original order.
func (m Message) ToolUses() []content.ToolUse {
	var out []content.ToolUse
	for _, p := range m.Parts {
		if tu, ok := p.(content.ToolUse); ok {
			out = append(out, tu)
		}
	}
	return out
}

// ToolResults returns the ToolResult blocks in their original order.
func (m Message) ToolResults() []content.ToolResult {
	var out []content.ToolResult
	for _, p := range m.Parts {
		if tr, ok := p.(content.ToolResult); ok {
			out = append(out, tr)
		}
	}
	return out
}
