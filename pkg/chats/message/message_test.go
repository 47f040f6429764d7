package message

import (
	"encoding/json"
	"testing"

	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/chats/role"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	msg := New(role.User, content.Text{Text: "hello"}, content.ToolResult{ToolUseID: "t1"})

	assert.Equal(t, role.User, msg.Role)
	assert.Len(t, msg.Parts, 2)
}

func TestNewText(t *testing.T) {
	msg := NewText(role.Assistant, "hi there")

	assert.Equal(t, role.Assistant, msg.Role)
	assert.Len(t, msg.Parts, 1)
	assert.Equal(t, "hi there", msg.Parts[0].(content.Text).Text)
}

func TestMessage_TextContent(t *testing.T) {
	msg := New(role.Assistant,
		content.Text{Text: "hello "},
		content.ToolUse{ID: "t1", Name: "getPeople"},
		content.Text{Text: "world"},
	)

	assert.Equal(t, "hello world", msg.TextContent())
}

func TestMessage_TextContent_NoParts(t *testing.T) {
	msg := New(role.User)
	assert.Empty(t, msg.TextContent())
}

func TestMessage_FirstText(t *testing.T) {
	msg := New(role.Assistant,
		content.ToolUse{ID: "t1", Name: "getPeople"},
		content.Text{Text: "first"},
		content.Text{Text: "second"},
	)

	text, ok := msg.FirstText()
	assert.True(t, ok)
	assert.Equal(t, "first", text)
}

func TestMessage_FirstText_None(t *testing.T) {
	msg := New(role.Assistant, content.ToolUse{ID: "t1"})

	_, ok := msg.FirstText()
	assert.False(t, ok)
}

func TestMessage_ToolUses(t *testing.T) {
	tu1 := content.ToolUse{ID: "1", Name: "getPeople", Input: json.RawMessage(`{"people":"Luke"}`)}
	tu2 := content.ToolUse{ID: "2", Name: "getStarships", Input: json.RawMessage(`{"starships":"X-wing"}`)}
	msg := New(role.Assistant,
		content.Text{Text: "let me check"},
		tu1,
		tu2,
	)

	uses := msg.ToolUses()
	assert.Len(t, uses, 2)
	assert.Equal(t, tu1, uses[0])
	assert.Equal(t, tu2, uses[1])
}

func TestMessage_ToolUses_None(t *testing.T) {
	msg := NewText(role.User, "hello")
	assert.Empty(t, msg.ToolUses())
}

func TestMessage_ToolResults(t *testing.T) {
	msg := New(role.User,
		content.ToolResult{ToolUseID: "1", Content: "a"},
		content.ToolResult{ToolUseID: "2", Content: "b", IsError: true},
	)

	results := msg.ToolResults()
	assert.Len(t, results, 2)
	assert.Equal(t, "1", results[0].ToolUseID)
	assert.True(t, results[1].IsError)
}
