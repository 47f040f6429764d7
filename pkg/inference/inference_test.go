package inference_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/swchat/pkg/chats/chat"
	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/chats/message"
	"github.com/germanamz/swchat/pkg/chats/role"
	"github.com/germanamz/swchat/pkg/inference"
	"github.com/germanamz/swchat/pkg/modeladapter"
	"github.com/germanamz/swchat/pkg/tools/toolbox"
)

var testSettings = inference.Settings{System: "be brief", MaxTokens: 1000, Temperature: 0.2}

var testSpecs = []toolbox.Spec{
	{Name: "getPeople", Description: "people", InputSchema: json.RawMessage(`{"type":"object"}`)},
	{Name: "getStarships", Description: "ships", InputSchema: json.RawMessage(`{"type":"object"}`)},
}

func TestNewPayload_Fields(t *testing.T) {
	c := chat.New(message.NewText(role.User, "Who is Luke?"))

	p := inference.NewPayload(testSettings, testSpecs, c)

	assert.Equal(t, "be brief", p.System)
	assert.Equal(t, 1000, p.MaxTokens)
	assert.InDelta(t, 0.2, p.Temperature, 1e-9)
	assert.Equal(t, testSpecs, p.Tools)
	require.Len(t, p.Messages, 1)
	assert.Equal(t, "Who is Luke?", p.Messages[0].TextContent())
}

func TestNewPayload_Idempotent(t *testing.T) {
	c := chat.New(
		message.NewText(role.User, "Who is Luke?"),
		message.New(role.Assistant, content.ToolUse{ID: "t1", Name: "getPeople", Input: json.RawMessage(`{"people":"Luke"}`)}),
		message.New(role.User, content.ToolResult{ToolUseID: "t1", Content: `{"count":1}`}),
	)

	first := inference.NewPayload(testSettings, testSpecs, c)
	second := inference.NewPayload(testSettings, testSpecs, c)

	assert.Equal(t, first, second)
}

func TestNewPayload_DetachedFromChat(t *testing.T) {
	c := chat.New(message.NewText(role.User, "Hi"))
	specs := append([]toolbox.Spec(nil), testSpecs...)

	p := inference.NewPayload(testSettings, specs, c)

	c.Append(message.NewText(role.Assistant, "Hello"))
	specs[0].Name = "changed"

	assert.Len(t, p.Messages, 1)
	assert.Equal(t, "getPeople", p.Tools[0].Name)
}

func TestNewPayload_NoTools(t *testing.T) {
	p := inference.NewPayload(testSettings, nil, chat.New())
	assert.Nil(t, p.Tools)
	assert.Empty(t, p.Messages)
}

func TestResult_ToolUses(t *testing.T) {
	res := inference.Result{Content: []content.Part{
		content.Text{Text: "Let me check"},
		content.ToolUse{ID: "a", Name: "getPeople"},
		content.ToolUse{ID: "b", Name: "getStarships"},
	}}

	uses := res.ToolUses()
	require.Len(t, uses, 2)
	assert.Equal(t, "a", uses[0].ID)
	assert.Equal(t, "b", uses[1].ID)
	assert.Equal(t, role.Assistant, res.Message().Role)
}

func TestNewError(t *testing.T) {
	assert.NoError(t, inference.NewError("invoke", nil))

	err := inference.NewError("invoke", fmt.Errorf("bedrock: %w", &modeladapter.StatusError{StatusCode: http.StatusForbidden, Body: "denied"}))
	var ie *inference.Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "invoke", ie.Op)
	assert.Equal(t, http.StatusForbidden, ie.StatusCode)
	assert.Contains(t, err.Error(), "inference: invoke:")

	err = inference.NewError("stream", &modeladapter.RateLimitError{})
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, http.StatusTooManyRequests, ie.StatusCode)

	plain := errors.New("connection refused")
	err = inference.NewError("invoke", plain)
	require.ErrorAs(t, err, &ie)
	assert.Zero(t, ie.StatusCode)
	assert.ErrorIs(t, err, plain)
}

func TestNewError_KeepsExisting(t *testing.T) {
	orig := &inference.Error{Op: "stream", StatusCode: 500, Err: errors.New("x")}
	assert.Same(t, orig, inference.NewError("invoke", orig))
}
