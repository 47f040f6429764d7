package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/swchat/pkg/chats/chat"
	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/chats/message"
	"github.com/germanamz/swchat/pkg/chats/role"
	"github.com/germanamz/swchat/pkg/inference"
	"github.com/germanamz/swchat/pkg/inference/inferencetest"
	"github.com/germanamz/swchat/pkg/tools/toolbox"
)

// --- test helpers ---

var testSettings = inference.Settings{System: "fan", MaxTokens: 100, Temperature: 0.2}

// newSleepToolBox registers a tool that answers with its input after
// sleeping for the number of milliseconds in input.delay.
func newSleepToolBox(calls *atomic.Int32) *toolbox.ToolBox {
	tb := toolbox.New()
	tb.Register(toolbox.Tool{
		Name:        "sleepy",
		Description: "Echoes input after a delay",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			calls.Add(1)

			var in struct {
				Delay int `json:"delay"`
			}
			_ = json.Unmarshal(input, &in)

			select {
			case <-time.After(time.Duration(in.Delay) * time.Millisecond):
			case <-ctx.Done():
				return "", ctx.Err()
			}

			return string(input), nil
		},
	})
	return tb
}

func use(id string, delay int) content.ToolUse {
	input, _ := json.Marshal(map[string]int{"delay": delay})
	return content.ToolUse{ID: id, Name: "sleepy", Input: input}
}

func newChat() *chat.Chat {
	return chat.New(message.NewText(role.User, "Who is Luke?"))
}

// --- Resolve tests ---

func TestResolve_NoToolUse(t *testing.T) {
	var calls atomic.Int32
	g := &inferencetest.Gateway{Results: []inference.Result{inferencetest.Text("Hello there")}}
	r := New(g, newSleepToolBox(&calls), Options{Settings: testSettings, MaxRounds: DefaultMaxRounds})

	c := newChat()
	res, err := r.Resolve(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Len())
	assert.Same(t, c, res.Chat)
	assert.Equal(t, []string{}, res.ToolsUsed)
	assert.Zero(t, res.Rounds)
	assert.False(t, res.Truncated)
	assert.Equal(t, inferencetest.Text("Hello there"), res.Last)
	assert.Len(t, g.Invokes(), 1)
	assert.Zero(t, calls.Load())
}

func TestResolve_OneRoundAppendsTwoMessages(t *testing.T) {
	var calls atomic.Int32
	first := inferencetest.ToolUse("Let me check", use("a", 30), use("b", 0), use("c", 15))
	g := &inferencetest.Gateway{Results: []inference.Result{first, inferencetest.Text("Luke is a Jedi")}}
	r := New(g, newSleepToolBox(&calls), Options{Settings: testSettings})

	c := newChat()
	res, err := r.Resolve(context.Background(), c)
	require.NoError(t, err)

	require.Equal(t, 3, c.Len())
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, []string{"sleepy", "sleepy", "sleepy"}, res.ToolsUsed)
	assert.Equal(t, inferencetest.Text("Luke is a Jedi"), res.Last)

	msgs := c.Messages()
	assistant := msgs[1]
	assert.Equal(t, role.Assistant, assistant.Role)
	assert.Equal(t, first.Content, assistant.Parts)

	results := msgs[2]
	assert.Equal(t, role.User, results.Role)
	trs := results.ToolResults()
	require.Len(t, trs, 3)
	assert.Equal(t, "a", trs[0].ToolUseID)
	assert.Equal(t, "b", trs[1].ToolUseID)
	assert.Equal(t, "c", trs[2].ToolUseID)
	assert.JSONEq(t, `{"delay":30}`, trs[0].Content)
	for _, tr := range trs {
		assert.False(t, tr.IsError)
	}
}

func TestResolve_ToolsRunConcurrently(t *testing.T) {
	var calls atomic.Int32
	g := &inferencetest.Gateway{Results: []inference.Result{
		inferencetest.ToolUse("", use("a", 100), use("b", 100), use("c", 100)),
		inferencetest.Text("done"),
	}}
	r := New(g, newSleepToolBox(&calls), Options{Settings: testSettings})

	start := time.Now()
	_, err := r.Resolve(context.Background(), newChat())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestResolve_PayloadsCarryTranscript(t *testing.T) {
	var calls atomic.Int32
	g := &inferencetest.Gateway{Results: []inference.Result{
		inferencetest.ToolUse("", use("a", 0)),
		inferencetest.Text("done"),
	}}
	r := New(g, newSleepToolBox(&calls), Options{Settings: testSettings})

	_, err := r.Resolve(context.Background(), newChat())
	require.NoError(t, err)

	payloads := g.Invokes()
	require.Len(t, payloads, 2)
	assert.Len(t, payloads[0].Messages, 1)
	assert.Len(t, payloads[1].Messages, 3)
	assert.Equal(t, "fan", payloads[1].System)
	require.Len(t, payloads[1].Tools, 1)
	assert.Equal(t, "sleepy", payloads[1].Tools[0].Name)
}

func TestResolve_MultipleRounds(t *testing.T) {
	var calls atomic.Int32
	g := &inferencetest.Gateway{Results: []inference.Result{
		inferencetest.ToolUse("", use("a", 0)),
		inferencetest.ToolUse("", use("b", 0), use("c", 0)),
		inferencetest.Text("done"),
	}}
	r := New(g, newSleepToolBox(&calls), Options{Settings: testSettings, MaxRounds: DefaultMaxRounds})

	c := newChat()
	res, err := r.Resolve(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, 5, c.Len())
	assert.Equal(t, 2, res.Rounds)
	assert.Len(t, res.ToolsUsed, 3)
	assert.False(t, res.Truncated)
}

func TestResolve_UnknownToolBecomesErrorResult(t *testing.T) {
	var calls atomic.Int32
	g := &inferencetest.Gateway{Results: []inference.Result{
		inferencetest.ToolUse("", content.ToolUse{ID: "x", Name: "getPlanets"}),
		inferencetest.Text("done"),
	}}
	r := New(g, newSleepToolBox(&calls), Options{Settings: testSettings})

	c := newChat()
	res, err := r.Resolve(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, []string{"getPlanets"}, res.ToolsUsed)
	trs := c.Messages()[2].ToolResults()
	require.Len(t, trs, 1)
	assert.True(t, trs[0].IsError)
	assert.JSONEq(t, `{"error":"Unsupported tool: getPlanets"}`, trs[0].Content)
}

func TestResolve_RoundCapTruncates(t *testing.T) {
	var calls atomic.Int32
	g := &inferencetest.Gateway{Results: []inference.Result{inferencetest.ToolUse("", use("a", 0))}}
	r := New(g, newSleepToolBox(&calls), Options{Settings: testSettings, MaxRounds: 2})

	c := newChat()
	res, err := r.Resolve(context.Background(), c)
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.Equal(t, 2, res.Rounds)
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, g.Invokes(), 3)
	assert.NotEmpty(t, res.Last.ToolUses())
}

func TestResolve_InvokeErrorOnFirstCall(t *testing.T) {
	boom := errors.New("boom")
	g := &inferencetest.Gateway{InvokeErr: boom}
	var calls atomic.Int32
	r := New(g, newSleepToolBox(&calls), Options{Settings: testSettings})

	c := newChat()
	res, err := r.Resolve(context.Background(), c)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{}, res.ToolsUsed)
}

// failingGateway returns the scripted first result and fails afterwards.
type failingGateway struct {
	inferencetest.Gateway
	err error
}

func (g *failingGateway) Invoke(ctx context.Context, p inference.Payload) (inference.Result, error) {
	if len(g.Invokes()) > 0 {
		return inference.Result{}, g.err
	}
	return g.Gateway.Invoke(ctx, p)
}

func TestResolve_InvokeErrorAfterRound(t *testing.T) {
	boom := errors.New("upstream down")
	g := &failingGateway{err: boom}
	g.Results = []inference.Result{inferencetest.ToolUse("", use("a", 0))}
	var calls atomic.Int32
	r := New(g, newSleepToolBox(&calls), Options{Settings: testSettings})

	c := newChat()
	res, err := r.Resolve(context.Background(), c)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, 3, c.Len())
}

func TestResolveFrom_ReusesFirstResult(t *testing.T) {
	var calls atomic.Int32
	g := &inferencetest.Gateway{Results: []inference.Result{inferencetest.Text("final")}}
	r := New(g, newSleepToolBox(&calls), Options{Settings: testSettings})

	c := newChat()
	first := inferencetest.ToolUse("Let me check", use("a", 0))
	res, err := r.ResolveFrom(context.Background(), c, first)
	require.NoError(t, err)

	assert.Len(t, g.Invokes(), 1)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, inferencetest.Text("final"), res.Last)
}

func TestResolveFrom_NoToolsMakesNoCalls(t *testing.T) {
	var calls atomic.Int32
	g := &inferencetest.Gateway{}
	r := New(g, newSleepToolBox(&calls), Options{Settings: testSettings})

	res, err := r.ResolveFrom(context.Background(), newChat(), inferencetest.Text("Hi"))
	require.NoError(t, err)

	assert.Empty(t, g.Invokes())
	assert.Zero(t, res.Rounds)
}

func TestResolveFrom_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	g := &inferencetest.Gateway{}
	r := New(g, newSleepToolBox(&calls), Options{Settings: testSettings})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newChat()
	_, err := r.ResolveFrom(ctx, c, inferencetest.ToolUse("", use("a", 0)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, c.Len())
	assert.Zero(t, calls.Load())
}

func TestPayload_Idempotent(t *testing.T) {
	var calls atomic.Int32
	r := New(&inferencetest.Gateway{}, newSleepToolBox(&calls), Options{Settings: testSettings})

	c := newChat()
	assert.Equal(t, r.Payload(c), r.Payload(c))
}
