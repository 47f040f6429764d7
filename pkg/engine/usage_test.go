package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/swchat/pkg/inference"
	"github.com/germanamz/swchat/pkg/inference/inferencetest"
	"github.com/germanamz/swchat/pkg/logging"
	"github.com/germanamz/swchat/pkg/modeladapter/usage"
)

func usageLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	for line := range strings.Lines(buf.String()) {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		if m["msg"] == "request usage" {
			return m
		}
	}
	t.Fatalf("no request usage line in %q", buf.String())
	return nil
}

func TestChat_LogsRequestUsage(t *testing.T) {
	res := inferencetest.Text("Hello there!")
	res.Usage = usage.TokenCount{InputTokens: 1000, OutputTokens: 1000}
	g := &inferencetest.Gateway{Results: []inference.Result{res}}
	e, _ := newTestEngine(t, g)

	var buf bytes.Buffer
	ctx := logging.WithContext(context.Background(), logging.New(logging.Options{Writer: &buf}))

	_, err := e.Chat(ctx, "Hi")
	require.NoError(t, err)

	line := usageLine(t, &buf)
	assert.Equal(t, "chat", line["op"])
	assert.InDelta(t, 2, line["calls"], 0)
	assert.InDelta(t, 0, line["estimated_calls"], 0)
	assert.InDelta(t, 2000, line["tokens_input"], 0)
	assert.InDelta(t, 2000, line["tokens_output"], 0)
	assert.InDelta(t, 0.036, line["estimated_cost"], 1e-9)
}

func TestStream_LogsRequestUsage(t *testing.T) {
	g := &inferencetest.Gateway{
		Results:   []inference.Result{inferencetest.Text("Hi")},
		Fragments: []string{"Hello"},
	}
	e, _ := newTestEngine(t, g)

	var buf bytes.Buffer
	ctx := logging.WithContext(context.Background(), logging.New(logging.Options{Writer: &buf}))

	require.NoError(t, e.Stream(ctx, "Hi", func(Event) error { return nil }))

	line := usageLine(t, &buf)
	assert.Equal(t, "stream", line["op"])
	assert.InDelta(t, 2, line["calls"], 0)
	assert.InDelta(t, 2, line["estimated_calls"], 0)
}

func TestTrackUsage_NoCallsNoLog(t *testing.T) {
	e, _ := newTestEngine(t, &inferencetest.Gateway{})

	var buf bytes.Buffer
	ctx := logging.WithContext(context.Background(), logging.New(logging.Options{Writer: &buf}))

	_, done := e.trackUsage(ctx, "chat")
	done()

	assert.Empty(t, buf.String())
}
