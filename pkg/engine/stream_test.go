package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/swchat/pkg/inference"
	"github.com/germanamz/swchat/pkg/inference/inferencetest"
	"github.com/germanamz/swchat/pkg/tools/swapi"
)

type recorder struct {
	events []Event
	failAt int // 1-based index of the emit call that fails; 0 never fails.
}

func (r *recorder) emit(ev Event) error {
	if r.failAt > 0 && len(r.events)+1 == r.failAt {
		return errors.New("client gone")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) json(t *testing.T) []string {
	t.Helper()

	out := make([]string, len(r.events))
	for i, ev := range r.events {
		b, err := json.Marshal(ev)
		require.NoError(t, err)
		out[i] = string(b)
	}
	return out
}

func TestStream_LetMeCheck(t *testing.T) {
	g := &inferencetest.Gateway{
		Results: []inference.Result{
			inferencetest.ToolUse("Let me check", peopleUse("t1", "Luke")),
			inferencetest.Text("Luke is a Jedi."),
		},
		Fragments: []string{"Luke ", "is a Jedi."},
	}
	e, calls := newTestEngine(t, g)

	var rec recorder
	require.NoError(t, e.Stream(context.Background(), "Who is Luke?", rec.emit))

	assert.Equal(t, []string{
		`{"delta":"Let me check"}`,
		`{"tool_event":{"used":true,"names":["getPeople"]}}`,
		`{"delta":"Luke "}`,
		`{"delta":"is a Jedi."}`,
		`{"done":true}`,
	}, rec.json(t))

	// The first call is reused as the loop's first round.
	assert.Len(t, g.Invokes(), 2)
	assert.Equal(t, int32(1), calls.Load())

	streams := g.StreamPayloads()
	require.Len(t, streams, 1)
	assert.Len(t, streams[0].Messages, 3)
	assert.True(t, g.Streams()[0].Closed())
}

func TestStream_NoTools(t *testing.T) {
	g := &inferencetest.Gateway{
		Results:   []inference.Result{inferencetest.Text("Hello!")},
		Fragments: []string{"Hello", "!"},
	}
	e, _ := newTestEngine(t, g)

	var rec recorder
	require.NoError(t, e.Stream(context.Background(), "Hi", rec.emit))

	assert.Equal(t, []string{
		`{"delta":"Hello!"}`,
		`{"tool_event":{"used":false,"names":[]}}`,
		`{"delta":"Hello"}`,
		`{"delta":"!"}`,
		`{"done":true}`,
	}, rec.json(t))
	assert.Len(t, g.Invokes(), 1)
}

func TestStream_LeadingTextStopsAtToolUse(t *testing.T) {
	first := inferencetest.ToolUse("One moment", peopleUse("t1", "Luke"))
	first.Content = append(first.Content, first.Content[0])

	g := &inferencetest.Gateway{Results: []inference.Result{first, inferencetest.Text("ok")}}
	e, _ := newTestEngine(t, g)

	var rec recorder
	require.NoError(t, e.Stream(context.Background(), "Who is Luke?", rec.emit))

	deltas := 0
	for _, ev := range rec.events {
		if ev.Delta != nil {
			deltas++
		}
	}
	assert.Equal(t, 1, deltas)
}

func TestStream_Truncated(t *testing.T) {
	g := &inferencetest.Gateway{
		Results: []inference.Result{
			inferencetest.ToolUse("", peopleUse("t1", "Luke")),
			inferencetest.ToolUse("Luke is a Jedi from Tatooine.", peopleUse("t2", "Leia")),
		},
		Fragments: []string{"never streamed"},
	}
	e, _ := newTestEngine(t, g, func(c *Config) { c.Inference.MaxToolRounds = 1 })

	var rec recorder
	require.NoError(t, e.Stream(context.Background(), "Who is Luke?", rec.emit))

	assert.Equal(t, []string{
		`{"tool_event":{"used":true,"names":["getPeople"],"truncated":true}}`,
		`{"delta":"Luke is a Jedi from Tatooine."}`,
		`{"done":true}`,
	}, rec.json(t))

	assert.Len(t, g.Invokes(), 2)
	assert.Empty(t, g.StreamPayloads())
}

func TestStream_InvokeError(t *testing.T) {
	g := &inferencetest.Gateway{InvokeErr: errors.New("upstream down")}
	e, _ := newTestEngine(t, g)

	var rec recorder
	err := e.Stream(context.Background(), "Hi", rec.emit)
	require.Error(t, err)

	require.Len(t, rec.events, 1)
	assert.Contains(t, rec.events[0].Error, "upstream down")
	assert.True(t, rec.events[0].Terminal())
}

func TestStream_StreamError(t *testing.T) {
	g := &inferencetest.Gateway{
		Results:   []inference.Result{inferencetest.Text("Hi")},
		StreamErr: errors.New("stream refused"),
	}
	e, _ := newTestEngine(t, g)

	var rec recorder
	require.Error(t, e.Stream(context.Background(), "Hi", rec.emit))

	require.Len(t, rec.events, 3)
	assert.NotNil(t, rec.events[1].ToolEvent)
	assert.Contains(t, rec.events[2].Error, "stream refused")
}

func TestStream_FragmentError(t *testing.T) {
	g := &inferencetest.Gateway{
		Results:     []inference.Result{inferencetest.Text("Hi")},
		Fragments:   []string{"partial"},
		FragmentErr: errors.New("connection reset"),
	}
	e, _ := newTestEngine(t, g)

	var rec recorder
	require.Error(t, e.Stream(context.Background(), "Hi", rec.emit))

	last := rec.events[len(rec.events)-1]
	assert.Contains(t, last.Error, "connection reset")
	assert.Equal(t, "partial", *rec.events[len(rec.events)-2].Delta)
	assert.True(t, g.Streams()[0].Closed())
}

func TestStream_EmitFailureStops(t *testing.T) {
	g := &inferencetest.Gateway{
		Results:   []inference.Result{inferencetest.Text("Hi")},
		Fragments: []string{"a", "b"},
	}
	e, _ := newTestEngine(t, g)

	rec := recorder{failAt: 3}
	err := e.Stream(context.Background(), "Hi", rec.emit)
	require.EqualError(t, err, "client gone")

	require.Len(t, rec.events, 2)
	for _, ev := range rec.events {
		assert.Empty(t, ev.Error)
	}
	assert.True(t, g.Streams()[0].Closed())
}
