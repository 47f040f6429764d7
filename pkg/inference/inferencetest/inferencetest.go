// Package inferencetest provides a scripted inference.Gateway for tests.
package inferencetest

import (
	"context"
	"sync"

	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/inference"
)

// Gateway replays scripted results. Successive Invoke calls return
// successive Results; once exhausted the last one repeats. It records every
// payload it receives and is safe for concurrent use.
type Gateway struct {
	Results   []inference.Result
	InvokeErr error // Returned by every Invoke when set.

	Fragments   []string // Yielded by every stream.
	StreamErr   error    // Returned by InvokeStream when set.
	FragmentErr error    // Reported by the stream after its fragments.

	mu       sync.Mutex
	invokes  []inference.Payload
	streams  []inference.Payload
	returned []*Stream
}

// Text returns a Result holding a single text part with stop reason end_turn.
func Text(s string) inference.Result {
	return inference.Result{Content: []content.Part{content.Text{Text: s}}, StopReason: "end_turn"}
}

// ToolUse returns a Result with optional leading text followed by the given
// tool uses and stop reason tool_use.
func ToolUse(text string, uses ...content.ToolUse) inference.Result {
	var parts []content.Part
	if text != "" {
		parts = append(parts, content.Text{Text: text})
	}
	for _, u := range uses {
		parts = append(parts, u)
	}
	return inference.Result{Content: parts, StopReason: "tool_use"}
}

func (g *Gateway) Invoke(ctx context.Context, p inference.Payload) (inference.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.invokes = append(g.invokes, p)

	if err := ctx.Err(); err != nil {
		return inference.Result{}, err
	}
	if g.InvokeErr != nil {
		return inference.Result{}, g.InvokeErr
	}
	if len(g.Results) == 0 {
		return Text(""), nil
	}

	i := min(len(g.invokes), len(g.Results)) - 1

	return g.Results[i], nil
}

func (g *Gateway) InvokeStream(ctx context.Context, p inference.Payload) (inference.Stream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.streams = append(g.streams, p)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.StreamErr != nil {
		return nil, g.StreamErr
	}

	s := NewStream(g.Fragments, g.FragmentErr)
	g.returned = append(g.returned, s)

	return s, nil
}

// Invokes returns the payloads passed to Invoke, in call order.
func (g *Gateway) Invokes() []inference.Payload {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]inference.Payload(nil), g.invokes...)
}

// StreamPayloads returns the payloads passed to InvokeStream, in call order.
func (g *Gateway) StreamPayloads() []inference.Payload {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]inference.Payload(nil), g.streams...)
}

// Streams returns the streams handed out so far.
func (g *Gateway) Streams() []*Stream {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]*Stream(nil), g.returned...)
}

// Stream is an in-memory inference.Stream.
type Stream struct {
	fragments []string
	err       error
	pos       int
	cur       string
	closed    bool
}

// NewStream returns a stream yielding fragments then reporting err.
func NewStream(fragments []string, err error) *Stream {
	return &Stream{fragments: fragments, err: err}
}

func (s *Stream) Next() bool {
	if s.closed || s.pos >= len(s.fragments) {
		return false
	}
	s.cur = s.fragments[s.pos]
	s.pos++
	return true
}

func (s *Stream) Text() string { return s.cur }

func (s *Stream) Err() error {
	if s.pos >= len(s.fragments) {
		return s.err
	}
	return nil
}

func (s *Stream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool { return s.closed }
