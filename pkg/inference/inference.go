package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/germanamz/swchat/pkg/chats/chat"
	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/chats/message"
	"github.com/germanamz/swchat/pkg/chats/role"
	"github.com/germanamz/swchat/pkg/modeladapter"
	"github.com/germanamz/swchat/pkg/modeladapter/usage"
	"github.com/germanamz/swchat/pkg/tools/toolbox"
)

// Gateway sends payloads to a hosted model.
type Gateway interface {
	// Invoke performs one single-shot call.
	Invoke(ctx context.Context, p Payload) (Result, error)
	// InvokeStream starts a streamed call. The caller must drive the returned
	// Stream to completion or Close it.
	InvokeStream(ctx context.Context, p Payload) (Stream, error)
}

// Stream is a lazy, finite, non-restartable sequence of text fragments.
//
//	for s.Next() {
//		fmt.Print(s.Text())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream interface {
	// Next advances to the next fragment. It returns false at the end of the
	// sequence or on error.
	Next() bool
	// Text returns the current fragment.
	Text() string
	// Err returns the error that stopped iteration, if any.
	Err() error
	// Close releases the underlying connection.
	Close() error
}

// ModelLister is implemented by gateways that can enumerate the models
// available to the configured credentials.
type ModelLister interface {
	ListModels(ctx context.Context) ([]Model, error)
}

// Model describes one model offered by a provider.
type Model struct {
	ID                      string   `json:"modelId"`
	Name                    string   `json:"modelName,omitempty"`
	Provider                string   `json:"providerName,omitempty"`
	InputModalities         []string `json:"inputModalities,omitempty"`
	OutputModalities        []string `json:"outputModalities,omitempty"`
	Customizable            bool     `json:"customizable"`
	InferenceTypesSupported []string `json:"inferenceTypesSupported,omitempty"`
}

// Settings holds the per-deployment generation parameters.
type Settings struct {
	System      string
	MaxTokens   int
	Temperature float64
}

// Payload is the request of a single gateway call. It is built fresh for
// every call and never mutated afterwards.
type Payload struct {
	System      string
	Tools       []toolbox.Spec
	Messages    []message.Message
	MaxTokens   int
	Temperature float64
}

// NewPayload builds a Payload from settings, tool declarations and the
// current transcript. Messages and Tools are copies, so later appends to c
// do not leak into the payload.
func NewPayload(s Settings, tools []toolbox.Spec, c *chat.Chat) Payload {
	var specs []toolbox.Spec
	if len(tools) > 0 {
		specs = make([]toolbox.Spec, len(tools))
		copy(specs, tools)
	}

	return Payload{
		System:      s.System,
		Tools:       specs,
		Messages:    c.Messages(),
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
	}
}

// Result is the decoded response of a single-shot call.
type Result struct {
	Content    []content.Part
	StopReason string
	Usage      usage.TokenCount
}

// ToolUses returns the tool-use parts of the result in order.
func (r Result) ToolUses() []content.ToolUse {
	return r.Message().ToolUses()
}

// Message returns the result as an assistant message.
func (r Result) Message() message.Message {
	return message.New(role.Assistant, r.Content...)
}

// Error is returned by gateways when a call fails in transport, returns a
// non-2xx status or cannot be decoded.
type Error struct {
	Op         string // invoke, stream or list_models.
	StatusCode int    // Upstream HTTP status; zero when none was received.
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("inference: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err for op, lifting the HTTP status from the transport
// error types when present. A nil err yields nil.
func NewError(op string, err error) error {
	if err == nil {
		return nil
	}

	var ie *Error
	if errors.As(err, &ie) {
		return err
	}

	e := &Error{Op: op, Err: err}

	var se *modeladapter.StatusError
	var rle *modeladapter.RateLimitError
	switch {
	case errors.As(err, &se):
		e.StatusCode = se.StatusCode
	case errors.As(err, &rle):
		e.StatusCode = http.StatusTooManyRequests
	}

	return e
}
