package engine

import (
	"context"
	"errors"

	"github.com/germanamz/swchat/pkg/chats/chat"
	"github.com/germanamz/swchat/pkg/chats/message"
	"github.com/germanamz/swchat/pkg/chats/role"
	"github.com/germanamz/swchat/pkg/logging"
)

// EmitFunc delivers one event to the client. A non-nil error aborts the
// stream.
type EmitFunc func(Event) error

// emitError marks a failure of the EmitFunc itself. The client is gone, so
// no error event is attempted.
type emitError struct{ err error }

func (e *emitError) Error() string { return e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }

// Stream answers input incrementally through emit:
//
//  1. one single-shot call on the fresh transcript;
//  2. a delta per leading text part of that result;
//  3. the tool loop, reusing that result as its first round;
//  4. one tool_event;
//  5. a delta per fragment of a streaming call on the final transcript;
//  6. done.
//
// When the round cap is hit, step 5 sends the leading text of the last
// result instead of streaming.
//
// On failure a single error event is emitted and the failure is returned.
// When emit itself fails, its error is returned and nothing more is sent.
func (e *Engine) Stream(ctx context.Context, input string, emit EmitFunc) error {
	ctx, done := e.trackUsage(ctx, "stream")
	defer done()

	send := func(ev Event) error {
		if err := emit(ev); err != nil {
			return &emitError{err: err}
		}
		return nil
	}

	err := e.stream(ctx, input, send)
	if err == nil {
		return nil
	}

	var ee *emitError
	if errors.As(err, &ee) {
		logging.FromContext(ctx).DebugContext(ctx, "stream aborted", "error", ee.err)
		return ee.err
	}

	logging.FromContext(ctx).ErrorContext(ctx, "stream failed", "error", err)
	if emitErr := emit(ErrorEvent(err)); emitErr != nil {
		return emitErr
	}
	return err
}

func (e *Engine) stream(ctx context.Context, input string, send EmitFunc) error {
	c := chat.New(message.NewText(role.User, input))

	first, err := e.gateway.Invoke(ctx, e.resolver.Payload(c))
	if err != nil {
		return err
	}

	if err := sendText(send, leadingText(first)); err != nil {
		return err
	}

	res, err := e.resolver.ResolveFrom(ctx, c, first)
	if err != nil {
		return err
	}

	te := &ToolEvent{
		Used:      len(res.ToolsUsed) > 0,
		Names:     res.ToolsUsed,
		Truncated: res.Truncated,
	}
	if err := send(Event{ToolEvent: te}); err != nil {
		return err
	}

	if res.Truncated {
		if err := sendText(send, leadingText(res.Last)); err != nil {
			return err
		}
		return send(DoneEvent())
	}

	s, err := e.gateway.InvokeStream(ctx, e.resolver.Payload(res.Chat))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	for s.Next() {
		if err := send(DeltaEvent(s.Text())); err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		return err
	}

	return send(DoneEvent())
}

func sendText(send EmitFunc, texts []string) error {
	for _, t := range texts {
		if err := send(DeltaEvent(t)); err != nil {
			return err
		}
	}
	return nil
}
