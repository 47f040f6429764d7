// Package sse writes and reads Server-Sent Events frames carrying JSON
// payloads.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

// Writer pushes events to an HTTP client. It is safe for concurrent use.
type Writer struct {
	w     io.Writer
	flush func()
	mu    sync.Mutex
}

// NewWriter sets the event-stream response headers on w and returns a Writer
// that flushes after every event.
func NewWriter(w http.ResponseWriter) *Writer {
	headers := w.Header()
	headers.Set("Content-Type", ContentType)
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")

	var flushFn func()
	if f, ok := w.(http.Flusher); ok {
		flushFn = f.Flush
	}

	return &Writer{w: w, flush: flushFn}
}

// NewStreamWriter wraps a plain writer, for tests and non-HTTP sinks.
func NewStreamWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send writes v as a single "data: <json>" frame.
func (s *Writer) Send(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal payload: %w", err)
	}

	return s.write([]byte("data: " + string(body) + "\n\n"))
}

// Comment writes a comment line, which clients ignore. Useful as a keepalive.
func (s *Writer) Comment(text string) error {
	return s.write([]byte(": " + text + "\n\n"))
}

func (s *Writer) write(data []byte) error {
	if s == nil || s.w == nil {
		return errors.New("sse: writer not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}

// Read consumes an event stream from r and calls fn for every dispatched
// event with its name (empty when unnamed) and joined data lines. Comments
// are skipped. Read returns fn's first error, the reader's error or nil at
// end of input.
func Read(ctx context.Context, r io.Reader, fn func(event, data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var dataBuf strings.Builder
	dispatch := func() error {
		if dataBuf.Len() == 0 {
			eventName = ""
			return nil
		}
		payload := dataBuf.String()
		dataBuf.Reset()
		name := eventName
		eventName = ""
		return fn(name, payload)
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimSpace(line[len("data:"):]))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	return dispatch()
}

// ReadJSON is Read for streams whose data lines are JSON documents. Each is
// decoded into a fresh T and handed to fn.
func ReadJSON[T any](ctx context.Context, r io.Reader, fn func(T) error) error {
	return Read(ctx, r, func(_, data string) error {
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return fmt.Errorf("sse: decode event: %w", err)
		}
		return fn(v)
	})
}
