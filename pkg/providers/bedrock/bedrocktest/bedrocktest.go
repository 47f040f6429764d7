// Package bedrocktest encodes Bedrock response streams for stub servers.
package bedrocktest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
)

// ContentType is the media type of Bedrock response streams.
const ContentType = "application/vnd.amazon.eventstream"

// TextDeltas returns the Anthropic streaming events of a reply made of
// fragments: message_start, one content_block_delta per fragment and
// message_stop.
func TextDeltas(fragments ...string) []any {
	events := []any{
		map[string]any{"type": "message_start", "message": map[string]any{"role": "assistant"}},
		map[string]any{"type": "content_block_start", "index": 0, "content_block": map[string]any{"type": "text", "text": ""}},
	}
	for _, f := range fragments {
		events = append(events, map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": f},
		})
	}

	return append(events,
		map[string]any{"type": "content_block_stop", "index": 0},
		map[string]any{"type": "message_stop"},
	)
}

// WriteChunk writes event as one "chunk" frame.
func WriteChunk(w io.Writer, event any) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string][]byte{"bytes": raw})
	if err != nil {
		return err
	}

	return WriteFrame(w, "event", "chunk", payload)
}

// WriteException writes an exception frame of the given type.
func WriteException(w io.Writer, kind, msg string) error {
	payload, err := json.Marshal(map[string]string{"message": msg})
	if err != nil {
		return err
	}

	return eventstream.NewEncoder().Encode(w, eventstream.Message{
		Headers: eventstream.Headers{
			{Name: ":message-type", Value: eventstream.StringValue("exception")},
			{Name: ":exception-type", Value: eventstream.StringValue(kind)},
		},
		Payload: payload,
	})
}

// WriteFrame writes a raw frame with the given message and event types.
func WriteFrame(w io.Writer, messageType, eventType string, payload []byte) error {
	return eventstream.NewEncoder().Encode(w, eventstream.Message{
		Headers: eventstream.Headers{
			{Name: ":message-type", Value: eventstream.StringValue(messageType)},
			{Name: ":event-type", Value: eventstream.StringValue(eventType)},
			{Name: ":content-type", Value: eventstream.StringValue("application/json")},
		},
		Payload: payload,
	})
}

// WriteStream writes events as a complete stream response.
func WriteStream(w http.ResponseWriter, events []any) error {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)

	for i, ev := range events {
		if err := WriteChunk(w, ev); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}

	return nil
}
