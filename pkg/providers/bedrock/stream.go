package bedrock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"

	"github.com/germanamz/swchat/pkg/inference"
)

// stream decodes the AWS event-stream frames of an
// invoke-with-response-stream response. Each "chunk" frame carries one
// Anthropic streaming event, base64 encoded in its "bytes" field.
type stream struct {
	body io.ReadCloser
	dec  *eventstream.Decoder
	buf  []byte
	text string
	err  error
	done bool
}

func newStream(body io.ReadCloser) *stream {
	return &stream{body: body, dec: eventstream.NewDecoder()}
}

type chunkPayload struct {
	Bytes []byte `json:"bytes"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func (s *stream) Next() bool {
	for !s.done {
		msg, err := s.dec.Decode(s.body, s.buf)
		if err != nil {
			s.done = true
			if !errors.Is(err, io.EOF) {
				s.err = inference.NewError("stream", fmt.Errorf("bedrock: decode frame: %w", err))
			}
			return false
		}
		s.buf = msg.Payload[:0]

		switch headerString(msg.Headers, ":message-type") {
		case "exception", "error":
			s.done = true
			s.err = inference.NewError("stream", frameError(msg))
			return false
		}

		if headerString(msg.Headers, ":event-type") != "chunk" {
			continue
		}

		var chunk chunkPayload
		if err := json.Unmarshal(msg.Payload, &chunk); err != nil {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal(chunk.Bytes, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" {
				s.text = ev.Delta.Text
				return true
			}
		case "message_stop":
			s.done = true
			return false
		}
	}

	return false
}

func (s *stream) Text() string { return s.text }

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error {
	s.done = true
	return s.body.Close()
}

func headerString(h eventstream.Headers, name string) string {
	if v, ok := h.Get(name).(eventstream.StringValue); ok {
		return string(v)
	}
	return ""
}

func frameError(msg eventstream.Message) error {
	kind := headerString(msg.Headers, ":exception-type")
	if kind == "" {
		kind = headerString(msg.Headers, ":error-code")
	}

	var body struct {
		Message string `json:"message"`
	}
	text := string(msg.Payload)
	if err := json.Unmarshal(msg.Payload, &body); err == nil && body.Message != "" {
		text = body.Message
	}

	return fmt.Errorf("bedrock: %s: %s", kind, text)
}
