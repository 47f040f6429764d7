// Package chat provides the append-only transcript container passed to the
// model on every call.
package chat

import (
	"iter"
	"slices"

	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/chats/message"
	"github.com/germanamz/swchat/pkg/chats/role"
)

// Chat is the transcript of one request. It only grows: messages are never
// edited or removed. The zero value is empty and ready to use. A Chat is not
// safe for concurrent use.
type Chat struct {
	messages []message.Message
}

// New returns a Chat seeded with msgs.
func New(msgs ...message.Message) *Chat {
	return &Chat{messages: slices.Clone(msgs)}
}

// Append adds msgs to the end of the transcript.
func (c *Chat) Append(msgs ...message.Message) {
	c.messages = append(c.messages, msgs...)
}

// AppendToolRound records one tool round: the assistant message that asked
// for the tools followed by a user message carrying their results.
func (c *Chat) AppendToolRound(assistant message.Message, results ...content.ToolResult) {
	parts := make([]content.Part, len(results))
	for i, r := range results {
		parts[i] = r
	}
	c.Append(assistant, message.New(role.User, parts...))
}

func (c *Chat) Len() int { return len(c.messages) }

// Last returns the newest message, or false when the transcript is empty.
func (c *Chat) Last() (message.Message, bool) {
	if len(c.messages) == 0 {
		return message.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Messages returns a copy of the transcript in order.
func (c *Chat) Messages() []message.Message {
	return slices.Clone(c.messages)
}

// All iterates over the transcript in order.
func (c *Chat) All() iter.Seq2[int, message.Message] {
	return slices.All(c.messages)
}

// Clone returns an independent copy of c.
func (c *Chat) Clone() *Chat {
	return &Chat{messages: slices.Clone(c.messages)}
}
