package engine

import (
	"context"

	"github.com/germanamz/swchat/pkg/chats/chat"
	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/chats/message"
	"github.com/germanamz/swchat/pkg/chats/role"
	"github.com/germanamz/swchat/pkg/inference"
	"github.com/germanamz/swchat/pkg/logging"
)

// Reply is the buffered answer to a chat request.
type Reply struct {
	Response  string    `json:"response"`
	Tool      ToolUsage `json:"tool"`
	Truncated bool      `json:"truncated,omitempty"`
}

// ToolUsage summarizes the tools executed for a reply.
type ToolUsage struct {
	Used  int      `json:"used_tool"` // 1 when any tool ran, else 0.
	Names []string `json:"names"`
}

func newToolUsage(names []string) ToolUsage {
	tu := ToolUsage{Names: names}
	if tu.Names == nil {
		tu.Names = []string{}
	}
	if len(tu.Names) > 0 {
		tu.Used = 1
	}
	return tu
}

// Chat answers input in a single response. Every tool round is resolved
// first, then one more call on the final transcript produces the text. When
// the round cap is hit the model still wants tools, so the answer is the
// leading text of its last result instead.
func (e *Engine) Chat(ctx context.Context, input string) (Reply, error) {
	ctx, done := e.trackUsage(ctx, "chat")
	defer done()

	c := chat.New(message.NewText(role.User, input))

	res, err := e.resolver.Resolve(ctx, c)
	if err != nil {
		return Reply{}, err
	}

	final := res.Last
	if !res.Truncated {
		final, err = e.gateway.Invoke(ctx, e.resolver.Payload(res.Chat))
		if err != nil {
			return Reply{}, err
		}
	}

	logging.FromContext(ctx).DebugContext(ctx, "chat resolved",
		"rounds", res.Rounds,
		"tools", res.ToolsUsed,
		"truncated", res.Truncated,
		"stop_reason", final.StopReason,
	)

	return Reply{
		Response:  answerText(final),
		Tool:      newToolUsage(res.ToolsUsed),
		Truncated: res.Truncated,
	}, nil
}

// answerText returns the first text part of r, or Fallback.
func answerText(r inference.Result) string {
	if s, ok := r.Message().FirstText(); ok && s != "" {
		return s
	}
	return Fallback
}

// leadingText returns the text parts of r that precede its first non-text
// part.
func leadingText(r inference.Result) []string {
	var out []string
	for _, p := range r.Content {
		t, ok := p.(content.Text)
		if !ok {
			break
		}
		out = append(out, t.Text)
	}
	return out
}
