package modeladapter

import (
	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/chats/message"
	"github.com/germanamz/swchat/pkg/tools/toolbox"
)

// perMessageOverhead is the estimated token overhead for each message (role,
// structure delimiters, etc.).
const perMessageOverhead = 4

// perToolOverhead is the estimated token overhead for each tool definition
// (JSON wrapping, function object structure, etc.).
const perToolOverhead = 10

// TokenEstimator estimates token counts for transcripts and tool definitions.
// It uses a character-to-token heuristic (approximately 1 token per 4 characters
// for English text, with overhead for JSON structure in tool definitions).
// The zero value is ready to use.
type TokenEstimator struct{}

// charsToTokens converts a character count to an estimated token count using the
// 1-token-per-4-characters heuristic.
func charsToTokens(chars int) int {
	return (chars + 3) / 4 // round up
}

// EstimateText estimates the tokens of a plain string.
func (e *TokenEstimator) EstimateText(s string) int {
	return charsToTokens(len(s))
}

// EstimateMessages estimates the input tokens for a system prompt plus
// transcript messages.
func (e *TokenEstimator) EstimateMessages(system string, msgs []message.Message) int {
	tokens := 0

	if system != "" {
		tokens += charsToTokens(len(system)) + perMessageOverhead
	}

	for _, m := range msgs {
		tokens += perMessageOverhead

		for _, p := range m.Parts {
			switch v := p.(type) {
			case content.Text:
				tokens += charsToTokens(len(v.Text))
			case content.ToolUse:
				tokens += charsToTokens(len(v.ID) + len(v.Name) + len(v.Input))
			case content.ToolResult:
				tokens += charsToTokens(len(v.ToolUseID) + len(v.Content))
			}
		}
	}

	return tokens
}

// EstimateTools estimates the token cost of tool definitions. For each tool it
// sums the name, description, and serialized input schema, then applies the
// character-to-token heuristic plus a per-tool structural overhead.
func (e *TokenEstimator) EstimateTools(tools []toolbox.Spec) int {
	tokens := 0

	for _, t := range tools {
		chars := len(t.Name) + len(t.Description) + len(t.InputSchema)
		tokens += charsToTokens(chars) + perToolOverhead
	}

	return tokens
}
