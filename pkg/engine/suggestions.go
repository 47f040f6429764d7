package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/germanamz/swchat/pkg/chats/chat"
	"github.com/germanamz/swchat/pkg/chats/message"
	"github.com/germanamz/swchat/pkg/chats/role"
	"github.com/germanamz/swchat/pkg/inference"
)

// SuggestionCount is the number of suggestions returned by Suggest.
const SuggestionCount = 3

// Preferences are the fan's favourite entries per category. Any may be empty.
type Preferences struct {
	People    string `json:"people"`
	Planets   string `json:"planets"`
	Films     string `json:"films"`
	Species   string `json:"species"`
	Vehicles  string `json:"vehicles"`
	Starships string `json:"starships"`
}

// Prompt renders p as the user message for the suggestions call.
func (p Preferences) Prompt() string {
	fields := []struct{ name, value string }{
		{"people", p.People},
		{"planets", p.Planets},
		{"films", p.Films},
		{"species", p.Species},
		{"vehicles", p.Vehicles},
		{"starships", p.Starships},
	}

	var b strings.Builder
	for _, f := range fields {
		if v := strings.TrimSpace(f.value); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.name, v)
		}
	}

	if b.Len() == 0 {
		return "The fan has no preferences yet. Suggest questions about the Star Wars world."
	}
	return "User preferences:\n" + b.String()
}

// Suggest asks the model for conversation starters tailored to p. No tools
// are offered. At most SuggestionCount non-empty lines are returned.
func (e *Engine) Suggest(ctx context.Context, p Preferences) ([]string, error) {
	ctx, done := e.trackUsage(ctx, "suggestions")
	defer done()

	c := chat.New(message.NewText(role.User, p.Prompt()))

	s := e.cfg.Settings()
	s.System = SuggestionsPrompt

	res, err := e.gateway.Invoke(ctx, inference.NewPayload(s, nil, c))
	if err != nil {
		return nil, err
	}

	return splitSuggestions(res.Message().TextContent()), nil
}

func splitSuggestions(text string) []string {
	out := make([]string, 0, SuggestionCount)
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == SuggestionCount {
			break
		}
	}
	return out
}
