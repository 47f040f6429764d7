// Package agent runs the tool-resolution loop: it calls the model, executes
// the tools the model asks for and feeds their results back until the model
// answers without requesting tools.
package agent

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/germanamz/swchat/pkg/chats/chat"
	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/inference"
	"github.com/germanamz/swchat/pkg/logging"
	"github.com/germanamz/swchat/pkg/telemetry"
	"github.com/germanamz/swchat/pkg/tools/toolbox"
)

var tracer = otel.Tracer("github.com/germanamz/swchat/pkg/agent")

// DefaultMaxRounds bounds the number of tool rounds per request.
const DefaultMaxRounds = 8

// Options configures a Resolver.
type Options struct {
	Settings  inference.Settings // System prompt and generation parameters.
	MaxRounds int                // Tool rounds before giving up (0 = unlimited).
}

// Resolver drives the conversation with the model until no tool use is
// requested. It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	gateway inference.Gateway
	tools   *toolbox.ToolBox
	options Options
}

// Resolution is the outcome of a resolved conversation.
type Resolution struct {
	Chat      *chat.Chat       // Transcript including every tool round.
	ToolsUsed []string         // Names of executed tools, in request order across rounds.
	Last      inference.Result // Final single-shot result, free of tool use unless Truncated.
	Rounds    int              // Number of executed tool rounds.
	Truncated bool             // Stopped at MaxRounds while tools were still requested.
}

// New creates a Resolver that talks to g and executes tools from tb.
func New(g inference.Gateway, tb *toolbox.ToolBox, opts Options) *Resolver {
	return &Resolver{gateway: g, tools: tb, options: opts}
}

// Gateway returns the gateway the resolver calls.
func (r *Resolver) Gateway() inference.Gateway { return r.gateway }

// Payload builds a fresh payload for the current state of c.
func (r *Resolver) Payload(c *chat.Chat) inference.Payload {
	return inference.NewPayload(r.options.Settings, r.tools.Specs(), c)
}

// Resolve issues the first single-shot call for c and resolves every
// requested tool round.
func (r *Resolver) Resolve(ctx context.Context, c *chat.Chat) (Resolution, error) {
	first, err := r.gateway.Invoke(ctx, r.Payload(c))
	if err != nil {
		return Resolution{Chat: c, ToolsUsed: []string{}}, err
	}

	return r.ResolveFrom(ctx, c, first)
}

// ResolveFrom resolves tool rounds starting from first, a result already
// obtained for c. Each round appends exactly two messages to c: the
// assistant message carrying the model's content, then a user message with
// one ToolResult per ToolUse, in ToolUse order.
func (r *Resolver) ResolveFrom(ctx context.Context, c *chat.Chat, first inference.Result) (res Resolution, err error) {
	ctx, span := tracer.Start(ctx, "agent.resolve")
	defer func() {
		span.SetAttributes(
			attribute.Int("agent.rounds", res.Rounds),
			attribute.Bool("agent.truncated", res.Truncated),
			attribute.StringSlice("agent.tools_used", res.ToolsUsed),
		)
		telemetry.End(span, err)
	}()

	log := logging.FromContext(ctx)
	res = Resolution{Chat: c, ToolsUsed: []string{}, Last: first}

	for {
		uses := res.Last.ToolUses()
		if len(uses) == 0 {
			return res, nil
		}

		if r.options.MaxRounds > 0 && res.Rounds >= r.options.MaxRounds {
			res.Truncated = true
			log.WarnContext(ctx, "tool rounds exhausted", "max_rounds", r.options.MaxRounds, "pending_tools", len(uses))
			return res, nil
		}

		if err := ctx.Err(); err != nil {
			return res, err
		}

		names := make([]string, len(uses))
		for i, u := range uses {
			names[i] = u.Name
		}
		res.ToolsUsed = append(res.ToolsUsed, names...)
		log.DebugContext(ctx, "executing tool round", "round", res.Rounds+1, "tools", names)

		results := r.callTools(ctx, uses)
		c.AppendToolRound(res.Last.Message(), results...)
		res.Rounds++

		next, err := r.gateway.Invoke(ctx, r.Payload(c))
		if err != nil {
			return res, err
		}
		res.Last = next
	}
}

// callTools runs every tool use concurrently. Results are addressed by
// index so their order matches uses regardless of completion order.
func (r *Resolver) callTools(ctx context.Context, uses []content.ToolUse) []content.ToolResult {
	results := make([]content.ToolResult, len(uses))

	var wg sync.WaitGroup
	for i, u := range uses {
		wg.Go(func() {
			results[i] = r.tools.Call(ctx, u)
		})
	}
	wg.Wait()

	return results
}
