package engine

import (
	"context"

	"github.com/germanamz/swchat/pkg/logging"
	"github.com/germanamz/swchat/pkg/modeladapter/usage"
)

// trackUsage attaches a fresh usage.Tracker to ctx. The returned func logs
// "request usage" with the totals of every inference call made with ctx.
func (e *Engine) trackUsage(ctx context.Context, op string) (context.Context, func()) {
	tr := &usage.Tracker{}
	ctx = usage.WithTracker(ctx, tr)

	return ctx, func() {
		s := tr.Summary()
		if s.Calls == 0 {
			return
		}
		logging.FromContext(ctx).InfoContext(ctx, "request usage",
			"op", op,
			"calls", s.Calls,
			"estimated_calls", s.Estimated,
			"tokens_input", s.Tokens.InputTokens,
			"tokens_output", s.Tokens.OutputTokens,
			"estimated_cost", e.cfg.UsagePricing().Cost(s.Tokens),
		)
	}
}
