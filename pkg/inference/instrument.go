package inference

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/logging"
	"github.com/germanamz/swchat/pkg/modeladapter"
	"github.com/germanamz/swchat/pkg/modeladapter/usage"
	"github.com/germanamz/swchat/pkg/telemetry"
)

var tracer = otel.Tracer("github.com/germanamz/swchat/pkg/inference")

// InstrumentOpts configures Instrument.
type InstrumentOpts struct {
	Provider string
	Model    string
	Pricing  usage.Pricing
}

// Instrument wraps g so that every call opens a tracing span, logs
// "inference usage" with token counts and estimated cost, and records the
// calls into the usage.Tracker carried by the call's context, if any.
// Token counts are estimated when the provider does not report them.
func Instrument(g Gateway, opts InstrumentOpts) Gateway {
	return &instrumented{next: g, opts: opts}
}

type instrumented struct {
	next      Gateway
	opts      InstrumentOpts
	estimator modeladapter.TokenEstimator
}

func (i *instrumented) Invoke(ctx context.Context, p Payload) (res Result, err error) {
	ctx, span := i.start(ctx, "inference.invoke", p)
	defer func() { telemetry.End(span, err) }()

	res, err = i.next.Invoke(ctx, p)
	if err != nil {
		return res, err
	}

	tc, estimated := res.Usage, false
	if tc.Total() == 0 {
		tc = usage.TokenCount{
			InputTokens:  i.estimateInput(p),
			OutputTokens: i.estimator.EstimateText(textOf(res.Content)),
		}
		estimated = true
	}

	span.SetAttributes(attribute.String("inference.stop_reason", res.StopReason))
	i.record(ctx, span, "invoke", tc, estimated)

	return res, nil
}

func (i *instrumented) InvokeStream(ctx context.Context, p Payload) (Stream, error) {
	ctx, span := i.start(ctx, "inference.stream", p)

	s, err := i.next.InvokeStream(ctx, p)
	if err != nil {
		telemetry.End(span, err)
		return nil, err
	}

	return &instrumentedStream{
		Stream: s,
		finish: func(text string, err error) {
			if err == nil {
				tc := usage.TokenCount{
					InputTokens:  i.estimateInput(p),
					OutputTokens: i.estimator.EstimateText(text),
				}
				i.record(ctx, span, "stream", tc, true)
			}
			telemetry.End(span, err)
		},
	}, nil
}

func (i *instrumented) start(ctx context.Context, name string, p Payload) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("inference.provider", i.opts.Provider),
		attribute.String("inference.model", i.opts.Model),
		attribute.Int("inference.messages", len(p.Messages)),
		attribute.Int("inference.tools", len(p.Tools)),
	))
}

func (i *instrumented) estimateInput(p Payload) int {
	return i.estimator.EstimateMessages(p.System, p.Messages) + i.estimator.EstimateTools(p.Tools)
}

func (i *instrumented) record(ctx context.Context, span trace.Span, callType string, tc usage.TokenCount, estimated bool) {
	if t := usage.TrackerFrom(ctx); t != nil {
		t.Record(usage.Call{Type: callType, Tokens: tc, Estimated: estimated})
	}

	cost := i.opts.Pricing.Cost(tc)

	span.SetAttributes(
		attribute.Int("inference.tokens_input", tc.InputTokens),
		attribute.Int("inference.tokens_output", tc.OutputTokens),
		attribute.Float64("inference.estimated_cost", cost),
	)

	logging.FromContext(ctx).InfoContext(ctx, "inference usage",
		"call_type", callType,
		"model", i.opts.Model,
		"tokens_input", tc.InputTokens,
		"tokens_output", tc.OutputTokens,
		"total_tokens", tc.Total(),
		"estimated_tokens", estimated,
		"estimated_cost", cost,
	)
}

// instrumentedStream accumulates the streamed text and reports it once,
// either when iteration ends or on Close.
type instrumentedStream struct {
	Stream
	text   strings.Builder
	once   sync.Once
	finish func(text string, err error)
}

func (s *instrumentedStream) Next() bool {
	if s.Stream.Next() {
		s.text.WriteString(s.Stream.Text())
		return true
	}

	s.once.Do(func() { s.finish(s.text.String(), s.Stream.Err()) })

	return false
}

func (s *instrumentedStream) Close() error {
	err := s.Stream.Close()
	s.once.Do(func() { s.finish(s.text.String(), s.Stream.Err()) })

	return err
}

func textOf(parts []content.Part) string {
	var b strings.Builder
	for _, p := range parts {
		if t, ok := p.(content.Text); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}
