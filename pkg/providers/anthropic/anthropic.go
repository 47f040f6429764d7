// Package anthropic provides an inference.Gateway for the Anthropic Messages
// API, built on the official SDK.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/chats/message"
	"github.com/germanamz/swchat/pkg/chats/role"
	"github.com/germanamz/swchat/pkg/inference"
	"github.com/germanamz/swchat/pkg/modeladapter/usage"
	"github.com/germanamz/swchat/pkg/tools/toolbox"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "claude-3-5-sonnet-latest"

var (
	_ inference.Gateway     = (*Adapter)(nil)
	_ inference.ModelLister = (*Adapter)(nil)
)

// Options configures an Adapter.
type Options struct {
	APIKey        string
	BaseURL       string // Empty uses the SDK default.
	Model         string
	MaxRetries    int           // SDK retries of single-shot calls.
	InvokeTimeout time.Duration // Bound on each single-shot call; zero means none.
	Client        *http.Client
}

// Adapter implements inference.Gateway for the Anthropic Messages API.
type Adapter struct {
	client        anthropic.Client
	model         string
	invokeTimeout time.Duration
}

// New creates an Adapter for opts.
func New(opts Options) *Adapter {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(max(opts.MaxRetries, 0)),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Client != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.Client))
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	return &Adapter{
		client:        anthropic.NewClient(reqOpts...),
		model:         model,
		invokeTimeout: opts.InvokeTimeout,
	}
}

// Model returns the configured model name.
func (a *Adapter) Model() string { return a.model }

// Invoke sends p to the Messages API and returns the decoded reply.
func (a *Adapter) Invoke(ctx context.Context, p inference.Payload) (inference.Result, error) {
	if a.invokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.invokeTimeout)
		defer cancel()
	}

	params, err := a.buildParams(p)
	if err != nil {
		return inference.Result{}, &inference.Error{Op: "invoke", Err: err}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return inference.Result{}, wrapError("invoke", err)
	}

	return parseMessage(msg), nil
}

// InvokeStream starts a streamed Messages call. Streams are never retried.
func (a *Adapter) InvokeStream(ctx context.Context, p inference.Payload) (inference.Stream, error) {
	params, err := a.buildParams(p)
	if err != nil {
		return nil, &inference.Error{Op: "stream", Err: err}
	}

	return &stream{sdk: a.client.Messages.NewStreaming(ctx, params, option.WithMaxRetries(0))}, nil
}

// ListModels lists the models available to the API key.
func (a *Adapter) ListModels(ctx context.Context) ([]inference.Model, error) {
	page, err := a.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, wrapError("list_models", err)
	}

	models := make([]inference.Model, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, inference.Model{
			ID:               m.ID,
			Name:             m.DisplayName,
			Provider:         "Anthropic",
			InputModalities:  []string{"TEXT"},
			OutputModalities: []string{"TEXT"},
		})
	}

	return models, nil
}

func wrapError(op string, err error) error {
	e := &inference.Error{Op: op, Err: fmt.Errorf("anthropic: %w", err)}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		e.StatusCode = apiErr.StatusCode
	}

	return e
}

// --- conversion helpers ---

func (a *Adapter) buildParams(p inference.Payload) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(p.MaxTokens),
		Temperature: anthropic.Float(p.Temperature),
		Messages:    make([]anthropic.MessageParam, 0, len(p.Messages)),
	}

	if p.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.System}}
	}

	if len(p.Tools) > 0 {
		params.Tools = make([]anthropic.ToolUnionParam, 0, len(p.Tools))
		for _, t := range p.Tools {
			tool, err := toolParam(t)
			if err != nil {
				return anthropic.MessageNewParams{}, err
			}
			params.Tools = append(params.Tools, tool)
		}
	}

	for _, m := range p.Messages {
		if mp, ok := toMessageParam(m); ok {
			params.Messages = append(params.Messages, mp)
		}
	}

	return params, nil
}

func toolParam(t toolbox.Spec) (anthropic.ToolUnionParam, error) {
	var schema struct {
		Properties any      `json:"properties"`
		Required   []string `json:"required"`
	}
	if len(t.InputSchema) > 0 {
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			return anthropic.ToolUnionParam{}, fmt.Errorf("anthropic: tool %q schema: %w", t.Name, err)
		}
	}

	tp := &anthropic.ToolParam{
		Name: t.Name,
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: schema.Properties,
			Required:   schema.Required,
		},
	}
	if t.Description != "" {
		tp.Description = anthropic.String(t.Description)
	}

	return anthropic.ToolUnionParam{OfTool: tp}, nil
}

// toMessageParam converts m, dropping empty text parts. It reports false when
// nothing is left to send.
func toMessageParam(m message.Message) (anthropic.MessageParam, bool) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch v := p.(type) {
		case content.Text:
			if v.Text == "" {
				continue
			}
			blocks = append(blocks, anthropic.NewTextBlock(v.Text))
		case content.ToolUse:
			input := v.Input
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(v.ID, input, v.Name))
		case content.ToolResult:
			blocks = append(blocks, anthropic.NewToolResultBlock(v.ToolUseID, v.Content, v.IsError))
		}
	}

	if len(blocks) == 0 {
		return anthropic.MessageParam{}, false
	}
	if m.Role == role.Assistant {
		return anthropic.NewAssistantMessage(blocks...), true
	}

	return anthropic.NewUserMessage(blocks...), true
}

func parseMessage(msg *anthropic.Message) inference.Result {
	var parts []content.Part

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			parts = append(parts, content.Text{Text: block.Text})
		case "tool_use":
			input := json.RawMessage(block.Input)
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			parts = append(parts, content.ToolUse{ID: block.ID, Name: block.Name, Input: input})
		}
	}

	return inference.Result{
		Content:    parts,
		StopReason: string(msg.StopReason),
		Usage: usage.TokenCount{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
}

// stream adapts the SDK event stream to inference.Stream, yielding only
// text deltas.
type stream struct {
	sdk  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	text string
	done bool
}

func (s *stream) Next() bool {
	for !s.done && s.sdk.Next() {
		event := s.sdk.Current()

		switch event.Type {
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			if delta.Type == "text_delta" {
				s.text = delta.Text
				return true
			}
		case "message_stop":
			s.done = true
		}
	}

	s.done = true

	return false
}

func (s *stream) Text() string { return s.text }

func (s *stream) Err() error {
	if err := s.sdk.Err(); err != nil {
		return wrapError("stream", err)
	}
	return nil
}

func (s *stream) Close() error {
	s.done = true
	return s.sdk.Close()
}
