// Package bedrock provides an inference.Gateway for Anthropic models hosted
// on Amazon Bedrock, authenticated with a Bedrock API key.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/germanamz/swchat/pkg/chats/content"
	"github.com/germanamz/swchat/pkg/chats/message"
	"github.com/germanamz/swchat/pkg/chats/role"
	"github.com/germanamz/swchat/pkg/inference"
	"github.com/germanamz/swchat/pkg/modeladapter"
	"github.com/germanamz/swchat/pkg/modeladapter/usage"
)

// AnthropicVersion is the request schema version Bedrock expects for
// Anthropic models.
const AnthropicVersion = "bedrock-2023-05-31"

const eventStreamContentType = "application/vnd.amazon.eventstream"

var (
	_ inference.Gateway     = (*Adapter)(nil)
	_ inference.ModelLister = (*Adapter)(nil)
)

// RuntimeURL returns the bedrock-runtime endpoint for region.
func RuntimeURL(region string) string {
	return "https://bedrock-runtime." + region + ".amazonaws.com"
}

// ControlURL returns the bedrock control-plane endpoint for region.
func ControlURL(region string) string {
	return "https://bedrock." + region + ".amazonaws.com"
}

// Options configures an Adapter.
type Options struct {
	Region     string
	ModelID    string
	Token      string // Bedrock API key, sent as a bearer token.
	RuntimeURL string // Defaults to RuntimeURL(Region).
	ControlURL string // Defaults to ControlURL(Region).

	MaxRetries    int           // Retries of single-shot calls on HTTP 429.
	RetryDelay    time.Duration // Base backoff delay (default 1s).
	InvokeTimeout time.Duration // Bound on each single-shot call; zero means none.
	Client        *http.Client
}

// Adapter implements inference.Gateway over the Bedrock runtime API.
type Adapter struct {
	modeladapter.ModelAdapter

	control       modeladapter.ModelAdapter
	retrier       *modeladapter.Retrier
	invokeTimeout time.Duration
}

// New creates an Adapter for opts.
func New(opts Options) *Adapter {
	runtimeURL := opts.RuntimeURL
	if runtimeURL == "" {
		runtimeURL = RuntimeURL(opts.Region)
	}
	controlURL := opts.ControlURL
	if controlURL == "" {
		controlURL = ControlURL(opts.Region)
	}

	auth := modeladapter.Auth{Key: opts.Token}

	a := &Adapter{
		ModelAdapter:  modeladapter.New(runtimeURL, auth, opts.Client),
		control:       modeladapter.New(controlURL, auth, opts.Client),
		retrier:       modeladapter.NewRetrier(modeladapter.RetryOpts{MaxRetries: opts.MaxRetries, BaseDelay: opts.RetryDelay}),
		invokeTimeout: opts.InvokeTimeout,
	}
	a.Name = opts.ModelID

	return a
}

// Invoke sends p to the model and returns the decoded response. HTTP 429
// responses are retried with backoff.
func (a *Adapter) Invoke(ctx context.Context, p inference.Payload) (inference.Result, error) {
	if a.invokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.invokeTimeout)
		defer cancel()
	}

	req := buildRequest(p)

	var resp apiResponse
	err := a.retrier.Do(ctx, func(ctx context.Context) error {
		resp = apiResponse{}
		return a.PostJSON(ctx, a.modelPath("invoke"), req, &resp)
	})
	if err != nil {
		return inference.Result{}, inference.NewError("invoke", fmt.Errorf("bedrock: %w", err))
	}

	return parseResponse(resp), nil
}

// InvokeStream sends p to the streaming endpoint. The returned stream yields
// the text deltas of the reply.
func (a *Adapter) InvokeStream(ctx context.Context, p inference.Payload) (inference.Stream, error) {
	resp, err := a.Post(ctx, a.modelPath("invoke-with-response-stream"), buildRequest(p), eventStreamContentType)
	if err != nil {
		return nil, inference.NewError("stream", fmt.Errorf("bedrock: %w", err))
	}

	return newStream(resp.Body), nil
}

// ListModels lists the foundation models available in the region.
func (a *Adapter) ListModels(ctx context.Context) ([]inference.Model, error) {
	var resp struct {
		ModelSummaries []inference.Model `json:"modelSummaries"`
	}
	if err := a.control.GetJSON(ctx, "/foundation-models", &resp); err != nil {
		return nil, inference.NewError("list_models", fmt.Errorf("bedrock: %w", err))
	}

	return resp.ModelSummaries, nil
}

func (a *Adapter) modelPath(action string) string {
	return "/model/" + url.PathEscape(a.Name) + "/" + action
}

// --- request types ---

type apiRequest struct {
	AnthropicVersion string       `json:"anthropic_version"`
	System           string       `json:"system,omitempty"`
	Tools            []apiToolDef `json:"tools,omitempty"`
	Messages         []apiMessage `json:"messages"`
	MaxTokens        int          `json:"max_tokens"`
	Temperature      float64      `json:"temperature"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type apiToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// --- response types ---

type apiResponse struct {
	Content    []apiContent `json:"content"`
	StopReason string       `json:"stop_reason"`
	Usage      apiUsage     `json:"usage"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// --- conversion helpers ---

func buildRequest(p inference.Payload) apiRequest {
	req := apiRequest{
		AnthropicVersion: AnthropicVersion,
		System:           p.System,
		MaxTokens:        p.MaxTokens,
		Temperature:      p.Temperature,
		Messages:         make([]apiMessage, 0, len(p.Messages)),
	}

	if len(p.Tools) > 0 {
		req.Tools = make([]apiToolDef, len(p.Tools))
		for i, t := range p.Tools {
			schema := t.InputSchema
			if schema == nil {
				schema = json.RawMessage(`{"type":"object"}`)
			}
			req.Tools[i] = apiToolDef{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: schema,
			}
		}
	}

	for _, m := range p.Messages {
		if am, ok := toAPIMessage(m); ok {
			req.Messages = append(req.Messages, am)
		}
	}

	return req
}

// toAPIMessage converts m, dropping empty text parts: the runtime rejects
// text blocks without text.
func toAPIMessage(m message.Message) (apiMessage, bool) {
	blocks := make([]apiContent, 0, len(m.Parts))
	for _, p := range m.Parts {
		if t, ok := p.(content.Text); ok && t.Text == "" {
			continue
		}
		blocks = append(blocks, partToBlock(p))
	}
	if len(blocks) == 0 {
		return apiMessage{}, false
	}

	return apiMessage{Role: mapRole(m.Role), Content: blocks}, true
}

func partToBlock(p content.Part) apiContent {
	switch v := p.(type) {
	case content.Text:
		return apiContent{Type: "text", Text: v.Text}
	case content.ToolUse:
		input := v.Input
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		return apiContent{Type: "tool_use", ID: v.ID, Name: v.Name, Input: input}
	case content.ToolResult:
		return apiContent{Type: "tool_result", ToolUseID: v.ToolUseID, Content: v.Content, IsError: v.IsError}
	default:
		panic(fmt.Sprintf("bedrock: unknown content part %T", p))
	}
}

func mapRole(r role.Role) string {
	if r == role.Assistant {
		return "assistant"
	}
	return "user"
}

func parseResponse(resp apiResponse) inference.Result {
	var parts []content.Part

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			parts = append(parts, content.Text{Text: block.Text})
		case "tool_use":
			input := block.Input
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			parts = append(parts, content.ToolUse{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	return inference.Result{
		Content:    parts,
		StopReason: resp.StopReason,
		Usage: usage.TokenCount{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
}
