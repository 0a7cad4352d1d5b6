package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/fake"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// StreamEvent is one increment of a model turn, pushed to the orchestrator
// as it arrives. Kind mirrors ContentKind plus a terminal "usage" marker.
type StreamEvent struct {
	Kind ContentKind // KindText, KindFunctionCall; zero value with Usage set means "usage only"
	Text string

	CallID    string
	Name      string
	Arguments map[string]any

	Usage *UsageMetrics
}

// ChatClient is the narrow interface the orchestrator drives a model
// through. Concrete backends adapt langchaingo's llms.Model; see
// newLangchainChatClient.
type ChatClient interface {
	// Stream sends the given history plus the available tool definitions to
	// the model and invokes emit for every incremental event. It returns
	// once the model's turn is complete (a final stop, not a tool call —
	// tool calls are reported as events and the caller decides whether to
	// continue the loop).
	Stream(ctx context.Context, history []Message, tools []ToolSpec, emit func(StreamEvent) error) error
}

// ToolSpec is the model-facing description of one registered tool.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// langchainChatClient adapts a langchaingo llms.Model to ChatClient,
// translating this module's Message/ContentPart model to and from
// llms.MessageContent.
type langchainChatClient struct {
	model     llms.Model
	maxTokens int
}

// NewChatClient constructs the configured provider's langchaingo model and
// wraps it as a ChatClient.
func NewChatClient(cfg *LLMConfig) (ChatClient, error) {
	model, err := newProviderModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: constructing model client: %v", ErrTransport, err)
	}
	return &langchainChatClient{model: model, maxTokens: cfg.MaxTokens}, nil
}

func newProviderModel(cfg *LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "fake":
		return fake.NewFakeLLM(cfg.FakeResponses), nil
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, anthropic.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	case "googleai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("missing Google AI API key: set it in config or GEMINI_API_KEY")
		}
		return googleai.New(context.Background(),
			googleai.WithDefaultModel(cfg.Model),
			googleai.WithAPIKey(apiKey),
		)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

// Stream implements ChatClient.
func (c *langchainChatClient) Stream(ctx context.Context, history []Message, tools []ToolSpec, emit func(StreamEvent) error) error {
	lcMessages, err := toLangchainMessages(history)
	if err != nil {
		return err
	}

	var callOpts []llms.CallOption
	if c.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(c.maxTokens))
	}
	if len(tools) > 0 {
		callOpts = append(callOpts, llms.WithTools(toLangchainTools(tools)), llms.WithToolChoice("auto"))
	}

	var streamErr error
	var streamed bool
	callOpts = append(callOpts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		streamed = true
		if err := emit(StreamEvent{Kind: KindText, Text: string(chunk)}); err != nil {
			streamErr = err
			return err
		}
		return nil
	}))

	resp, err := c.model.GenerateContent(ctx, lcMessages, callOpts...)
	if err != nil {
		if streamErr != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, streamErr)
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%w: empty response from model", ErrTransport)
	}
	choice := resp.Choices[0]

	if !streamed && choice.Content != "" {
		if err := emit(StreamEvent{Kind: KindText, Text: choice.Content}); err != nil {
			return err
		}
	}

	for _, tc := range choice.ToolCalls {
		args, err := decodeToolArguments(tc.FunctionCall.Arguments)
		if err != nil {
			return fmt.Errorf("%w: decoding tool call arguments: %v", ErrTransport, err)
		}
		if err := emit(StreamEvent{
			Kind:      KindFunctionCall,
			CallID:    tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: args,
		}); err != nil {
			return err
		}
	}

	usage := extractUsage(choice)
	if usage != nil {
		if err := emit(StreamEvent{Usage: usage}); err != nil {
			return err
		}
	}
	return nil
}

func toLangchainMessages(history []Message) ([]llms.MessageContent, error) {
	var out []llms.MessageContent
	for _, m := range history {
		role, err := toLangchainRole(m.Role)
		if err != nil {
			return nil, err
		}
		mc := llms.MessageContent{Role: role}
		for _, p := range m.Parts {
			switch p.Kind {
			case KindText:
				if p.Text != "" {
					mc.Parts = append(mc.Parts, llms.TextPart(p.Text))
				}
			case KindFunctionCall:
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   p.CallID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      p.Name,
						Arguments: encodeToolArguments(p.Arguments),
					},
				})
			case KindFunctionResult:
				mc.Parts = append(mc.Parts, llms.ToolCallResponse{
					ToolCallID: p.ResultCallID,
					Content:    p.Result,
				})
			case KindData:
				if len(p.DataBytes) > 0 {
					mc.Parts = append(mc.Parts, llms.BinaryPart(p.MediaType, p.DataBytes))
				}
			}
		}
		if len(mc.Parts) == 0 && m.Text != "" {
			mc.Parts = append(mc.Parts, llms.TextPart(m.Text))
		}
		out = append(out, mc)
	}
	return out, nil
}

func toLangchainRole(r Role) (llms.ChatMessageType, error) {
	switch r {
	case RoleUser:
		return llms.ChatMessageTypeHuman, nil
	case RoleAssistant:
		return llms.ChatMessageTypeAI, nil
	case RoleTool:
		return llms.ChatMessageTypeTool, nil
	case RoleSystem:
		return llms.ChatMessageTypeSystem, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrBadArgument, r)
	}
}

func toLangchainTools(specs []ToolSpec) []llms.Tool {
	out := make([]llms.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return out
}

func extractUsage(choice *llms.ContentChoice) *UsageMetrics {
	if choice.GenerationInfo == nil {
		return nil
	}
	get := func(key string) int64 {
		v, ok := choice.GenerationInfo[key]
		if !ok {
			return 0
		}
		switch n := v.(type) {
		case int:
			return int64(n)
		case int64:
			return n
		case float64:
			return int64(n)
		default:
			return 0
		}
	}
	in := get("InputTokens")
	out := get("OutputTokens")
	cacheRead := get("CacheReadInputTokens")
	cacheWrite := get("CacheCreationInputTokens")
	if in == 0 && out == 0 && cacheRead == 0 && cacheWrite == 0 {
		return nil
	}
	return &UsageMetrics{
		InputTokens:      in,
		OutputTokens:     out,
		CacheReadTokens:  cacheRead,
		CacheWriteTokens: cacheWrite,
		RequestCount:     1,
	}
}

func encodeToolArguments(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeToolArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// anthropicOAuthTransport injects a bearer token obtained via OAuth rather
// than a plain API key, for the anthropic provider's "pro/max" login flow.
type anthropicOAuthTransport struct {
	token string
	base  http.RoundTripper
}

func (t *anthropicOAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
