package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNoChoices indicates the provider returned an empty response.
var ErrNoChoices = errors.New("provider returned no choices")

// LangChainProvider adapts a langchaingo llms.Model to the Provider
// interface. Any OpenAI-compatible endpoint works.
type LangChainProvider struct {
	llm llms.Model
}

// NewLangChainProvider connects to an OpenAI-compatible endpoint.
func NewLangChainProvider(baseURL, apiKey string) (*LangChainProvider, error) {
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	return &LangChainProvider{llm: llm}, nil
}

// NewLangChainFromModel wraps an existing llms.Model. For tests and custom
// providers.
func NewLangChainFromModel(m llms.Model) *LangChainProvider {
	return &LangChainProvider{llm: m}
}

// Complete executes one model call, translating messages, tools, streamed
// chunks, and usage between the wire format and the neutral types.
func (p *LangChainProvider) Complete(ctx context.Context, req *Request, emit func(Event)) (*Completion, error) {
	msgs := toLangChainMessages(req.Messages)

	opts := []llms.CallOption{
		llms.WithModel(req.Model),
	}
	if req.MaxOutputTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxOutputTokens))
	}
	if len(req.Tools) > 0 {
		opts = append(opts, llms.WithTools(toLangChainTools(req.Tools)))
	}
	if emit != nil {
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			emit(Event{Type: EventText, Text: string(chunk)})
			return nil
		}))
	}

	resp, err := p.llm.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := resp.Choices[0]
	completion := &Completion{
		Text: choice.Content,
		Usage: Usage{
			InputTokens:  infoInt(choice.GenerationInfo, "PromptTokens"),
			OutputTokens: infoInt(choice.GenerationInfo, "CompletionTokens"),
		},
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		call := ToolCallEvent{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		}
		completion.ToolCalls = append(completion.ToolCalls, call)
		if emit != nil {
			c := call
			emit(Event{Type: EventToolCall, ToolCall: &c})
		}
	}
	if emit != nil {
		u := completion.Usage
		emit(Event{Type: EventUsage, Usage: &u})
		emit(Event{Type: EventDone})
	}
	return completion, nil
}

func toLangChainMessages(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, m.Text))
		case RoleUser:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, m.Text))
		case RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if m.Text != "" {
				mc.Parts = append(mc.Parts, llms.TextContent{Text: m.Text})
			}
			for _, tc := range m.ToolCalls {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, mc)
		case RoleTool:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeTool}
			for _, tr := range m.ToolResults {
				mc.Parts = append(mc.Parts, llms.ToolCallResponse{
					ToolCallID: tr.CallID,
					Name:       tr.Name,
					Content:    tr.Content,
				})
			}
			out = append(out, mc)
		}
	}
	return out
}

func toLangChainTools(defs []ToolDefinition) []llms.Tool {
	tools := make([]llms.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return tools
}

// infoInt reads a numeric GenerationInfo value; providers disagree on the
// concrete type.
func infoInt(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
