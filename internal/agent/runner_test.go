package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns canned completions in order, then fails.
type scriptedProvider struct {
	completions []*Completion
	errs        []error
	calls       int
	requests    []*Request
}

func (p *scriptedProvider) Complete(ctx context.Context, req *Request, emit func(Event)) (*Completion, error) {
	i := p.calls
	p.calls++
	p.requests = append(p.requests, req)
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.completions) {
		return nil, errors.New("script exhausted")
	}
	return p.completions[i], nil
}

func echoToolset(t *testing.T, log *[]string) *Toolset {
	t.Helper()
	ts, err := NewToolset([]Tool{{
		ToolDefinition: ToolDefinition{
			Name:        "echo",
			Description: "echoes its input",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"text": map[string]any{"type": "string"}},
			},
		},
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			*log = append(*log, in.Text)
			return "echoed: " + in.Text, nil
		},
	}})
	require.NoError(t, err)
	return ts
}

func TestRunToolLoop(t *testing.T) {
	var toolLog []string
	provider := &scriptedProvider{
		completions: []*Completion{
			{
				ToolCalls: []ToolCallEvent{{ID: "c1", Name: "echo", Arguments: `{"text":"hi"}`}},
				Usage:     Usage{InputTokens: 10, OutputTokens: 5},
			},
			{
				Text:  "all done",
				Usage: Usage{InputTokens: 20, OutputTokens: 7},
			},
		},
	}

	runner := NewRunner(provider, nil, 0)
	res, err := runner.Run(context.Background(), &Session{
		Model:        "test-model",
		SystemPrompt: "you are a test",
		UserMessage:  "go",
		Tools:        echoToolset(t, &toolLog),
	})
	require.NoError(t, err)

	assert.Equal(t, "all done", res.Text)
	assert.Equal(t, 30, res.InputTokens)
	assert.Equal(t, 12, res.OutputTokens)
	assert.Equal(t, 2, res.Turns)
	assert.Equal(t, []string{"hi"}, toolLog)

	// Second request must carry the assistant tool call and the tool result.
	second := provider.requests[1]
	require.Len(t, second.Messages, 4)
	assert.Equal(t, RoleAssistant, second.Messages[2].Role)
	assert.Equal(t, RoleTool, second.Messages[3].Role)
	assert.Equal(t, "echoed: hi", second.Messages[3].ToolResults[0].Content)
}

func TestRunUnknownToolReportedToModel(t *testing.T) {
	var toolLog []string
	provider := &scriptedProvider{
		completions: []*Completion{
			{
				ToolCalls: []ToolCallEvent{{ID: "c1", Name: "nope", Arguments: `{}`}},
				Usage:     Usage{InputTokens: 1, OutputTokens: 1},
			},
			{Text: "recovered", Usage: Usage{InputTokens: 1, OutputTokens: 1}},
		},
	}

	runner := NewRunner(provider, nil, 0)
	res, err := runner.Run(context.Background(), &Session{
		Tools: echoToolset(t, &toolLog),
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Text)

	result := provider.requests[1].Messages[3].ToolResults[0]
	assert.Contains(t, result.Content, "unknown tool")
}

func TestRunToolCallAgainstToolFreeSession(t *testing.T) {
	// Gateways sometimes return tool calls even when no tools were
	// advertised. The call is reported back as unknown, not a crash.
	provider := &scriptedProvider{
		completions: []*Completion{
			{
				ToolCalls: []ToolCallEvent{{ID: "c1", Name: "read_file", Arguments: `{"path":"go.mod"}`}},
				Usage:     Usage{InputTokens: 5, OutputTokens: 2},
			},
			{Text: "plain answer", Usage: Usage{InputTokens: 5, OutputTokens: 3}},
		},
	}

	runner := NewRunner(provider, nil, 0)
	res, err := runner.Run(context.Background(), &Session{UserMessage: "translate this"})
	require.NoError(t, err)
	assert.Equal(t, "plain answer", res.Text)

	result := provider.requests[1].Messages[3].ToolResults[0]
	assert.Contains(t, result.Content, "unknown tool")
}

func TestRunProviderErrorKeepsPartialUsage(t *testing.T) {
	provider := &scriptedProvider{
		completions: []*Completion{
			{
				ToolCalls: []ToolCallEvent{{ID: "c1", Name: "echo", Arguments: `{"text":"x"}`}},
				Usage:     Usage{InputTokens: 50, OutputTokens: 3},
			},
			nil,
		},
		errs: []error{nil, errors.New("boom")},
	}

	var toolLog []string
	runner := NewRunner(provider, nil, 0)
	res, err := runner.Run(context.Background(), &Session{Tools: echoToolset(t, &toolLog)})
	require.Error(t, err)
	require.NotNil(t, res, "partial usage must survive the failure")
	assert.Equal(t, 50, res.InputTokens)
}

func TestRunFirstCallFailureReturnsNilResult(t *testing.T) {
	provider := &scriptedProvider{errs: []error{errors.New("boom")}}
	runner := NewRunner(provider, nil, 0)

	res, err := runner.Run(context.Background(), &Session{})
	require.Error(t, err)
	assert.Nil(t, res)
}

func TestRunTurnLimit(t *testing.T) {
	// Provider that always asks for another tool call.
	looping := &loopingProvider{}
	var toolLog []string

	runner := NewRunner(looping, nil, 3)
	res, err := runner.Run(context.Background(), &Session{Tools: echoToolset(t, &toolLog)})
	require.ErrorIs(t, err, ErrTooManyTurns)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Turns)
}

type loopingProvider struct{}

func (p *loopingProvider) Complete(ctx context.Context, req *Request, emit func(Event)) (*Completion, error) {
	return &Completion{
		ToolCalls: []ToolCallEvent{{ID: "c", Name: "echo", Arguments: `{"text":"again"}`}},
		Usage:     Usage{InputTokens: 1, OutputTokens: 1},
	}, nil
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &scriptedProvider{}
	runner := NewRunner(provider, nil, 0)
	_, err := runner.Run(ctx, &Session{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, provider.calls)
}
