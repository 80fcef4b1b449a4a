package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wikid/internal/logging"
)

// DefaultMaxTurns bounds tool-call round trips within one session.
const DefaultMaxTurns = 32

// ErrTooManyTurns indicates the model kept calling tools past the turn
// bound.
var ErrTooManyTurns = errors.New("session exceeded tool-call turn limit")

// Session is one unit of agent work.
type Session struct {
	Model           string
	SystemPrompt    string
	UserMessage     string
	Tools           *Toolset
	MaxOutputTokens int
}

// Result is the outcome of one session. Usage is populated even when the
// session ultimately failed, so callers can account partial consumption.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Turns        int
}

// Runner drives sessions against a Provider.
type Runner struct {
	provider Provider
	logger   *logging.Logger
	maxTurns int
}

// NewRunner creates a runner. A zero maxTurns selects DefaultMaxTurns.
func NewRunner(provider Provider, logger *logging.Logger, maxTurns int) *Runner {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{provider: provider, logger: logger, maxTurns: maxTurns}
}

// Run executes one session to completion.
//
// The returned Result is non-nil whenever at least one provider call
// finished, even on error, so accumulated token usage is never lost.
func (r *Runner) Run(ctx context.Context, sess *Session) (*Result, error) {
	messages := []Message{
		{Role: RoleSystem, Text: sess.SystemPrompt},
		{Role: RoleUser, Text: sess.UserMessage},
	}

	var defs []ToolDefinition
	if sess.Tools != nil {
		defs = sess.Tools.Definitions()
	}

	res := &Result{}

	for turn := 1; turn <= r.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nonEmpty(res), err
		}

		completion, err := r.provider.Complete(ctx, &Request{
			Model:           sess.Model,
			Messages:        messages,
			Tools:           defs,
			MaxOutputTokens: sess.MaxOutputTokens,
		}, nil)
		if err != nil {
			return nonEmpty(res), err
		}

		res.Turns = turn
		res.InputTokens += completion.Usage.InputTokens
		res.OutputTokens += completion.Usage.OutputTokens
		if completion.Text != "" {
			res.Text = completion.Text
		}

		if len(completion.ToolCalls) == 0 {
			return res, nil
		}

		messages = append(messages, Message{
			Role:      RoleAssistant,
			Text:      completion.Text,
			ToolCalls: completion.ToolCalls,
		})

		results := make([]ToolResult, 0, len(completion.ToolCalls))
		for _, call := range completion.ToolCalls {
			output, err := sess.Tools.Dispatch(ctx, call.Name, json.RawMessage(call.Arguments))
			if err != nil {
				if ctx.Err() != nil {
					return nonEmpty(res), ctx.Err()
				}
				// Tool failures go back to the model; the session decides
				// whether to recover or give up.
				r.logger.Warn(ctx, "tool call failed",
					zap.String("tool", call.Name), zap.Error(err))
				output = fmt.Sprintf("error: %v", err)
			}
			results = append(results, ToolResult{CallID: call.ID, Name: call.Name, Content: output})
		}
		messages = append(messages, Message{Role: RoleTool, ToolResults: results})
	}

	return nonEmpty(res), fmt.Errorf("%w (%d turns)", ErrTooManyTurns, r.maxTurns)
}

// nonEmpty returns res when it has accounted usage, nil otherwise, so
// callers can distinguish "failed before any round trip" from partial work.
func nonEmpty(res *Result) *Result {
	if res.InputTokens == 0 && res.OutputTokens == 0 && res.Turns == 0 {
		return nil
	}
	return res
}
