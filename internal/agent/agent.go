// Package agent runs tool-using model sessions.
//
// A session is one (model, system prompt, user message, toolset) unit of
// work: the runner sends messages, executes the tool calls the model makes,
// feeds results back, and loops until the model stops calling tools. Token
// usage is accumulated across every round trip. The session is the unit the
// orchestrator retries.
//
// Provider-specific wire formats stay inside the Provider implementation;
// the runner only sees AgentEvent variants and Completion values.
package agent

import "context"

// EventType discriminates streamed agent events.
type EventType int

const (
	// EventText is a chunk of emitted text.
	EventText EventType = iota
	// EventToolCall is a completed tool invocation request.
	EventToolCall
	// EventUsage reports token consumption for one round trip.
	EventUsage
	// EventDone marks the end of one provider call.
	EventDone
)

// Event is one streamed occurrence during a provider call. Exactly one of
// the payload fields is set, matching Type.
type Event struct {
	Type     EventType
	Text     string
	ToolCall *ToolCallEvent
	Usage    *Usage
}

// ToolCallEvent is a model-requested tool invocation.
type ToolCallEvent struct {
	ID        string
	Name      string
	Arguments string
}

// Usage is token consumption for one provider round trip.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Role identifies a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one conversation turn in provider-neutral form.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCallEvent
	ToolResults []ToolResult
}

// ToolResult carries a tool's output back to the model.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// Request is one provider call.
type Request struct {
	Model           string
	Messages        []Message
	Tools           []ToolDefinition
	MaxOutputTokens int
}

// Completion is the provider's final answer for one call.
type Completion struct {
	Text      string
	ToolCalls []ToolCallEvent
	Usage     Usage
}

// Provider executes one model call, optionally streaming events through
// emit (which may be nil). Implementations translate their wire format into
// Event variants; callers never see provider payload shapes.
type Provider interface {
	Complete(ctx context.Context, req *Request, emit func(Event)) (*Completion, error)
}
