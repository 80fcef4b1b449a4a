package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownTool indicates the model called a tool outside the session's
// toolset.
var ErrUnknownTool = errors.New("unknown tool")

// ToolDefinition describes one tool to the model. Parameters is a JSON
// schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Tool is a callable capability bound into a session.
type Tool struct {
	ToolDefinition
	Run func(ctx context.Context, args json.RawMessage) (string, error)
}

// Toolset is the capability set of one session, composed explicitly per
// operation from capability groups (file read, catalog write, document
// write, mind map). Later groups cannot shadow earlier tool names.
type Toolset struct {
	order  []string
	byName map[string]Tool
}

// NewToolset composes capability groups into one set.
func NewToolset(groups ...[]Tool) (*Toolset, error) {
	ts := &Toolset{byName: make(map[string]Tool)}
	for _, group := range groups {
		for _, tool := range group {
			if tool.Name == "" || tool.Run == nil {
				return nil, fmt.Errorf("tool %q is incomplete", tool.Name)
			}
			if _, ok := ts.byName[tool.Name]; ok {
				return nil, fmt.Errorf("duplicate tool name %q", tool.Name)
			}
			ts.byName[tool.Name] = tool
			ts.order = append(ts.order, tool.Name)
		}
	}
	return ts, nil
}

// Definitions returns tool definitions in composition order.
func (ts *Toolset) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(ts.order))
	for _, name := range ts.order {
		defs = append(defs, ts.byName[name].ToolDefinition)
	}
	return defs
}

// Len returns the number of tools in the set.
func (ts *Toolset) Len() int {
	return len(ts.order)
}

// Dispatch runs the named tool. Unknown names return ErrUnknownTool so the
// runner can report them back to the model instead of aborting the session.
// A nil receiver is valid: tool-free sessions still receive hallucinated
// tool calls from some gateways, and those must not crash the process.
func (ts *Toolset) Dispatch(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if ts == nil {
		return "", fmt.Errorf("%w: %s (session has no tools)", ErrUnknownTool, name)
	}
	tool, ok := ts.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return tool.Run(ctx, args)
}
