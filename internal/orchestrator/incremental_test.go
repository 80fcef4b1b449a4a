package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/wikid/internal/agent"
	"github.com/fyrsmithlabs/wikid/internal/catalog"
	"github.com/fyrsmithlabs/wikid/internal/store"
)

func TestIncrementalUpdateNoChangesIsNoOp(t *testing.T) {
	calls := 0
	provider := providerFunc(func(ctx context.Context, req *agent.Request, emit func(agent.Event)) (*agent.Completion, error) {
		calls++
		return textCompletion("done", 1, 1), nil
	})
	o, _, _ := newTestOrchestrator(t, provider)
	opCtx := OperationContext{RepositoryID: "repo-1", BranchLanguageID: "bl-1", Workspace: newTestWorkspace(t)}

	require.NoError(t, o.IncrementalUpdate(context.Background(), opCtx, nil))
	assert.Zero(t, calls)
}

func TestIncrementalUpdateRequiresCatalog(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, wikiProvider())
	opCtx := OperationContext{RepositoryID: "repo-1", BranchLanguageID: "bl-1", Workspace: newTestWorkspace(t)}

	err := o.IncrementalUpdate(context.Background(), opCtx, []string{"main.go"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIncrementalUpdateRewritesImpactedDocument(t *testing.T) {
	// The fake maintainer reads the changed file's document and rewrites it.
	provider := providerFunc(func(ctx context.Context, req *agent.Request, emit func(agent.Event)) (*agent.Completion, error) {
		if lastMessageIsToolResult(req) {
			last := req.Messages[len(req.Messages)-1]
			if last.ToolResults[0].Name == "read_document" {
				args := fmt.Sprintf(`{"path": "overview", "content": "# Overview\n\nUpdated after %s changed.\n"}`, "main.go")
				return &agent.Completion{
					ToolCalls: []agent.ToolCallEvent{{ID: "w1", Name: "write_document", Arguments: args}},
					Usage:     agent.Usage{InputTokens: 30, OutputTokens: 20},
				}, nil
			}
			return textCompletion("updated", 10, 5), nil
		}
		return &agent.Completion{
			ToolCalls: []agent.ToolCallEvent{{ID: "r1", Name: "read_document", Arguments: `{"path": "overview"}`}},
			Usage:     agent.Usage{InputTokens: 50, OutputTokens: 10},
		}, nil
	})
	o, mem, _ := newTestOrchestrator(t, provider)
	ctx := context.Background()

	root, err := catalog.Parse([]byte(testCatalogJSON))
	require.NoError(t, err)
	require.NoError(t, mem.SetTree(ctx, "bl-1", root))
	require.NoError(t, mem.WriteDocument(ctx, "bl-1", &store.Document{Path: "overview", Content: "# Overview\n\nStale.\n"}))

	opCtx := OperationContext{RepositoryID: "repo-1", BranchLanguageID: "bl-1", Workspace: newTestWorkspace(t)}
	require.NoError(t, o.IncrementalUpdate(ctx, opCtx, []string{"main.go"}))

	doc, err := mem.ReadDocument(ctx, "bl-1", "overview")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "Updated after main.go changed")
}

func TestIncrementalUpdateRejectsWritesToGroupingNodes(t *testing.T) {
	// A write to a non-leaf path must come back to the model as a tool error,
	// not land in the store.
	provider := providerFunc(func(ctx context.Context, req *agent.Request, emit func(agent.Event)) (*agent.Completion, error) {
		if lastMessageIsToolResult(req) {
			last := req.Messages[len(req.Messages)-1]
			assert.Contains(t, last.ToolResults[0].Content, "cannot hold content")
			return textCompletion("giving up", 10, 5), nil
		}
		return &agent.Completion{
			ToolCalls: []agent.ToolCallEvent{{ID: "w1", Name: "write_document",
				Arguments: `{"path": "internals", "content": "# Internals"}`}},
			Usage: agent.Usage{InputTokens: 50, OutputTokens: 10},
		}, nil
	})
	o, mem, _ := newTestOrchestrator(t, provider)
	ctx := context.Background()

	root, err := catalog.Parse([]byte(testCatalogJSON))
	require.NoError(t, err)
	require.NoError(t, mem.SetTree(ctx, "bl-1", root))

	opCtx := OperationContext{RepositoryID: "repo-1", BranchLanguageID: "bl-1", Workspace: newTestWorkspace(t)}
	require.NoError(t, o.IncrementalUpdate(ctx, opCtx, []string{"internal/engine.go"}))

	_, err = mem.ReadDocument(ctx, "bl-1", "internals")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
