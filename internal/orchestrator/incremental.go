package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wikid/internal/agent"
)

// IncrementalUpdate reconciles an existing wiki with a code change. The agent
// receives the changed file list plus read/edit/write access to the catalog
// and documents, and decides itself which pages the change impacts.
//
// An empty change set is a no-op.
func (o *Orchestrator) IncrementalUpdate(ctx context.Context, opCtx OperationContext, changedFiles []string) error {
	ctx = o.opContext(ctx, opCtx, OpIncrementalUpdate)

	if len(changedFiles) == 0 {
		o.logger.Info(ctx, "no changed files, wiki is current")
		return nil
	}
	if _, err := o.store.GetTree(ctx, opCtx.BranchLanguageID); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	o.progress.Progress(ctx, fmt.Sprintf("updating wiki for %d changed files", len(changedFiles)))

	tools, err := agent.NewToolset(
		fileTools(opCtx.Workspace.WorkDir),
		o.catalogReadTools(opCtx.BranchLanguageID),
		o.catalogWriteTools(opCtx.BranchLanguageID, nil),
		o.documentEditTools(opCtx.BranchLanguageID),
	)
	if err != nil {
		return err
	}

	sess := &agent.Session{
		Model:        o.cfg.ContentModel,
		SystemPrompt: incrementalSystemPrompt,
		UserMessage: incrementalUserPrompt(
			opCtx.Workspace.PreviousCommit,
			opCtx.Workspace.Commit,
			changedFiles),
		Tools:           tools,
		MaxOutputTokens: o.cfg.MaxOutputTokens,
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.DocumentTimeout())
	defer cancel()

	if _, err := o.executeWithRetry(callCtx, opCtx, sess, OpIncrementalUpdate); err != nil {
		return err
	}

	o.logger.Info(ctx, "incremental update finished",
		zap.Int("changed_files", len(changedFiles)))
	return nil
}
