package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wikid/internal/agent"
	"github.com/fyrsmithlabs/wikid/internal/store"
)

// GenerateMindMap produces the architecture mind map for the operation's
// branch language. Status moves pending -> processing -> completed, or failed
// when the session errors; a failed run never leaves processing behind.
func (o *Orchestrator) GenerateMindMap(ctx context.Context, opCtx OperationContext) error {
	ctx = o.opContext(ctx, opCtx, OpGenerateMindMap)
	o.progress.Progress(ctx, "generating mind map")

	if err := o.store.SetMindMap(ctx, opCtx.BranchLanguageID, store.MindMapProcessing, ""); err != nil {
		return fmt.Errorf("marking mind map processing: %w", err)
	}

	if err := o.generateMindMap(ctx, opCtx); err != nil {
		// Best effort; the original error is the one that matters.
		serr := o.store.SetMindMap(context.WithoutCancel(ctx), opCtx.BranchLanguageID, store.MindMapFailed, "")
		if serr != nil {
			o.logger.Error(ctx, "failed to mark mind map failed", zap.Error(serr))
		}
		return err
	}
	return nil
}

func (o *Orchestrator) generateMindMap(ctx context.Context, opCtx OperationContext) error {
	rc, err := o.collectContext(opCtx)
	if err != nil {
		return err
	}

	tools, err := agent.NewToolset(
		fileTools(opCtx.Workspace.WorkDir),
		o.mindMapTools(opCtx.BranchLanguageID),
	)
	if err != nil {
		return err
	}

	sess := &agent.Session{
		Model:           o.cfg.ContentModel,
		SystemPrompt:    mindMapSystemPrompt,
		UserMessage:     mindMapUserPrompt(rc),
		Tools:           tools,
		MaxOutputTokens: o.cfg.MaxOutputTokens,
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.DocumentTimeout())
	defer cancel()

	res, err := o.executeWithRetry(callCtx, opCtx, sess, OpGenerateMindMap)
	if err != nil {
		return err
	}

	bl, err := o.store.GetBranchLanguage(ctx, opCtx.BranchLanguageID)
	if err != nil {
		return err
	}
	if bl.MindMapStatus == store.MindMapCompleted && bl.MindMapContent != "" {
		return nil
	}

	// write_mind_map was never called; salvage the text answer.
	if strings.TrimSpace(res.Text) == "" {
		return fmt.Errorf("%s: %w", OpGenerateMindMap, ErrEmptyResponse)
	}
	return o.store.SetMindMap(ctx, opCtx.BranchLanguageID, store.MindMapCompleted, res.Text)
}
