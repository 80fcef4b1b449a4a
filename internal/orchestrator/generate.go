package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wikid/internal/agent"
	"github.com/fyrsmithlabs/wikid/internal/catalog"
	"github.com/fyrsmithlabs/wikid/internal/collector"
	"github.com/fyrsmithlabs/wikid/internal/store"
)

// collectContext derives prompt context from the operation's workspace using
// the configured bounds.
func (o *Orchestrator) collectContext(opCtx OperationContext) (*collector.Context, error) {
	rc, err := collector.Collect(opCtx.Workspace.WorkDir, collector.Options{
		MaxDepth:        o.cfg.DirectoryTreeMaxDepth,
		ReadmeMaxLength: o.cfg.ReadmeMaxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("collecting repository context: %w", err)
	}
	return rc, nil
}

// GenerateCatalog explores the repository and persists a validated catalog
// tree for the operation's branch language.
func (o *Orchestrator) GenerateCatalog(ctx context.Context, opCtx OperationContext) (*catalog.Node, error) {
	ctx = o.opContext(ctx, opCtx, OpGenerateCatalog)
	o.progress.Progress(ctx, "generating catalog")

	rc, err := o.collectContext(opCtx)
	if err != nil {
		return nil, err
	}

	var wrote atomic.Bool
	tools, err := agent.NewToolset(
		fileTools(opCtx.Workspace.WorkDir),
		o.catalogWriteTools(opCtx.BranchLanguageID, &wrote),
	)
	if err != nil {
		return nil, err
	}

	sess := &agent.Session{
		Model:           o.cfg.CatalogModel,
		SystemPrompt:    catalogSystemPrompt,
		UserMessage:     catalogUserPrompt(rc),
		Tools:           tools,
		MaxOutputTokens: o.cfg.MaxOutputTokens,
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.DocumentTimeout())
	defer cancel()

	res, err := o.executeWithRetry(callCtx, opCtx, sess, OpGenerateCatalog)
	if err != nil {
		return nil, err
	}

	// Only a fresh write_catalog counts; a tree left over from an earlier run
	// must not mask a session that produced nothing.
	if wrote.Load() {
		root, terr := o.store.GetTree(ctx, opCtx.BranchLanguageID)
		if terr != nil {
			return nil, terr
		}
		o.logger.Info(ctx, "catalog generated",
			zap.Int("leaves", len(catalog.Leaves(root))))
		return root, nil
	}

	// The model answered in text instead of calling write_catalog. Salvage a
	// fenced or bare JSON tree from the final message.
	root, perr := parseCatalogText(res.Text)
	if perr != nil {
		return nil, fmt.Errorf("%s: %w: %w", OpGenerateCatalog, ErrEmptyResponse, perr)
	}
	if err := o.store.SetTree(ctx, opCtx.BranchLanguageID, root); err != nil {
		return nil, err
	}
	o.logger.Info(ctx, "catalog recovered from text response",
		zap.Int("leaves", len(catalog.Leaves(root))))
	return root, nil
}

// parseCatalogText extracts a catalog tree from a free-text model answer.
func parseCatalogText(text string) (*catalog.Node, error) {
	candidate := strings.TrimSpace(text)
	if candidate == "" {
		return nil, errors.New("empty response text")
	}
	if fenced := extractFencedJSON(candidate); fenced != "" {
		candidate = fenced
	}
	return catalog.Parse(json.RawMessage(candidate))
}

// extractFencedJSON returns the body of the first ```json or ``` fence, or "".
func extractFencedJSON(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return ""
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// GenerateDocuments writes content for every catalog leaf in parallel under
// the configured concurrency bound. Per-leaf failures are tallied, never
// fatal; only cancellation aborts the batch.
func (o *Orchestrator) GenerateDocuments(ctx context.Context, opCtx OperationContext) (Tally, error) {
	ctx = o.opContext(ctx, opCtx, OpGenerateDocuments)

	root, err := o.store.GetTree(ctx, opCtx.BranchLanguageID)
	if err != nil {
		return Tally{}, fmt.Errorf("loading catalog: %w", err)
	}
	leaves := catalog.Leaves(root)
	if len(leaves) == 0 {
		return Tally{}, fmt.Errorf("loading catalog: %w", catalog.ErrEmptyCatalog)
	}

	rc, err := o.collectContext(opCtx)
	if err != nil {
		return Tally{}, err
	}

	o.progress.Progress(ctx, fmt.Sprintf("generating %d documents", len(leaves)))

	tally, err := o.forEach(ctx, OpGenerateDocuments, len(leaves), o.cfg.DocumentTimeout(), func(itemCtx context.Context, i int) error {
		return o.generateDocument(itemCtx, opCtx, OpGenerateDocuments, leaves[i], rc)
	})
	if err != nil {
		return tally, err
	}

	o.logger.Info(ctx, "document generation finished",
		zap.Int("total", tally.Total),
		zap.Int("succeeded", tally.Succeeded),
		zap.Int("failed", tally.Failed))
	return tally, nil
}

// generateDocument produces content for one catalog leaf. The write tool is
// bound to the leaf's path so parallel tasks cannot collide.
func (o *Orchestrator) generateDocument(ctx context.Context, opCtx OperationContext, opName string, leaf *catalog.Node, rc *collector.Context) error {
	tools, err := agent.NewToolset(
		fileTools(opCtx.Workspace.WorkDir),
		o.documentWriteTool(opCtx.BranchLanguageID, leaf.Path),
	)
	if err != nil {
		return err
	}

	sess := &agent.Session{
		Model:           o.cfg.ContentModel,
		SystemPrompt:    documentSystemPrompt,
		UserMessage:     documentUserPrompt(leaf.Title, leaf.Path, rc),
		Tools:           tools,
		MaxOutputTokens: o.cfg.MaxOutputTokens,
	}

	res, err := o.executeWithRetry(ctx, opCtx, sess, opName)
	if err != nil {
		return fmt.Errorf("document %s: %w", leaf.Path, err)
	}

	// Verify the tool actually wrote; fall back to the text answer.
	if _, derr := o.store.ReadDocument(ctx, opCtx.BranchLanguageID, leaf.Path); derr == nil {
		return nil
	}
	if strings.TrimSpace(res.Text) == "" {
		return fmt.Errorf("document %s: %w", leaf.Path, ErrEmptyResponse)
	}
	return o.store.WriteDocument(ctx, opCtx.BranchLanguageID, &store.Document{
		Path:    leaf.Path,
		Content: res.Text,
	})
}

// RegenerateDocument rebuilds content for one existing catalog leaf.
func (o *Orchestrator) RegenerateDocument(ctx context.Context, opCtx OperationContext, path string) error {
	ctx = o.opContext(ctx, opCtx, OpRegenerateDocument)

	node, err := o.store.FindByPath(ctx, opCtx.BranchLanguageID, path)
	if err != nil {
		return fmt.Errorf("catalog node %s: %w", path, err)
	}
	if !node.IsLeaf() {
		return fmt.Errorf("catalog node %s has children and cannot hold content", path)
	}

	rc, err := o.collectContext(opCtx)
	if err != nil {
		return err
	}

	o.progress.Progress(ctx, fmt.Sprintf("regenerating document %s", path))

	itemCtx, cancel := context.WithTimeout(ctx, o.cfg.DocumentTimeout())
	defer cancel()
	return o.generateDocument(itemCtx, opCtx, OpRegenerateDocument, node, rc)
}
