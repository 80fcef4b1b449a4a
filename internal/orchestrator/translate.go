package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wikid/internal/agent"
	"github.com/fyrsmithlabs/wikid/internal/catalog"
	"github.com/fyrsmithlabs/wikid/internal/store"
)

// TranslationResult reports one wiki translation run per phase.
type TranslationResult struct {
	TargetBranchLanguageID string
	Titles                 Tally
	Documents              Tally
	MindMapTranslated      bool
}

// TranslateWiki derives a complete wiki in targetLanguage from the source
// branch language identified by opCtx.
//
// Phases run in order: the catalog is translated and persisted first, so the
// target wiki always has a navigable structure before any document lands;
// then documents fan out in parallel; the mind map goes last and its failure
// is recorded as status, never propagated. Title or document failures keep
// the source text or skip the item; only cancellation aborts the run.
func (o *Orchestrator) TranslateWiki(ctx context.Context, opCtx OperationContext, targetLanguage string) (*TranslationResult, error) {
	targetLanguage = store.NormalizeLanguage(targetLanguage)
	if targetLanguage == "" {
		return nil, errors.New("target language is required")
	}

	source, err := o.store.GetBranchLanguage(ctx, opCtx.BranchLanguageID)
	if err != nil {
		return nil, fmt.Errorf("loading source branch language: %w", err)
	}
	if source.Language == targetLanguage {
		return nil, fmt.Errorf("target language %q equals the source language", targetLanguage)
	}

	target := &store.BranchLanguage{
		ID:       uuid.NewString(),
		Branch:   source.Branch,
		Language: targetLanguage,
	}
	if err := o.store.CreateBranchLanguage(ctx, target); err != nil {
		return nil, fmt.Errorf("creating target branch language: %w", err)
	}

	targetCtx := opCtx
	targetCtx.BranchLanguageID = target.ID

	result := &TranslationResult{TargetBranchLanguageID: target.ID}

	// Phase 1: catalog. The translated tree must be persisted before any
	// document so the target wiki never holds orphaned content.
	root, titles, err := o.translateCatalog(ctx, opCtx, targetCtx, targetLanguage)
	if err != nil {
		return result, err
	}
	result.Titles = titles

	// Phase 2: documents.
	docs, err := o.translateDocuments(ctx, opCtx, targetCtx, root, targetLanguage)
	result.Documents = docs
	if err != nil {
		return result, err
	}

	// Phase 3: mind map, best effort. Only cancellation propagates.
	translated, err := o.translateMindMap(ctx, opCtx, targetCtx, source, targetLanguage)
	if err != nil {
		return result, err
	}
	result.MindMapTranslated = translated

	o.logger.Info(o.opContext(ctx, targetCtx, OpTranslateDocuments), "wiki translation finished",
		zap.String("language", targetLanguage),
		zap.Int("titles_translated", result.Titles.Succeeded),
		zap.Int("documents_translated", result.Documents.Succeeded),
		zap.Bool("mindmap_translated", result.MindMapTranslated))
	return result, nil
}

// translateCatalog clones the source tree, translates node titles in
// parallel, and persists the result under the target branch language. A
// failed title keeps its source text; structure and paths never change.
func (o *Orchestrator) translateCatalog(ctx context.Context, srcCtx, dstCtx OperationContext, targetLanguage string) (*catalog.Node, Tally, error) {
	opLogCtx := o.opContext(ctx, dstCtx, OpTranslateCatalog)
	o.progress.Progress(opLogCtx, "translating catalog")

	srcRoot, err := o.store.GetTree(ctx, srcCtx.BranchLanguageID)
	if err != nil {
		return nil, Tally{}, fmt.Errorf("loading source catalog: %w", err)
	}
	root := srcRoot.Clone()
	nodes := catalog.Flatten(root)

	tally, err := o.forEach(opLogCtx, OpTranslateCatalog, len(nodes), o.cfg.TitleTimeout(), func(itemCtx context.Context, i int) error {
		translated, terr := o.translateText(itemCtx, dstCtx, OpTranslateCatalog,
			titleTranslationPrompt(nodes[i].Title, targetLanguage), "")
		if terr != nil {
			return fmt.Errorf("title %s: %w", nodes[i].Path, terr)
		}
		nodes[i].Title = translated
		return nil
	})
	if err != nil {
		return nil, tally, err
	}

	if err := o.store.SetTree(ctx, dstCtx.BranchLanguageID, root); err != nil {
		return nil, tally, fmt.Errorf("persisting translated catalog: %w", err)
	}
	return root, tally, nil
}

// translateDocuments fans out over the leaves that have source content.
// Leaves without a source document are skipped with a warning; translated
// documents keep the source's consulted-files list.
func (o *Orchestrator) translateDocuments(ctx context.Context, srcCtx, dstCtx OperationContext, root *catalog.Node, targetLanguage string) (Tally, error) {
	opLogCtx := o.opContext(ctx, dstCtx, OpTranslateDocuments)

	var sources []*store.Document
	for _, leaf := range catalog.Leaves(root) {
		doc, err := o.store.ReadDocument(ctx, srcCtx.BranchLanguageID, leaf.Path)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				o.logger.Warn(opLogCtx, "leaf has no source document, skipping",
					zap.String("path", leaf.Path))
				continue
			}
			return Tally{}, fmt.Errorf("reading source document %s: %w", leaf.Path, err)
		}
		if strings.TrimSpace(doc.Content) == "" {
			o.logger.Warn(opLogCtx, "source document is empty, skipping",
				zap.String("path", leaf.Path))
			continue
		}
		sources = append(sources, doc)
	}

	o.progress.Progress(opLogCtx, fmt.Sprintf("translating %d documents", len(sources)))

	return o.forEach(opLogCtx, OpTranslateDocuments, len(sources), o.cfg.TranslationTimeout(), func(itemCtx context.Context, i int) error {
		src := sources[i]
		translated, err := o.translateText(itemCtx, dstCtx, OpTranslateDocuments,
			src.Content, translationSystemPrompt(targetLanguage))
		if err != nil {
			return fmt.Errorf("document %s: %w", src.Path, err)
		}
		return o.store.WriteDocument(itemCtx, dstCtx.BranchLanguageID, &store.Document{
			Path:        src.Path,
			Content:     translated,
			SourceFiles: src.SourceFiles,
		})
	})
}

// translateMindMap copies the source mind map through translation. Failures
// land as MindMapFailed on the target and are reported as false; cancellation
// is returned instead, leaving the status untouched.
func (o *Orchestrator) translateMindMap(ctx context.Context, srcCtx, dstCtx OperationContext, source *store.BranchLanguage, targetLanguage string) (bool, error) {
	opLogCtx := o.opContext(ctx, dstCtx, OpTranslateMindMap)

	if source.MindMapStatus != store.MindMapCompleted || source.MindMapContent == "" {
		o.logger.Info(opLogCtx, "source has no completed mind map, skipping translation")
		return false, nil
	}

	err := func() error {
		if err := o.store.SetMindMap(ctx, dstCtx.BranchLanguageID, store.MindMapProcessing, ""); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(opLogCtx, o.cfg.TranslationTimeout())
		defer cancel()
		translated, err := o.translateText(callCtx, dstCtx, OpTranslateMindMap,
			source.MindMapContent, translationSystemPrompt(targetLanguage))
		if err != nil {
			return err
		}
		return o.store.SetMindMap(ctx, dstCtx.BranchLanguageID, store.MindMapCompleted, translated)
	}()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return false, err
		}
		o.logger.Warn(opLogCtx, "mind map translation failed", zap.Error(err))
		serr := o.store.SetMindMap(context.WithoutCancel(ctx), dstCtx.BranchLanguageID, store.MindMapFailed, "")
		if serr != nil {
			o.logger.Error(opLogCtx, "failed to mark mind map failed", zap.Error(serr))
		}
		return false, nil
	}
	return true, nil
}

// translateText runs one tool-free translation session and returns the
// model's text answer.
func (o *Orchestrator) translateText(ctx context.Context, opCtx OperationContext, opName, userMessage, systemPrompt string) (string, error) {
	sess := &agent.Session{
		Model:           o.cfg.TranslationModel,
		SystemPrompt:    systemPrompt,
		UserMessage:     userMessage,
		MaxOutputTokens: o.cfg.MaxOutputTokens,
	}
	res, err := o.executeWithRetry(ctx, opCtx, sess, opName)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
