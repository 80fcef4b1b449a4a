package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/wikid/internal/catalog"
	"github.com/fyrsmithlabs/wikid/internal/orchestrator"
	"github.com/fyrsmithlabs/wikid/internal/store"
)

var (
	generateLanguage    string
	generateSkipMindMap bool
)

func init() {
	generateCmd.Flags().StringVarP(&generateLanguage, "language", "l", "en", "wiki language code")
	generateCmd.Flags().BoolVar(&generateSkipMindMap, "skip-mindmap", false, "skip mind map generation")
	rootCmd.AddCommand(generateCmd)
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a complete wiki for the repository",
	Long: `Generate runs the full pipeline against the repository at --repo:
it designs the catalog, writes a document for every catalog leaf, and
builds the architecture mind map.

Examples:
  # Generate an English wiki into ./wikid.db
  wikid generate --repo /src/myproject --db wikid.db

  # Generate in German
  wikid generate -r /src/myproject --db wikid.db -l de`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	bl := &store.BranchLanguage{Branch: ws.Branch, Language: generateLanguage}
	if err := a.store.CreateBranchLanguage(ctx, bl); err != nil {
		return fmt.Errorf("creating branch language: %w", err)
	}
	fmt.Printf("branch language: %s (%s, %s)\n", bl.ID, bl.Branch, bl.Language)

	opCtx := orchestrator.OperationContext{
		RepositoryID:     repositoryID(ws),
		BranchLanguageID: bl.ID,
		Workspace:        ws,
	}

	root, err := a.orch.GenerateCatalog(ctx, opCtx)
	if err != nil {
		return fmt.Errorf("generating catalog: %w", err)
	}
	fmt.Printf("catalog: %d pages\n", len(catalog.Leaves(root)))

	tally, err := a.orch.GenerateDocuments(ctx, opCtx)
	if err != nil {
		return fmt.Errorf("generating documents: %w", err)
	}
	fmt.Printf("documents: %d/%d generated (%d failed)\n", tally.Succeeded, tally.Total, tally.Failed)

	if !generateSkipMindMap {
		if err := a.orch.GenerateMindMap(ctx, opCtx); err != nil {
			return fmt.Errorf("generating mind map: %w", err)
		}
	}

	if !tally.FullySucceeded() {
		return fmt.Errorf("%d of %d documents failed; rerun them with 'wikid regenerate'", tally.Failed, tally.Total)
	}
	return nil
}
