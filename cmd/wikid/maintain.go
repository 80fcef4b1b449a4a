package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/wikid/internal/orchestrator"
)

var (
	maintainBranchLanguage string
	updateSinceCommit      string
)

func init() {
	for _, cmd := range []*cobra.Command{regenerateCmd, updateCmd, mindmapCmd} {
		cmd.Flags().StringVarP(&maintainBranchLanguage, "branch-language", "b", "", "branch language id (required)")
		_ = cmd.MarkFlagRequired("branch-language")
		rootCmd.AddCommand(cmd)
	}
	updateCmd.Flags().StringVar(&updateSinceCommit, "since", "", "previous commit to diff against (defaults to the parent of HEAD)")
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <catalog-path>",
	Short: "Regenerate the document for one catalog page",
	Example: `  wikid regenerate --db wikid.db -b <branch-language-id> internals/storage`,
	Args: cobra.ExactArgs(1),
	RunE: runRegenerate,
}

func runRegenerate(cmd *cobra.Command, args []string) error {
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

	opCtx := orchestrator.OperationContext{
		RepositoryID:     repositoryID(ws),
		BranchLanguageID: maintainBranchLanguage,
		Workspace:        ws,
	}
	if err := a.orch.RegenerateDocument(ctx, opCtx, args[0]); err != nil {
		return fmt.Errorf("regenerating %s: %w", args[0], err)
	}
	fmt.Printf("regenerated %s\n", args[0])
	return nil
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the wiki after a code change",
	Long: `Update diffs the repository against a previous commit and lets the
agent rework only the impacted pages. Without --since the parent of HEAD
is used. With no changed files the wiki is left untouched.

Example:
  wikid update --db wikid.db -b <branch-language-id> --since 4f2a91c`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
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
	if updateSinceCommit != "" {
		ws.PreviousCommit = updateSinceCommit
	} else {
		ws.PreviousCommit, err = ws.ParentCommit()
		if err != nil {
			return fmt.Errorf("detecting previous commit: %w", err)
		}
	}

	changed, err := ws.ChangedFiles(ctx)
	if err != nil {
		return fmt.Errorf("diffing %s..%s: %w", ws.PreviousCommit, ws.Commit, err)
	}
	fmt.Printf("changed files: %d\n", len(changed))

	opCtx := orchestrator.OperationContext{
		RepositoryID:     repositoryID(ws),
		BranchLanguageID: maintainBranchLanguage,
		Workspace:        ws,
	}
	return a.orch.IncrementalUpdate(ctx, opCtx, changed)
}

var mindmapCmd = &cobra.Command{
	Use:   "mindmap",
	Short: "Generate or refresh the architecture mind map",
	Args:  cobra.NoArgs,
	RunE:  runMindMap,
}

func runMindMap(cmd *cobra.Command, args []string) error {
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

	opCtx := orchestrator.OperationContext{
		RepositoryID:     repositoryID(ws),
		BranchLanguageID: maintainBranchLanguage,
		Workspace:        ws,
	}
	if err := a.orch.GenerateMindMap(ctx, opCtx); err != nil {
		return fmt.Errorf("generating mind map: %w", err)
	}
	fmt.Println("mind map generated")
	return nil
}
