package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/wikid/internal/orchestrator"
)

var (
	translateSource   string
	translateLanguage string
)

func init() {
	translateCmd.Flags().StringVarP(&translateSource, "branch-language", "b", "", "source branch language id (required)")
	translateCmd.Flags().StringVarP(&translateLanguage, "language", "l", "", "target language code (required)")
	_ = translateCmd.MarkFlagRequired("branch-language")
	_ = translateCmd.MarkFlagRequired("language")
	rootCmd.AddCommand(translateCmd)
}

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate an existing wiki into another language",
	Long: `Translate derives a new wiki from an existing one: catalog titles
first, then every document, then the mind map. Code blocks, paths, and
identifiers pass through untranslated.

Example:
  wikid translate --db wikid.db -b <branch-language-id> -l ja`,
	Args: cobra.NoArgs,
	RunE: runTranslate,
}

func runTranslate(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	opCtx := orchestrator.OperationContext{BranchLanguageID: translateSource}
	result, err := a.orch.TranslateWiki(ctx, opCtx, translateLanguage)
	if err != nil {
		return fmt.Errorf("translating wiki: %w", err)
	}

	fmt.Printf("translated branch language: %s\n", result.TargetBranchLanguageID)
	fmt.Printf("titles: %d/%d translated\n", result.Titles.Succeeded, result.Titles.Total)
	fmt.Printf("documents: %d/%d translated\n", result.Documents.Succeeded, result.Documents.Total)
	if !result.MindMapTranslated {
		fmt.Println("mind map: not translated")
	}
	return nil
}
