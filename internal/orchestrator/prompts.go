package orchestrator

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/fyrsmithlabs/wikid/internal/collector"
)

// Prompt construction. Templates are parsed once at init; rendering failures
// are programmer errors and panic via template.Must + mustRender.

func mustRender(t *template.Template, data any) string {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		panic(fmt.Sprintf("rendering template %s: %v", t.Name(), err))
	}
	return b.String()
}

const catalogSystemPrompt = `You are a technical writer planning a wiki for a software repository.
You explore the repository with the provided tools, then design a catalog:
a tree of pages that together document the project for a new contributor.

Rules:
- Top-level sections cover: overview, getting started, architecture,
  core features, and anything the repository itself makes important.
- Only leaf nodes receive content later; parent nodes are grouping only.
- Node paths are stable slugs like "architecture/storage-layer".
- Keep the tree between 2 and 3 levels deep and under 40 leaves.

When the structure is final, call write_catalog exactly once with the full
tree as a JSON array of {path, title, children} nodes.`

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

var catalogUserTemplate = template.Must(template.New("catalog_user").Funcs(templateFuncs).Parse(
	`Design the wiki catalog for this repository.

Project type: {{.ProjectType}}

Directory tree:
{{.DirectoryTree}}
{{- if .ReadmeExcerpt}}

README excerpt:
{{.ReadmeExcerpt}}
{{- end}}
{{- if .KeyFiles}}

Key files: {{join .KeyFiles ", "}}
{{- end}}
{{- if .EntryPoints}}

Entry points: {{join .EntryPoints ", "}}
{{- end}}

Explore further with the tools before committing to a structure.`))

func catalogUserPrompt(rc *collector.Context) string {
	return mustRender(catalogUserTemplate, rc)
}

const documentSystemPrompt = `You are a technical writer producing one wiki page for a software repository.
Ground every claim in the actual source: read the relevant files with the
provided tools before writing. Cite concrete file paths and identifiers.

Write complete, self-contained markdown. Start with a single H1 matching the
page title. Prefer code excerpts over prose paraphrases of code.

When the page is complete, call write_document exactly once with the full
content and the list of repository files you consulted.`

var documentUserTemplate = template.Must(template.New("document_user").Parse(
	`Write the wiki page "{{.Title}}" (catalog path: {{.Path}}).

Project type: {{.ProjectType}}

Directory tree:
{{.DirectoryTree}}

Investigate the repository with the tools, then write the page.`))

type documentPromptData struct {
	Title         string
	Path          string
	ProjectType   string
	DirectoryTree string
}

func documentUserPrompt(title, path string, rc *collector.Context) string {
	return mustRender(documentUserTemplate, documentPromptData{
		Title:         title,
		Path:          path,
		ProjectType:   rc.ProjectType,
		DirectoryTree: rc.DirectoryTree,
	})
}

const incrementalSystemPrompt = `You maintain an existing wiki for a software repository after a code change.
You receive the list of changed files. Your job:

1. Read the current catalog with read_catalog.
2. Decide which pages the change impacts. Read them with read_document.
3. Rewrite impacted pages with write_document, grounded in the current source
   (read the changed files with read_file first).
4. If the change adds or removes whole areas of the codebase, restructure the
   catalog with write_catalog or retitle nodes with edit_catalog_title, then
   write content for any new leaves.

Leave unimpacted pages untouched. When nothing in the wiki is affected,
finish without calling any write tool and say so.`

var incrementalUserTemplate = template.Must(template.New("incremental_user").Funcs(templateFuncs).Parse(
	`The repository moved from commit {{.Previous}} to commit {{.Current}}.

Changed files:
{{range .ChangedFiles}}- {{.}}
{{end}}
Update the wiki accordingly.`))

type incrementalPromptData struct {
	Previous     string
	Current      string
	ChangedFiles []string
}

func incrementalUserPrompt(previous, current string, changedFiles []string) string {
	return mustRender(incrementalUserTemplate, incrementalPromptData{
		Previous:     previous,
		Current:      current,
		ChangedFiles: changedFiles,
	})
}

const mindMapSystemPrompt = `You summarize a software repository's architecture as a mind map.
Explore the repository with the provided tools, then produce a nested
markdown list: top-level nodes are the major subsystems, children are their
components, leaves name concrete packages or files.

Keep it under 60 nodes. When done, call write_mind_map exactly once.`

var mindMapUserTemplate = template.Must(template.New("mindmap_user").Parse(
	`Build the architecture mind map for this repository.

Project type: {{.ProjectType}}

Directory tree:
{{.DirectoryTree}}`))

func mindMapUserPrompt(rc *collector.Context) string {
	return mustRender(mindMapUserTemplate, rc)
}

// translationSystemPrompt instructs document translation. Code and technical
// tokens pass through verbatim; only prose is translated.
func translationSystemPrompt(targetLanguage string) string {
	return fmt.Sprintf(`You translate technical documentation into %s.

Rules:
- Translate prose only. Keep fenced code blocks, inline code, file paths,
  URLs, and identifiers exactly as they are, byte for byte.
- Preserve the markdown structure: same headings, lists, tables, links.
- Output only the translated document, nothing else.`, targetLanguage)
}

// titleTranslationPrompt asks for a bare translated title.
func titleTranslationPrompt(title, targetLanguage string) string {
	return fmt.Sprintf("Translate this wiki page title into %s. Return only the translated title, nothing else.\n\n%s",
		targetLanguage, title)
}
