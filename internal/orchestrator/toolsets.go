package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/fyrsmithlabs/wikid/internal/agent"
	"github.com/fyrsmithlabs/wikid/internal/catalog"
	"github.com/fyrsmithlabs/wikid/internal/collector"
	"github.com/fyrsmithlabs/wikid/internal/store"
)

// Tool capability groups. Each operation composes exactly the capabilities
// its agent needs; nothing is shared implicitly.

const (
	maxToolFileBytes = 128 * 1024
	maxGrepMatches   = 100
)

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func objectSchema(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// resolveInWorkDir joins a model-supplied relative path against workDir and
// rejects escapes.
func resolveInWorkDir(workDir, rel string) (string, error) {
	if rel == "" {
		rel = "."
	}
	abs := filepath.Join(workDir, filepath.Clean(rel))
	relBack, err := filepath.Rel(workDir, abs)
	if err != nil || relBack == ".." || strings.HasPrefix(relBack, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the repository", rel)
	}
	return abs, nil
}

// fileTools is the read-only repository capability: read_file, list_files,
// grep_files, all confined to workDir.
func fileTools(workDir string) []agent.Tool {
	return []agent.Tool{
		{
			ToolDefinition: agent.ToolDefinition{
				Name:        "read_file",
				Description: "Read a file from the repository. Returns at most 128KB.",
				Parameters: objectSchema([]string{"path"}, map[string]any{
					"path": stringProp("Repository-relative file path"),
				}),
			},
			Run: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Path string `json:"path"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
				abs, err := resolveInWorkDir(workDir, in.Path)
				if err != nil {
					return "", err
				}
				content, err := os.ReadFile(abs)
				if err != nil {
					return "", fmt.Errorf("reading %s: %w", in.Path, err)
				}
				if len(content) > maxToolFileBytes {
					return string(content[:maxToolFileBytes]) + "\n... (truncated)", nil
				}
				return string(content), nil
			},
		},
		{
			ToolDefinition: agent.ToolDefinition{
				Name:        "list_files",
				Description: "List entries of a repository directory. Directories end with '/'.",
				Parameters: objectSchema(nil, map[string]any{
					"path": stringProp("Repository-relative directory path; empty for the root"),
				}),
			},
			Run: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Path string `json:"path"`
				}
				if len(args) > 0 {
					if err := json.Unmarshal(args, &in); err != nil {
						return "", fmt.Errorf("invalid arguments: %w", err)
					}
				}
				abs, err := resolveInWorkDir(workDir, in.Path)
				if err != nil {
					return "", err
				}
				entries, err := os.ReadDir(abs)
				if err != nil {
					return "", fmt.Errorf("listing %s: %w", in.Path, err)
				}
				var b strings.Builder
				for _, e := range entries {
					if e.IsDir() {
						if collector.SkipDir(e.Name()) {
							continue
						}
						fmt.Fprintf(&b, "%s/\n", e.Name())
					} else {
						fmt.Fprintln(&b, e.Name())
					}
				}
				return b.String(), nil
			},
		},
		{
			ToolDefinition: agent.ToolDefinition{
				Name:        "grep_files",
				Description: "Search repository files with a regular expression. Returns path:line:text matches.",
				Parameters: objectSchema([]string{"pattern"}, map[string]any{
					"pattern": stringProp("RE2 regular expression"),
					"path":    stringProp("Repository-relative directory to search; empty for the root"),
				}),
			},
			Run: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Pattern string `json:"pattern"`
					Path    string `json:"path"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
				re, err := regexp.Compile(in.Pattern)
				if err != nil {
					return "", fmt.Errorf("invalid pattern: %w", err)
				}
				root, err := resolveInWorkDir(workDir, in.Path)
				if err != nil {
					return "", err
				}
				return grepTree(ctx, workDir, root, re)
			},
		},
	}
}

// grepTree scans text files under root for re, capped at maxGrepMatches.
func grepTree(ctx context.Context, workDir, root string, re *regexp.Regexp) (string, error) {
	var b strings.Builder
	matches := 0

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if collector.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if matches >= maxGrepMatches {
			return filepath.SkipAll
		}
		content, err := os.ReadFile(path)
		if err != nil || !isText(content) {
			return nil
		}
		rel, err := filepath.Rel(workDir, path)
		if err != nil {
			return nil
		}
		for i, line := range strings.Split(string(content), "\n") {
			if re.MatchString(line) {
				fmt.Fprintf(&b, "%s:%d:%s\n", rel, i+1, strings.TrimRight(line, "\r"))
				matches++
				if matches >= maxGrepMatches {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if matches == 0 {
		return "no matches", nil
	}
	return b.String(), nil
}

// isText is a cheap binary sniff: NUL bytes mean binary.
func isText(content []byte) bool {
	limit := len(content)
	if limit > 8000 {
		limit = 8000
	}
	for _, c := range content[:limit] {
		if c == 0 {
			return false
		}
	}
	return true
}

// catalogReadTools exposes the current catalog tree as JSON.
func (o *Orchestrator) catalogReadTools(branchLanguageID string) []agent.Tool {
	return []agent.Tool{{
		ToolDefinition: agent.ToolDefinition{
			Name:        "read_catalog",
			Description: "Read the current wiki catalog tree as JSON.",
			Parameters:  objectSchema(nil, map[string]any{}),
		},
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			root, err := o.store.GetTree(ctx, branchLanguageID)
			if err != nil {
				return "", err
			}
			data, err := catalog.Marshal(root)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}}
}

// catalogWriteTools lets the agent replace the whole catalog tree and edit
// single node titles. A non-nil wrote flag is set on every successful
// write_catalog, so callers can tell a fresh tree from a pre-existing one.
func (o *Orchestrator) catalogWriteTools(branchLanguageID string, wrote *atomic.Bool) []agent.Tool {
	return []agent.Tool{
		{
			ToolDefinition: agent.ToolDefinition{
				Name: "write_catalog",
				Description: "Replace the whole wiki catalog tree. The catalog is a JSON array of " +
					"{path, title, children} nodes; only leaf nodes receive documents.",
				Parameters: objectSchema([]string{"catalog"}, map[string]any{
					"catalog": map[string]any{"description": "Catalog tree as a JSON array of nodes"},
				}),
			},
			Run: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Catalog json.RawMessage `json:"catalog"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
				payload := in.Catalog
				// Some models pass the tree as a JSON-encoded string.
				var asString string
				if err := json.Unmarshal(in.Catalog, &asString); err == nil {
					payload = json.RawMessage(asString)
				}
				root, err := catalog.Parse(payload)
				if err != nil {
					return "", fmt.Errorf("invalid catalog: %w", err)
				}
				if err := o.store.SetTree(ctx, branchLanguageID, root); err != nil {
					return "", err
				}
				if wrote != nil {
					wrote.Store(true)
				}
				return fmt.Sprintf("catalog written: %d nodes, %d leaves",
					len(catalog.Flatten(root)), len(catalog.Leaves(root))), nil
			},
		},
		{
			ToolDefinition: agent.ToolDefinition{
				Name:        "edit_catalog_title",
				Description: "Change the title of one catalog node, keeping the tree otherwise intact.",
				Parameters: objectSchema([]string{"path", "title"}, map[string]any{
					"path":  stringProp("Path of the node to retitle"),
					"title": stringProp("New title"),
				}),
			},
			Run: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Path  string `json:"path"`
					Title string `json:"title"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
				root, err := o.store.GetTree(ctx, branchLanguageID)
				if err != nil {
					return "", err
				}
				node := catalog.FindByPath(root, in.Path)
				if node == nil {
					return "", fmt.Errorf("catalog node %s: %w", in.Path, store.ErrNotFound)
				}
				node.Title = in.Title
				if err := o.store.SetTree(ctx, branchLanguageID, root); err != nil {
					return "", err
				}
				return "title updated", nil
			},
		},
	}
}

// documentWriteTool is the single-leaf write capability used by content
// generation: the path is bound so parallel tasks stay disjoint.
func (o *Orchestrator) documentWriteTool(branchLanguageID, path string) []agent.Tool {
	return []agent.Tool{{
		ToolDefinition: agent.ToolDefinition{
			Name: "write_document",
			Description: fmt.Sprintf("Write the final markdown document for catalog entry %q. "+
				"List every repository file consulted in source_files.", path),
			Parameters: objectSchema([]string{"content"}, map[string]any{
				"content": stringProp("Full document content in markdown"),
				"source_files": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Repository files consulted while writing",
				},
			}),
		},
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Content     string   `json:"content"`
				SourceFiles []string `json:"source_files"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			if strings.TrimSpace(in.Content) == "" {
				return "", ErrEmptyResponse
			}
			err := o.store.WriteDocument(ctx, branchLanguageID, &store.Document{
				Path:        path,
				Content:     in.Content,
				SourceFiles: in.SourceFiles,
			})
			if err != nil {
				return "", err
			}
			return "document written", nil
		},
	}}
}

// documentEditTools is the free-path read/write capability used by the
// incremental update agent, which decides itself which nodes are impacted.
// Writes are validated against the catalog so documents only land on leaves.
func (o *Orchestrator) documentEditTools(branchLanguageID string) []agent.Tool {
	return []agent.Tool{
		{
			ToolDefinition: agent.ToolDefinition{
				Name:        "read_document",
				Description: "Read the current document for a catalog path.",
				Parameters: objectSchema([]string{"path"}, map[string]any{
					"path": stringProp("Catalog path of the document"),
				}),
			},
			Run: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Path string `json:"path"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
				doc, err := o.store.ReadDocument(ctx, branchLanguageID, in.Path)
				if err != nil {
					return "", err
				}
				return doc.Content, nil
			},
		},
		{
			ToolDefinition: agent.ToolDefinition{
				Name:        "write_document",
				Description: "Create or replace the document for a catalog leaf.",
				Parameters: objectSchema([]string{"path", "content"}, map[string]any{
					"path":    stringProp("Catalog path of the document"),
					"content": stringProp("Full document content in markdown"),
					"source_files": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Repository files consulted while writing",
					},
				}),
			},
			Run: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Path        string   `json:"path"`
					Content     string   `json:"content"`
					SourceFiles []string `json:"source_files"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
				node, err := o.store.FindByPath(ctx, branchLanguageID, in.Path)
				if err != nil {
					return "", err
				}
				if !node.IsLeaf() {
					return "", fmt.Errorf("catalog node %s has children and cannot hold content", in.Path)
				}
				err = o.store.WriteDocument(ctx, branchLanguageID, &store.Document{
					Path:        in.Path,
					Content:     in.Content,
					SourceFiles: in.SourceFiles,
				})
				if err != nil {
					return "", err
				}
				return "document written", nil
			},
		},
	}
}

// mindMapTools reads and writes the branch language's mind map.
func (o *Orchestrator) mindMapTools(branchLanguageID string) []agent.Tool {
	return []agent.Tool{
		{
			ToolDefinition: agent.ToolDefinition{
				Name:        "read_mind_map",
				Description: "Read the current mind map content.",
				Parameters:  objectSchema(nil, map[string]any{}),
			},
			Run: func(ctx context.Context, args json.RawMessage) (string, error) {
				bl, err := o.store.GetBranchLanguage(ctx, branchLanguageID)
				if err != nil {
					return "", err
				}
				if bl.MindMapContent == "" {
					return "", fmt.Errorf("mind map: %w", store.ErrNotFound)
				}
				return bl.MindMapContent, nil
			},
		},
		{
			ToolDefinition: agent.ToolDefinition{
				Name:        "write_mind_map",
				Description: "Write the mind map: a markdown hierarchy summarizing the repository architecture.",
				Parameters: objectSchema([]string{"content"}, map[string]any{
					"content": stringProp("Mind map content as a nested markdown list"),
				}),
			},
			Run: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Content string `json:"content"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
				if strings.TrimSpace(in.Content) == "" {
					return "", ErrEmptyResponse
				}
				err := o.store.SetMindMap(ctx, branchLanguageID, store.MindMapCompleted, in.Content)
				if err != nil {
					return "", err
				}
				return "mind map written", nil
			},
		},
	}
}
