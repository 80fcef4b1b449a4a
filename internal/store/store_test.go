package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/wikid/internal/catalog"
)

// openStores returns both implementations so every test runs against each.
func openStores(t *testing.T) map[string]Store {
	t.Helper()

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "wikid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func testTree() *catalog.Node {
	return &catalog.Node{
		Children: []*catalog.Node{
			{
				Path:  "overview",
				Title: "Overview",
				Children: []*catalog.Node{
					{Path: "overview/arch", Title: "Architecture"},
				},
			},
			{Path: "setup", Title: "Setup"},
		},
	}
}

func TestBranchLanguageLifecycle(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			bl := &BranchLanguage{Branch: "main", Language: "EN-us"}
			require.NoError(t, s.CreateBranchLanguage(ctx, bl))
			require.NotEmpty(t, bl.ID)

			got, err := s.GetBranchLanguage(ctx, bl.ID)
			require.NoError(t, err)
			assert.Equal(t, "en-us", got.Language, "language code must be case-normalized")
			assert.Equal(t, MindMapPending, got.MindMapStatus)

			require.NoError(t, s.SetMindMap(ctx, bl.ID, MindMapCompleted, "# map"))
			got, err = s.GetBranchLanguage(ctx, bl.ID)
			require.NoError(t, err)
			assert.Equal(t, MindMapCompleted, got.MindMapStatus)
			assert.Equal(t, "# map", got.MindMapContent)

			_, err = s.GetBranchLanguage(ctx, "nope")
			assert.ErrorIs(t, err, ErrNotFound)

			err = s.SetMindMap(ctx, "nope", MindMapFailed, "")
			assert.ErrorIs(t, err, ErrNotFound)

			// One catalog per (branch, language) pair.
			err = s.CreateBranchLanguage(ctx, &BranchLanguage{Branch: "main", Language: "en-US"})
			assert.ErrorIs(t, err, ErrAlreadyExists)
		})
	}
}

func TestCatalogTreeReplace(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bl := &BranchLanguage{Branch: "main", Language: "en"}
			require.NoError(t, s.CreateBranchLanguage(ctx, bl))

			_, err := s.GetTree(ctx, bl.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.SetTree(ctx, bl.ID, testTree()))

			n, err := s.FindByPath(ctx, bl.ID, "overview/arch")
			require.NoError(t, err)
			assert.Equal(t, "Architecture", n.Title)

			// Replacing twice with the same tree is idempotent.
			require.NoError(t, s.SetTree(ctx, bl.ID, testTree()))
			again, err := s.FindByPath(ctx, bl.ID, "overview/arch")
			require.NoError(t, err)
			assert.Equal(t, n, again)

			// A smaller replacement leaves no orphans from the prior tree.
			require.NoError(t, s.SetTree(ctx, bl.ID, &catalog.Node{
				Children: []*catalog.Node{{Path: "only", Title: "Only"}},
			}))
			_, err = s.FindByPath(ctx, bl.ID, "overview/arch")
			assert.ErrorIs(t, err, ErrNotFound)

			root, err := s.GetTree(ctx, bl.ID)
			require.NoError(t, err)
			assert.Len(t, catalog.Flatten(root), 1)
		})
	}
}

func TestSetTreeRejectsInvalid(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.SetTree(context.Background(), "bl", &catalog.Node{
				Children: []*catalog.Node{
					{Path: "x", Title: "one"},
					{Path: "x", Title: "two"},
				},
			})
			assert.ErrorIs(t, err, catalog.ErrDuplicatePath)
		})
	}
}

func TestDocumentReadWrite(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bl := &BranchLanguage{Branch: "main", Language: "en"}
			require.NoError(t, s.CreateBranchLanguage(ctx, bl))

			_, err := s.ReadDocument(ctx, bl.ID, "setup")
			assert.ErrorIs(t, err, ErrNotFound)

			doc := &Document{
				Path:        "setup",
				Content:     "# Setup\n\nInstall things.",
				SourceFiles: []string{"README.md", "Makefile"},
			}
			require.NoError(t, s.WriteDocument(ctx, bl.ID, doc))

			got, err := s.ReadDocument(ctx, bl.ID, "setup")
			require.NoError(t, err)
			assert.Equal(t, doc.Content, got.Content)
			assert.Equal(t, doc.SourceFiles, got.SourceFiles)
			assert.False(t, got.UpdatedAt.IsZero())

			// Overwrite is last-writer-wins.
			require.NoError(t, s.WriteDocument(ctx, bl.ID, &Document{Path: "setup", Content: "v2"}))
			got, err = s.ReadDocument(ctx, bl.ID, "setup")
			require.NoError(t, err)
			assert.Equal(t, "v2", got.Content)
		})
	}
}

func TestUsageAppendOnly(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				require.NoError(t, s.AppendUsage(ctx, &UsageRecord{
					RepositoryID: "repo-1",
					Model:        "gpt-4o",
					Operation:    "generate_documents",
					InputTokens:  100 + i,
					OutputTokens: 10 + i,
				}))
			}
			require.NoError(t, s.AppendUsage(ctx, &UsageRecord{
				Model:     "gpt-4o",
				Operation: "generate_catalog",
			}))

			recs, err := s.ListUsage(ctx, "generate_documents")
			require.NoError(t, err)
			require.Len(t, recs, 3)

			var in, out int
			for _, rec := range recs {
				in += rec.InputTokens
				out += rec.OutputTokens
			}
			assert.Equal(t, 303, in)
			assert.Equal(t, 33, out)

			all, err := s.ListUsage(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}
}

func TestMemoryTreeIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	bl := &BranchLanguage{Branch: "main", Language: "en"}
	require.NoError(t, m.CreateBranchLanguage(ctx, bl))

	tree := testTree()
	require.NoError(t, m.SetTree(ctx, bl.ID, tree))

	// Mutating the caller's tree after SetTree must not affect the store.
	tree.Children[0].Title = "mutated"
	n, err := m.FindByPath(ctx, bl.ID, "overview")
	require.NoError(t, err)
	assert.Equal(t, "Overview", n.Title)
}
