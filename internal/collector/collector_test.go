package collector

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile creates a file with parent directories.
func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetectProjectType(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"go", []string{"go.mod"}, "go"},
		{"nodejs", []string{"package.json"}, "nodejs"},
		{"monorepo go+nodejs", []string{"go.mod", "package.json"}, "go+nodejs"},
		{"python pyproject", []string{"pyproject.toml"}, "python"},
		{"python detected once", []string{"pyproject.toml", "requirements.txt"}, "python"},
		{"makefile ignored next to real ecosystem", []string{"go.mod", "Makefile"}, "go"},
		{"makefile alone", []string{"Makefile"}, "make"},
		{"unknown", nil, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				writeFile(t, dir, f, "")
			}
			assert.Equal(t, tt.want, detectProjectType(dir))
		})
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/demo\n")
	writeFile(t, dir, "README.md", "# Demo\n\nA demo project.")
	writeFile(t, dir, "Dockerfile", "FROM scratch\n")
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "cmd/server/main.go", "package main\n")
	writeFile(t, dir, "internal/core/core.go", "package core\n")
	writeFile(t, dir, "node_modules/pkg/index.js", "skip me")

	ctx, err := Collect(dir, Options{})
	require.NoError(t, err)

	assert.Equal(t, "go", ctx.ProjectType)
	assert.Equal(t, "# Demo\n\nA demo project.", ctx.ReadmeExcerpt)
	assert.Contains(t, ctx.KeyFiles, "go.mod")
	assert.Contains(t, ctx.KeyFiles, "Dockerfile")
	assert.Contains(t, ctx.EntryPoints, "main.go")
	assert.Contains(t, ctx.EntryPoints, filepath.Join("cmd", "server", "main.go"))

	assert.Contains(t, ctx.DirectoryTree, "cmd/")
	assert.Contains(t, ctx.DirectoryTree, "core.go")
	assert.NotContains(t, ctx.DirectoryTree, "node_modules")
}

func TestCollectMissingDir(t *testing.T) {
	_, err := Collect(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)
}

func TestTreeDepthBound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a/b/c/d/e/deep.txt", "x")

	tree := renderTree(dir, 2)
	assert.Contains(t, tree, "a/")
	assert.Contains(t, tree, "b/")
	assert.NotContains(t, tree, "c/")
	assert.NotContains(t, tree, "deep.txt")
}

func TestReadmeExcerptTruncation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", strings.Repeat("x", 500))

	excerpt := readmeExcerpt(dir, 100)
	assert.True(t, strings.HasSuffix(excerpt, "(truncated)"))
	assert.LessOrEqual(t, len(excerpt), 130)
}

func TestReadmeMissing(t *testing.T) {
	assert.Empty(t, readmeExcerpt(t.TempDir(), 100))
}

func TestEntryPointCap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "")
	for _, name := range []string{"a", "b", "c", "d"} {
		writeFile(t, dir, filepath.Join("cmd", name, "main.go"), "package main\n")
	}

	points := entryPoints(dir, "go", 2)
	assert.Len(t, points, 2)
}

func TestUnreadableSubdirectorySkipped(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission bits do not apply to root")
	}

	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "")
	writeFile(t, dir, "visible/ok.go", "package ok\n")
	locked := filepath.Join(dir, "locked")
	require.NoError(t, os.Mkdir(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	ctx, err := Collect(dir, Options{})
	require.NoError(t, err)
	assert.Contains(t, ctx.DirectoryTree, "visible/")
}
