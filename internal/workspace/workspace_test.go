package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a repository with one initial commit and returns its
// worktree helpers.
func initRepo(t *testing.T) (string, *git.Repository, *git.Worktree) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	writeAndAdd(t, dir, wt, "README.md", "# demo\n")
	commit(t, wt, "initial")

	return dir, repo, wt
}

func writeAndAdd(t *testing.T, dir string, wt *git.Worktree, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	_, err := wt.Add(rel)
	require.NoError(t, err)
}

func commit(t *testing.T, wt *git.Worktree, msg string) string {
	t.Helper()
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestOpen(t *testing.T) {
	dir, _, _ := initRepo(t)

	ws, err := Open(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, ws.WorkDir)
	assert.NotEmpty(t, ws.Commit)
	assert.Contains(t, []string{"master", "main"}, ws.Branch)
	assert.Empty(t, ws.PreviousCommit)
	// No remote: the directory name stands in for the repository name.
	assert.Equal(t, filepath.Base(dir), ws.Repository)
}

func TestParseOrgRepo(t *testing.T) {
	tests := []struct {
		url  string
		org  string
		repo string
	}{
		{"https://github.com/acme/demo.git", "acme", "demo"},
		{"https://github.com/acme/demo", "acme", "demo"},
		{"git@github.com:acme/demo.git", "acme", "demo"},
		{"ssh://git@gitlab.example.com/group/demo.git", "group", "demo"},
		{"file:///tmp/demo", "", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			org, repo := parseOrgRepo(tt.url)
			assert.Equal(t, tt.org, org)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func TestOpenNotARepo(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestParentCommit(t *testing.T) {
	dir, _, wt := initRepo(t)
	ws, err := Open(dir)
	require.NoError(t, err)

	parent, err := ws.ParentCommit()
	require.NoError(t, err)
	assert.Empty(t, parent, "a root commit has no parent")

	first := ws.Commit
	writeAndAdd(t, dir, wt, "pkg/a.go", "package pkg\n")
	ws.Commit = commit(t, wt, "second")

	parent, err = ws.ParentCommit()
	require.NoError(t, err)
	assert.Equal(t, first, parent)
}

func TestChangedFiles(t *testing.T) {
	dir, _, wt := initRepo(t)

	ws, err := Open(dir)
	require.NoError(t, err)
	first := ws.Commit

	writeAndAdd(t, dir, wt, "pkg/service.go", "package pkg\n")
	writeAndAdd(t, dir, wt, "README.md", "# demo v2\n")
	second := commit(t, wt, "change two files")

	ws.PreviousCommit = first
	ws.Commit = second

	files, err := ws.ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "pkg/service.go"}, files)
}

func TestChangedFilesNoPrevious(t *testing.T) {
	dir, _, _ := initRepo(t)
	ws, err := Open(dir)
	require.NoError(t, err)

	files, err := ws.ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestChangedFilesBadCommit(t *testing.T) {
	dir, _, _ := initRepo(t)
	ws, err := Open(dir)
	require.NoError(t, err)

	ws.PreviousCommit = "0000000000000000000000000000000000000000"
	_, err = ws.ChangedFiles(context.Background())
	assert.Error(t, err)
}
