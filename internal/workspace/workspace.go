// Package workspace describes a materialized repository checkout.
//
// A workspace is created by an external collaborator before generation and
// reclaimed by it afterwards; the orchestrator only reads from it and never
// deletes it. Open fills branch and commit metadata from the checkout using
// go-git.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var (
	// ErrNotRepository indicates the working directory is not a git checkout.
	ErrNotRepository = errors.New("not a git repository")

	// ErrDetachedHead indicates HEAD does not point at a branch.
	ErrDetachedHead = errors.New("detached HEAD")
)

// Workspace is a checked-out repository at one commit.
type Workspace struct {
	Organization   string
	Repository     string
	GitURL         string
	Branch         string
	WorkDir        string
	Commit         string
	PreviousCommit string
}

// Open inspects the checkout at workDir and fills branch and commit
// metadata. PreviousCommit stays empty; incremental callers set it from
// their own bookkeeping.
func Open(workDir string) (*Workspace, error) {
	repo, err := git.PlainOpen(workDir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, workDir)
		}
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	branch := ""
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	} else {
		return nil, fmt.Errorf("%w: %s", ErrDetachedHead, head.Hash())
	}

	ws := &Workspace{
		Branch:  branch,
		WorkDir: workDir,
		Commit:  head.Hash().String(),
	}

	// Best effort: take the URL from the first remote when one exists.
	if remotes, err := repo.Remotes(); err == nil && len(remotes) > 0 {
		urls := remotes[0].Config().URLs
		if len(urls) > 0 {
			ws.GitURL = urls[0]
			ws.Organization, ws.Repository = parseOrgRepo(ws.GitURL)
		}
	}
	if ws.Repository == "" {
		ws.Repository = filepath.Base(workDir)
	}

	return ws, nil
}

// parseOrgRepo extracts the owner and repository name from https and
// scp-style remote URLs. Unrecognized shapes yield empty strings.
func parseOrgRepo(raw string) (org, repo string) {
	s := strings.TrimSuffix(raw, ".git")
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.Index(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ReplaceAll(s, ":", "/")
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) < 3 {
		return "", ""
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

// ParentCommit returns the first parent of the workspace's current commit,
// or "" for a root commit.
func (w *Workspace) ParentCommit() (string, error) {
	repo, err := git.PlainOpen(w.WorkDir)
	if err != nil {
		return "", fmt.Errorf("opening repository: %w", err)
	}
	commit, err := repo.CommitObject(plumbing.NewHash(w.Commit))
	if err != nil {
		return "", fmt.Errorf("resolving commit %s: %w", w.Commit, err)
	}
	if commit.NumParents() == 0 {
		return "", nil
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return "", fmt.Errorf("resolving parent of %s: %w", w.Commit, err)
	}
	return parent.Hash.String(), nil
}

// ChangedFiles returns the sorted set of file paths touched between the
// workspace's previous and current commit. Both sides of a rename count.
// Returns nil when PreviousCommit is unset.
func (w *Workspace) ChangedFiles(ctx context.Context) ([]string, error) {
	if w.PreviousCommit == "" {
		return nil, nil
	}

	repo, err := git.PlainOpen(w.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	prev, err := repo.CommitObject(plumbing.NewHash(w.PreviousCommit))
	if err != nil {
		return nil, fmt.Errorf("resolving previous commit %s: %w", w.PreviousCommit, err)
	}
	cur, err := repo.CommitObject(plumbing.NewHash(w.Commit))
	if err != nil {
		return nil, fmt.Errorf("resolving current commit %s: %w", w.Commit, err)
	}

	patch, err := prev.PatchContext(ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("diffing commits: %w", err)
	}

	seen := map[string]bool{}
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		if from != nil {
			seen[from.Path()] = true
		}
		if to != nil {
			seen[to.Path()] = true
		}
	}

	files := make([]string, 0, len(seen))
	for path := range seen {
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}
