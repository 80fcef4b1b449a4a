// Package store defines persistence for catalogs, documents, branch
// languages, and token usage.
//
// Two implementations share the same interfaces: an in-memory store for
// tests and single-run use, and a sqlite store for anything that should
// survive a process. Concurrent fan-out writers touch disjoint document
// paths, so the contract only requires atomicity of a single node's
// read-modify-write and of whole-tree replacement; no cross-path locking.
package store

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/wikid/internal/catalog"
)

var (
	// ErrNotFound indicates a missing branch language, node, or document.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a duplicate branch language.
	ErrAlreadyExists = errors.New("already exists")
)

// BranchLanguageStore manages (branch, language) records.
type BranchLanguageStore interface {
	// CreateBranchLanguage persists a new record. The language code is
	// normalized to lowercase before storage; a duplicate (branch, language)
	// pair returns ErrAlreadyExists.
	CreateBranchLanguage(ctx context.Context, bl *BranchLanguage) error

	// GetBranchLanguage returns the record by id, or ErrNotFound.
	GetBranchLanguage(ctx context.Context, id string) (*BranchLanguage, error)

	// SetMindMap updates mind-map status and content for a branch language.
	SetMindMap(ctx context.Context, id string, status MindMapStatus, content string) error
}

// CatalogStore owns the catalog tree of one branch language.
type CatalogStore interface {
	// GetTree returns the whole catalog tree, or ErrNotFound when no tree
	// has been written yet.
	GetTree(ctx context.Context, branchLanguageID string) (*catalog.Node, error)

	// SetTree atomically replaces the whole tree. No nodes from a prior
	// tree survive the replacement.
	SetTree(ctx context.Context, branchLanguageID string, root *catalog.Node) error

	// FindByPath returns a single node by path, or ErrNotFound.
	FindByPath(ctx context.Context, branchLanguageID, path string) (*catalog.Node, error)
}

// DocumentStore owns document content keyed by catalog path.
type DocumentStore interface {
	// WriteDocument creates or replaces the document at path. Last writer
	// wins against concurrent writers of the same path.
	WriteDocument(ctx context.Context, branchLanguageID string, doc *Document) error

	// ReadDocument returns the document at path, or ErrNotFound.
	ReadDocument(ctx context.Context, branchLanguageID, path string) (*Document, error)
}

// UsageStore is the append-only token usage sink. Safe for concurrent
// appends from parallel fan-out tasks.
type UsageStore interface {
	AppendUsage(ctx context.Context, rec *UsageRecord) error
	ListUsage(ctx context.Context, operation string) ([]*UsageRecord, error)
}

// Store aggregates all persistence the orchestrator needs.
type Store interface {
	BranchLanguageStore
	CatalogStore
	DocumentStore
	UsageStore
}
