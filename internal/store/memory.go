package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/wikid/internal/catalog"
)

// Memory is an in-memory Store. Trees are deep-copied on read and write so
// callers can never mutate stored state through aliased pointers.
type Memory struct {
	mu       sync.RWMutex
	branches map[string]*BranchLanguage
	trees    map[string]*catalog.Node
	docs     map[string]map[string]*Document
	usage    []*UsageRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		branches: make(map[string]*BranchLanguage),
		trees:    make(map[string]*catalog.Node),
		docs:     make(map[string]map[string]*Document),
	}
}

func (m *Memory) CreateBranchLanguage(ctx context.Context, bl *BranchLanguage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bl.ID == "" {
		bl.ID = uuid.NewString()
	}
	if _, ok := m.branches[bl.ID]; ok {
		return fmt.Errorf("branch language %s: %w", bl.ID, ErrAlreadyExists)
	}
	bl.Language = NormalizeLanguage(bl.Language)
	for _, existing := range m.branches {
		if existing.Branch == bl.Branch && existing.Language == bl.Language {
			return fmt.Errorf("branch language %s/%s: %w", bl.Branch, bl.Language, ErrAlreadyExists)
		}
	}
	if bl.MindMapStatus == "" {
		bl.MindMapStatus = MindMapPending
	}
	if bl.CreatedAt.IsZero() {
		bl.CreatedAt = time.Now().UTC()
	}
	cp := *bl
	m.branches[bl.ID] = &cp
	return nil
}

func (m *Memory) GetBranchLanguage(ctx context.Context, id string) (*BranchLanguage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bl, ok := m.branches[id]
	if !ok {
		return nil, fmt.Errorf("branch language %s: %w", id, ErrNotFound)
	}
	cp := *bl
	return &cp, nil
}

func (m *Memory) SetMindMap(ctx context.Context, id string, status MindMapStatus, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bl, ok := m.branches[id]
	if !ok {
		return fmt.Errorf("branch language %s: %w", id, ErrNotFound)
	}
	bl.MindMapStatus = status
	bl.MindMapContent = content
	return nil
}

func (m *Memory) GetTree(ctx context.Context, branchLanguageID string) (*catalog.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	root, ok := m.trees[branchLanguageID]
	if !ok {
		return nil, fmt.Errorf("catalog for %s: %w", branchLanguageID, ErrNotFound)
	}
	return root.Clone(), nil
}

func (m *Memory) SetTree(ctx context.Context, branchLanguageID string, root *catalog.Node) error {
	if err := catalog.Validate(root); err != nil {
		return fmt.Errorf("rejecting catalog tree: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.trees[branchLanguageID] = root.Clone()
	return nil
}

func (m *Memory) FindByPath(ctx context.Context, branchLanguageID, path string) (*catalog.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	root, ok := m.trees[branchLanguageID]
	if !ok {
		return nil, fmt.Errorf("catalog for %s: %w", branchLanguageID, ErrNotFound)
	}
	n := catalog.FindByPath(root, path)
	if n == nil {
		return nil, fmt.Errorf("catalog node %s: %w", path, ErrNotFound)
	}
	return n.Clone(), nil
}

func (m *Memory) WriteDocument(ctx context.Context, branchLanguageID string, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byPath, ok := m.docs[branchLanguageID]
	if !ok {
		byPath = make(map[string]*Document)
		m.docs[branchLanguageID] = byPath
	}
	cp := *doc
	cp.SourceFiles = append([]string(nil), doc.SourceFiles...)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	byPath[doc.Path] = &cp
	return nil
}

func (m *Memory) ReadDocument(ctx context.Context, branchLanguageID, path string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[branchLanguageID][path]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", path, ErrNotFound)
	}
	cp := *doc
	cp.SourceFiles = append([]string(nil), doc.SourceFiles...)
	return &cp, nil
}

func (m *Memory) AppendUsage(ctx context.Context, rec *UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.RecordedAt.IsZero() {
		cp.RecordedAt = time.Now().UTC()
	}
	m.usage = append(m.usage, &cp)
	return nil
}

func (m *Memory) ListUsage(ctx context.Context, operation string) ([]*UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*UsageRecord
	for _, rec := range m.usage {
		if operation == "" || rec.Operation == operation {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ Store = (*Memory)(nil)
