package store

import (
	"strings"
	"time"
)

// MindMapStatus tracks mind-map generation for a branch language.
type MindMapStatus string

const (
	MindMapPending    MindMapStatus = "pending"
	MindMapProcessing MindMapStatus = "processing"
	MindMapCompleted  MindMapStatus = "completed"
	MindMapFailed     MindMapStatus = "failed"
)

// BranchLanguage identifies one (branch, language) pair. Each pair owns
// exactly one catalog tree and one set of documents. Language codes are
// case-normalized on creation.
type BranchLanguage struct {
	ID             string
	Branch         string
	Language       string
	MindMapStatus  MindMapStatus
	MindMapContent string
	CreatedAt      time.Time
}

// Document is one generated content blob plus the source files consulted
// while producing it. A document belongs to exactly one catalog leaf by path
// within its branch language.
type Document struct {
	Path        string
	Content     string
	SourceFiles []string
	UpdatedAt   time.Time
}

// UsageRecord is one append-only token accounting entry, written once per
// completed agent attempt that produced nonzero tokens.
type UsageRecord struct {
	ID           string
	RepositoryID string
	Model        string
	Operation    string
	InputTokens  int
	OutputTokens int
	RecordedAt   time.Time
}

// NormalizeLanguage lowercases and trims a language code ("EN-us" -> "en-us").
func NormalizeLanguage(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
