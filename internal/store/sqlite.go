package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/wikid/internal/catalog"
)

// SQLite is a Store backed by a single sqlite database file.
//
// The catalog tree is stored as one JSON blob per branch language, so
// whole-tree replacement is a single-row update and therefore atomic.
// Documents are (branch_language_id, path) rows; token usage is an
// append-only table.
type SQLite struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS branch_languages (
	id               TEXT PRIMARY KEY,
	branch           TEXT NOT NULL,
	language         TEXT NOT NULL,
	mindmap_status   TEXT NOT NULL DEFAULT 'pending',
	mindmap_content  TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL,
	UNIQUE(branch, language)
);

CREATE TABLE IF NOT EXISTS catalog_trees (
	branch_language_id TEXT PRIMARY KEY REFERENCES branch_languages(id),
	tree               TEXT NOT NULL,
	updated_at         TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	branch_language_id TEXT NOT NULL,
	path               TEXT NOT NULL,
	content            TEXT NOT NULL,
	source_files       TEXT NOT NULL DEFAULT '[]',
	updated_at         TIMESTAMP NOT NULL,
	PRIMARY KEY (branch_language_id, path)
);

CREATE TABLE IF NOT EXISTS token_usage (
	id            TEXT PRIMARY KEY,
	repository_id TEXT NOT NULL DEFAULT '',
	model         TEXT NOT NULL,
	operation     TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	recorded_at   TIMESTAMP NOT NULL
);
`

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}

	// The pure-Go driver serializes writes itself; a single connection
	// avoids SQLITE_BUSY under concurrent fan-out writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateBranchLanguage(ctx context.Context, bl *BranchLanguage) error {
	if bl.ID == "" {
		bl.ID = uuid.NewString()
	}
	bl.Language = NormalizeLanguage(bl.Language)
	if bl.MindMapStatus == "" {
		bl.MindMapStatus = MindMapPending
	}
	if bl.CreatedAt.IsZero() {
		bl.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO branch_languages (id, branch, language, mindmap_status, mindmap_content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		bl.ID, bl.Branch, bl.Language, string(bl.MindMapStatus), bl.MindMapContent, bl.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("branch language %s/%s: %w", bl.Branch, bl.Language, ErrAlreadyExists)
		}
		return fmt.Errorf("inserting branch language: %w", err)
	}
	return nil
}

func (s *SQLite) GetBranchLanguage(ctx context.Context, id string) (*BranchLanguage, error) {
	var bl BranchLanguage
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, branch, language, mindmap_status, mindmap_content, created_at
		 FROM branch_languages WHERE id = ?`, id).
		Scan(&bl.ID, &bl.Branch, &bl.Language, &status, &bl.MindMapContent, &bl.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("branch language %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying branch language: %w", err)
	}
	bl.MindMapStatus = MindMapStatus(status)
	return &bl, nil
}

func (s *SQLite) SetMindMap(ctx context.Context, id string, status MindMapStatus, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE branch_languages SET mindmap_status = ?, mindmap_content = ? WHERE id = ?`,
		string(status), content, id)
	if err != nil {
		return fmt.Errorf("updating mind map: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating mind map: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("branch language %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) GetTree(ctx context.Context, branchLanguageID string) (*catalog.Node, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT tree FROM catalog_trees WHERE branch_language_id = ?`, branchLanguageID).
		Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog for %s: %w", branchLanguageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying catalog tree: %w", err)
	}
	root, err := catalog.Parse([]byte(blob))
	if err != nil {
		return nil, fmt.Errorf("decoding stored catalog tree: %w", err)
	}
	return root, nil
}

func (s *SQLite) SetTree(ctx context.Context, branchLanguageID string, root *catalog.Node) error {
	if err := catalog.Validate(root); err != nil {
		return fmt.Errorf("rejecting catalog tree: %w", err)
	}
	blob, err := catalog.Marshal(root)
	if err != nil {
		return fmt.Errorf("encoding catalog tree: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO catalog_trees (branch_language_id, tree, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(branch_language_id) DO UPDATE SET tree = excluded.tree, updated_at = excluded.updated_at`,
		branchLanguageID, string(blob), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storing catalog tree: %w", err)
	}
	return nil
}

func (s *SQLite) FindByPath(ctx context.Context, branchLanguageID, path string) (*catalog.Node, error) {
	root, err := s.GetTree(ctx, branchLanguageID)
	if err != nil {
		return nil, err
	}
	n := catalog.FindByPath(root, path)
	if n == nil {
		return nil, fmt.Errorf("catalog node %s: %w", path, ErrNotFound)
	}
	return n, nil
}

func (s *SQLite) WriteDocument(ctx context.Context, branchLanguageID string, doc *Document) error {
	sources, err := json.Marshal(doc.SourceFiles)
	if err != nil {
		return fmt.Errorf("encoding source files: %w", err)
	}
	updated := doc.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (branch_language_id, path, content, source_files, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(branch_language_id, path) DO UPDATE SET
		   content = excluded.content,
		   source_files = excluded.source_files,
		   updated_at = excluded.updated_at`,
		branchLanguageID, doc.Path, doc.Content, string(sources), updated)
	if err != nil {
		return fmt.Errorf("storing document %s: %w", doc.Path, err)
	}
	return nil
}

func (s *SQLite) ReadDocument(ctx context.Context, branchLanguageID, path string) (*Document, error) {
	var doc Document
	var sources string
	err := s.db.QueryRowContext(ctx,
		`SELECT path, content, source_files, updated_at FROM documents
		 WHERE branch_language_id = ? AND path = ?`, branchLanguageID, path).
		Scan(&doc.Path, &doc.Content, &sources, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &doc.SourceFiles); err != nil {
		return nil, fmt.Errorf("decoding source files: %w", err)
	}
	return &doc, nil
}

func (s *SQLite) AppendUsage(ctx context.Context, rec *UsageRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	recorded := rec.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO token_usage (id, repository_id, model, operation, input_tokens, output_tokens, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.RepositoryID, rec.Model, rec.Operation, rec.InputTokens, rec.OutputTokens, recorded)
	if err != nil {
		return fmt.Errorf("appending usage record: %w", err)
	}
	return nil
}

func (s *SQLite) ListUsage(ctx context.Context, operation string) ([]*UsageRecord, error) {
	query := `SELECT id, repository_id, model, operation, input_tokens, output_tokens, recorded_at
	          FROM token_usage`
	args := []any{}
	if operation != "" {
		query += ` WHERE operation = ?`
		args = append(args, operation)
	}
	query += ` ORDER BY recorded_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage records: %w", err)
	}
	defer rows.Close()

	var out []*UsageRecord
	for rows.Next() {
		var rec UsageRecord
		if err := rows.Scan(&rec.ID, &rec.RepositoryID, &rec.Model, &rec.Operation,
			&rec.InputTokens, &rec.OutputTokens, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

var _ Store = (*SQLite)(nil)
