// Package sqlite stores fragments and checkpoint relations in an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/RishiKendai/cellguard/internal/repository/sqlite/migrations"
	"github.com/google/uuid"
)

// Store implements plagiarism.FragmentRepository and plagiarism.RelationRepository.
type Store struct {
	db   *sql.DB
	path string
}

var (
	_ plagiarism.FragmentRepository = (*Store)(nil)
	_ plagiarism.RelationRepository = (*Store)(nil)
)

// NewStore opens (creating if needed) the database file at path and migrates it.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// WAL plus a busy timeout lets concurrent checks share the file
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: path}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Fragments ====================

// ListFragments returns the cached fragments of a version ordered by cell number.
func (s *Store) ListFragments(ctx context.Context, documentVersionID string) ([]models.CodeFragment, bool, error) {
	var cellCount int
	err := s.db.QueryRowContext(ctx,
		"SELECT cell_count FROM fragment_sets WHERE document_version_id = ?", documentVersionID,
	).Scan(&cellCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying fragment set: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_version_id, cell_number, fragment, created_at
		FROM code_fragments
		WHERE document_version_id = ?
		ORDER BY cell_number
	`, documentVersionID)
	if err != nil {
		return nil, false, fmt.Errorf("querying fragments: %w", err)
	}
	defer rows.Close()

	fragments := make([]models.CodeFragment, 0, cellCount)
	for rows.Next() {
		var f models.CodeFragment
		if err := rows.Scan(&f.ID, &f.DocumentVersionID, &f.CellNumber, &f.Source, &f.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scanning fragment: %w", err)
		}
		fragments = append(fragments, f)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating fragments: %w", err)
	}

	return fragments, true, nil
}

// InsertFragments writes the set marker and every cell in one transaction.
// When the marker already exists the call does nothing.
func (s *Store) InsertFragments(ctx context.Context, documentVersionID string, sources []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO fragment_sets (document_version_id, cell_count, created_at) VALUES (?, ?, ?)",
		documentVersionID, len(sources), now,
	)
	if err != nil {
		return fmt.Errorf("inserting fragment set: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking fragment set insert: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO code_fragments (id, document_version_id, cell_number, fragment, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing fragment insert: %w", err)
	}
	defer stmt.Close()

	for i, source := range sources {
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), documentVersionID, i, source, now); err != nil {
			return fmt.Errorf("inserting fragment %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing fragments: %w", err)
	}
	return nil
}

// ==================== Relations ====================

// CheckpointOf follows version → document → report to the checkpoint id.
func (s *Store) CheckpointOf(ctx context.Context, documentVersionID string) (string, error) {
	var checkpointID string
	err := s.db.QueryRowContext(ctx, `
		SELECT r.checkpoint_id
		FROM document_versions dv
		JOIN documents d ON d.id = dv.document_id
		JOIN reports r ON r.id = d.report_id
		WHERE dv.id = ?
	`, documentVersionID).Scan(&checkpointID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("document version %s: %w", documentVersionID, plagiarism.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("querying checkpoint: %w", err)
	}
	return checkpointID, nil
}

// SiblingVersions lists the other versions of a checkpoint ordered by id.
func (s *Store) SiblingVersions(ctx context.Context, checkpointID, excludeVersionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dv.id
		FROM document_versions dv
		JOIN documents d ON d.id = dv.document_id
		JOIN reports r ON r.id = d.report_id
		WHERE r.checkpoint_id = ? AND dv.id <> ?
		ORDER BY dv.id
	`, checkpointID, excludeVersionID)
	if err != nil {
		return nil, fmt.Errorf("querying sibling versions: %w", err)
	}
	defer rows.Close()

	siblings := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning sibling version: %w", err)
		}
		siblings = append(siblings, id)
	}
	return siblings, rows.Err()
}

// RegisterVersion records the relation chain of a version, creating the
// report and document rows when they are new.
func (s *Store) RegisterVersion(ctx context.Context, documentVersionID, documentID, reportID, checkpointID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmts := []struct {
		query string
		args  []any
	}{
		{"INSERT OR IGNORE INTO reports (id, checkpoint_id) VALUES (?, ?)", []any{reportID, checkpointID}},
		{"INSERT OR IGNORE INTO documents (id, report_id) VALUES (?, ?)", []any{documentID, reportID}},
		{"INSERT OR IGNORE INTO document_versions (id, document_id) VALUES (?, ?)", []any{documentVersionID, documentID}},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return fmt.Errorf("registering version %s: %w", documentVersionID, err)
		}
	}

	return tx.Commit()
}
