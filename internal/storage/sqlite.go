package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for documents, conversation
// turns, and extracted entities.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "paperchat.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	// Cascading deletes from documents to turns/entities rely on FK enforcement.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw database handle for tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Documents ---

func (s *Store) CreateDocument(d Document) error {
	uploadedAt := d.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO documents (id, filename, path, uploaded_at, processed, summary)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Filename, d.Path, uploadedAt.UTC().Format(time.RFC3339Nano),
		boolToInt(d.Processed), d.Summary,
	)
	return err
}

func (s *Store) GetDocument(id string) (Document, error) {
	var d Document
	var uploadedAt string
	var processed int
	err := s.db.QueryRow(`
		SELECT id, filename, path, uploaded_at, processed, summary
		FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Filename, &d.Path, &uploadedAt, &processed, &d.Summary)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, uploadedAt)
	if err != nil {
		return Document{}, fmt.Errorf("parsing uploaded_at: %w", err)
	}
	d.UploadedAt = t
	d.Processed = processed != 0
	return d, nil
}

// ListProcessedDocuments returns documents with processed = true, most recent first.
// Unprocessed documents are excluded from list views.
func (s *Store) ListProcessedDocuments() ([]Document, error) {
	rows, err := s.db.Query(`
		SELECT id, filename, path, uploaded_at, processed, summary
		FROM documents WHERE processed = 1 ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var d Document
		var uploadedAt string
		var processed int
		if err := rows.Scan(&d.ID, &d.Filename, &d.Path, &uploadedAt, &processed, &d.Summary); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, uploadedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing uploaded_at: %w", err)
		}
		d.UploadedAt = t
		d.Processed = processed != 0
		results = append(results, d)
	}
	return results, rows.Err()
}

func (s *Store) SetSummary(id, summary string) error {
	res, err := s.db.Exec(`UPDATE documents SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) MarkProcessed(id string) error {
	res, err := s.db.Exec(`UPDATE documents SET processed = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteDocument removes a document row. Conversation turns and extracted
// entities cascade; the vector index directory is left behind by convention.
func (s *Store) DeleteDocument(id string) error {
	res, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Conversation turns ---

func (s *Store) AppendTurn(t ConversationTurn) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO conversation_turns (id, document_id, query, answer, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.DocumentID, t.Query, t.Answer, createdAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ListTurns returns all turns for a document in ascending timestamp order.
// Insertion order breaks timestamp ties so history renders deterministically.
func (s *Store) ListTurns(documentID string) ([]ConversationTurn, error) {
	rows, err := s.db.Query(`
		SELECT id, document_id, query, answer, created_at
		FROM conversation_turns WHERE document_id = ?
		ORDER BY created_at ASC, rowid ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

// RecentTurns returns up to limit most recent turns, newest first.
func (s *Store) RecentTurns(documentID string, limit int) ([]ConversationTurn, error) {
	rows, err := s.db.Query(`
		SELECT id, document_id, query, answer, created_at
		FROM conversation_turns WHERE document_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, documentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

func scanTurns(rows *sql.Rows) ([]ConversationTurn, error) {
	var results []ConversationTurn
	for rows.Next() {
		var t ConversationTurn
		var createdAt string
		if err := rows.Scan(&t.ID, &t.DocumentID, &t.Query, &t.Answer, &createdAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		t.CreatedAt = parsed
		results = append(results, t)
	}
	return results, rows.Err()
}

// --- Extracted entities ---

func (s *Store) AddEntity(e ExtractedEntity) error {
	count := e.Count
	if count == 0 {
		count = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO extracted_entities (document_id, entity_type, entity_text, count)
		VALUES (?, ?, ?, ?)`,
		e.DocumentID, e.Type, e.Text, count,
	)
	return err
}

// AddEntities inserts all entities in one transaction.
func (s *Store) AddEntities(entities []ExtractedEntity) error {
	if len(entities) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO extracted_entities (document_id, entity_type, entity_text, count)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entities {
		count := e.Count
		if count == 0 {
			count = 1
		}
		if _, err := stmt.Exec(e.DocumentID, e.Type, e.Text, count); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting entity %q: %w", e.Text, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListEntities(documentID string) ([]ExtractedEntity, error) {
	rows, err := s.db.Query(`
		SELECT id, document_id, entity_type, entity_text, count
		FROM extracted_entities WHERE document_id = ? ORDER BY id ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ExtractedEntity
	for rows.Next() {
		var e ExtractedEntity
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Type, &e.Text, &e.Count); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
