package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBFileName is the database file created inside the data directory.
const DBFileName = "christopher.db"

// Store wraps a SQLite database holding the interaction log and the memory table.
type Store struct {
	db  *sql.DB
	now func() time.Time
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
		dsn = filepath.Join(dataDir, DBFileName)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors. An
	// in-memory database also only exists for the lifetime of that connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if dsn != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting journal mode: %w", err)
		}
	}

	s := &Store{db: db, now: time.Now}
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

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
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

// inTx checks out a dedicated connection, runs fn inside one transaction on
// it and releases the connection again. Nothing is held between calls.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// --- Interactions ---

// SaveInteraction appends one interaction row. ID and CreatedAt are filled
// in when empty; the stored row is returned.
func (s *Store) SaveInteraction(ctx context.Context, i Interaction) (Interaction, error) {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = s.now()
	}
	i.CreatedAt = i.CreatedAt.UTC().Truncate(time.Second)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO interactions (id, timestamp, task_type, user_input, language, prompt, response)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i.ID, i.CreatedAt.Format(time.RFC3339), i.TaskType, i.UserInput, i.Language, i.Prompt, i.Response,
		)
		return err
	})
	if err != nil {
		return Interaction{}, fmt.Errorf("saving interaction: %w", err)
	}
	return i, nil
}

// GetInteraction returns one interaction by ID or ErrNotFound.
func (s *Store) GetInteraction(ctx context.Context, id string) (Interaction, error) {
	var i Interaction
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, task_type, user_input, language, prompt, response
		FROM interactions WHERE id = ?`, id,
	).Scan(&i.ID, &createdAt, &i.TaskType, &i.UserInput, &i.Language, &i.Prompt, &i.Response)
	if errors.Is(err, sql.ErrNoRows) {
		return Interaction{}, ErrNotFound
	}
	if err != nil {
		return Interaction{}, err
	}
	if i.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Interaction{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return i, nil
}

// ListInteractions returns interactions newest first.
func (s *Store) ListInteractions(ctx context.Context, limit, offset int) ([]Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, task_type, user_input, language, prompt, response
		FROM interactions ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Interaction
	for rows.Next() {
		var i Interaction
		var createdAt string
		if err := rows.Scan(&i.ID, &createdAt, &i.TaskType, &i.UserInput, &i.Language, &i.Prompt, &i.Response); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		i.CreatedAt = t
		results = append(results, i)
	}
	return results, rows.Err()
}

// CountInteractions returns the number of logged interactions.
func (s *Store) CountInteractions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM interactions").Scan(&n)
	return n, err
}

// --- Memory ---

// SaveMemory appends one memory row holding text and its encoded embedding.
func (s *Store) SaveMemory(ctx context.Context, text string, embedding []float32) (MemoryEntry, error) {
	e := MemoryEntry{
		ID:        uuid.New().String(),
		Text:      text,
		Embedding: embedding,
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO memory (id, text, embedding, timestamp) VALUES (?, ?, ?, ?)`,
			e.ID, e.Text, EncodeEmbedding(e.Embedding), e.CreatedAt.Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return MemoryEntry{}, fmt.Errorf("saving memory entry: %w", err)
	}
	return e, nil
}

// CountMemory returns the number of memory entries.
func (s *Store) CountMemory(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memory").Scan(&n)
	return n, err
}

// ListMemory returns memory entries newest first, embeddings decoded.
func (s *Store) ListMemory(ctx context.Context, limit, offset int) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, embedding, timestamp
		FROM memory ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		var blob []byte
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Text, &blob, &createdAt); err != nil {
			return nil, err
		}
		if e.Embedding, err = DecodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", e.ID, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// MemoryStats summarises the memory table.
type MemoryStats struct {
	Entries int `json:"entries"`
	// Degraded counts entries whose embedding is all zeros.
	Degraded int `json:"zero_embeddings"`
	// BlobBytes is the distinct embedding byte lengths seen.
	BlobBytes []int `json:"blob_bytes"`
}

// MemoryStats scans the memory table.
func (s *Store) MemoryStats(ctx context.Context) (MemoryStats, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT embedding FROM memory")
	if err != nil {
		return MemoryStats{}, err
	}
	defer rows.Close()

	var st MemoryStats
	sizes := make(map[int]bool)
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return MemoryStats{}, err
		}
		st.Entries++
		if !sizes[len(blob)] {
			sizes[len(blob)] = true
			st.BlobBytes = append(st.BlobBytes, len(blob))
		}
		if allZero(blob) {
			st.Degraded++
		}
	}
	sort.Ints(st.BlobBytes)
	return st, rows.Err()
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
