// Package library stores named Brainfuck programs and their run history
// in a SQLite database.
package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrProgramNotFound indicates the requested program doesn't exist.
var ErrProgramNotFound = errors.New("program not found")

// Program is a stored program with its metadata.
type Program struct {
	Name      string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Run is one recorded execution of a stored program.
type Run struct {
	Program   string
	Output    string
	Duration  time.Duration
	CreatedAt time.Time
}

// Library handles SQLite storage for programs and runs.
type Library struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (or creates) a library database at the given path.
func Open(path string) (*Library, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating library directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS programs (
			name       TEXT PRIMARY KEY,
			source     TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			program     TEXT NOT NULL,
			output      TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at  TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating table: %w", err)
		}
	}

	return &Library{db: db, path: path}, nil
}

// Close closes the database connection.
func (l *Library) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Save stores a program under the given name, replacing any previous
// source while keeping the original creation time.
func (l *Library) Save(name, source string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	_, err := l.db.Exec(`INSERT INTO programs (name, source, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET source = excluded.source, updated_at = excluded.updated_at`,
		name, source, now, now)
	if err != nil {
		return fmt.Errorf("saving program %q: %w", name, err)
	}
	return nil
}

// Get retrieves a program by name.
func (l *Library) Get(name string) (*Program, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var p Program
	err := l.db.QueryRow(`SELECT name, source, created_at, updated_at FROM programs WHERE name = ?`, name).
		Scan(&p.Name, &p.Source, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, ErrProgramNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading program %q: %w", name, err)
	}
	return &p, nil
}

// List returns all stored programs ordered by name.
func (l *Library) List() ([]Program, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`SELECT name, source, created_at, updated_at FROM programs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	defer rows.Close()

	var programs []Program
	for rows.Next() {
		var p Program
		if err := rows.Scan(&p.Name, &p.Source, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning program: %w", err)
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

// Delete removes a program. Its run history is kept.
func (l *Library) Delete(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	result, err := l.db.Exec(`DELETE FROM programs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting program %q: %w", name, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%q: %w", name, ErrProgramNotFound)
	}
	return nil
}

// RecordRun appends one execution record for a program.
func (l *Library) RecordRun(program, output string, duration time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(`INSERT INTO runs (program, output, duration_ms, created_at) VALUES (?, ?, ?, ?)`,
		program, output, duration.Milliseconds(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording run of %q: %w", program, err)
	}
	return nil
}

// Runs returns the recorded executions of a program, newest first.
func (l *Library) Runs(program string) ([]Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`SELECT program, output, duration_ms, created_at FROM runs
		WHERE program = ? ORDER BY created_at DESC`, program)
	if err != nil {
		return nil, fmt.Errorf("listing runs of %q: %w", program, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var ms int64
		if err := rows.Scan(&r.Program, &r.Output, &ms, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
