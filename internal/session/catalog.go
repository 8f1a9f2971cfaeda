package session

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Record is one catalog row describing a saved session file.
type Record struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	StartedMs    int64  `json:"started_ms"`
	EndedMs      int64  `json:"ended_ms"`
	SampleCount  int    `json:"sample_count"`
	DroppedCount int    `json:"dropped_count"`
}

// Catalog is a SQLite-backed index of saved session files.
type Catalog struct {
	db   *sql.DB
	path string
}

// OpenCatalog opens (creating if necessary) the catalog database at path
// and applies any pending schema migrations.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{db: db, path: path}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the catalog database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Insert adds a catalog row for a saved session.
func (c *Catalog) Insert(r Record) error {
	_, err := c.db.Exec(
		`INSERT INTO sessions (session_id, path, started_ms, ended_ms, sample_count, dropped_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Path, r.StartedMs, r.EndedMs, r.SampleCount, r.DroppedCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session record: %w", err)
	}
	return nil
}

// List returns all catalog rows, most recently started first.
func (c *Catalog) List() ([]Record, error) {
	rows, err := c.db.Query(
		`SELECT session_id, path, started_ms, ended_ms, sample_count, dropped_count
		 FROM sessions ORDER BY started_ms DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Path, &r.StartedMs, &r.EndedMs, &r.SampleCount, &r.DroppedCount); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns one catalog row by session ID.
func (c *Catalog) Get(id string) (*Record, error) {
	var r Record
	err := c.db.QueryRow(
		`SELECT session_id, path, started_ms, ended_ms, sample_count, dropped_count
		 FROM sessions WHERE session_id = ?`, id,
	).Scan(&r.ID, &r.Path, &r.StartedMs, &r.EndedMs, &r.SampleCount, &r.DroppedCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &r, nil
}

// AttachAdminRoutes mounts a live SQL inspector for the catalog on the
// debug mux. These routes are reachable only over localhost/Tailscale.
func (c *Catalog) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+c.path, c.db, &tailsql.DBOptions{
		Label: "Session catalog",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
}
