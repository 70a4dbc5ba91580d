package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Dialect selects placeholder style and DDL for a SQL backend.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d Dialect) schema() string {
	timeType := "TIMESTAMPTZ"
	if d == SQLite {
		timeType = "DATETIME"
	}
	return `
	CREATE TABLE IF NOT EXISTS registrations (
		identifier  TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS attendance (
		id           TEXT PRIMARY KEY,
		identifier   TEXT NOT NULL,
		session      TEXT NOT NULL,
		recorded_at  ` + timeType + ` NOT NULL,
		UNIQUE (identifier, session)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_session ON attendance(session);
	CREATE INDEX IF NOT EXISTS idx_attendance_time    ON attendance(recorded_at);
	`
}

// SQLRepository persists registrations and attendance in Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewRepository creates a repo over db.
func NewRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// Migrate creates the tables if they do not exist.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	stmts := r.dialect.schema()
	if r.dialect == Postgres {
		// Postgres gets one statement per Exec.
		for _, stmt := range strings.Split(stmts, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	}
	if _, err := r.db.ExecContext(ctx, stmts); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Register adds identifiers to the roster in one transaction, so a failed
// seed leaves the roster unchanged. Existing entries are kept.
func (r *SQLRepository) Register(ctx context.Context, identifiers ...string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO registrations (identifier) VALUES (`+r.dialect.placeholder(1)+`) ON CONFLICT DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare register: %w", err)
	}
	defer stmt.Close()

	for _, id := range identifiers {
		id = NormalizeIdentifier(id)
		if id == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("register %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// IsRegistered reports whether identifier is on the roster.
func (r *SQLRepository) IsRegistered(ctx context.Context, identifier string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM registrations WHERE identifier = `+r.dialect.placeholder(1), identifier)
}

// Exists reports whether identifier already checked in to session.
func (r *SQLRepository) Exists(ctx context.Context, identifier, session string) (bool, error) {
	return r.exists(ctx,
		`SELECT 1 FROM attendance WHERE identifier = `+r.dialect.placeholder(1)+` AND session = `+r.dialect.placeholder(2),
		identifier, session)
}

func (r *SQLRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, query+` LIMIT 1`, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Append inserts rec. The (identifier, session) unique constraint turns a
// concurrent duplicate into ErrAlreadyRecorded.
func (r *SQLRepository) Append(ctx context.Context, rec Record) error {
	p := r.dialect.placeholder
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (id, identifier, session, recorded_at)
		VALUES (`+p(1)+`, `+p(2)+`, `+p(3)+`, `+p(4)+`)
		ON CONFLICT DO NOTHING
	`, rec.ID, rec.Identifier, rec.Session, rec.Timestamp.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyRecorded
	}
	return nil
}

// CountsBySession returns the number of records per session.
func (r *SQLRepository) CountsBySession(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT session, COUNT(*) FROM attendance GROUP BY session`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			session string
			n       int
		)
		if err := rows.Scan(&session, &n); err != nil {
			return nil, err
		}
		counts[session] = n
	}
	return counts, rows.Err()
}

// List returns records, newest first.
func (r *SQLRepository) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	query := `SELECT id, identifier, session, recorded_at FROM attendance`
	args := []any{}
	if filter.Session != "" {
		args = append(args, filter.Session)
		query += ` WHERE session = ` + r.dialect.placeholder(len(args))
	}
	args = append(args, normalizeLimit(filter.Limit))
	query += ` ORDER BY recorded_at DESC LIMIT ` + r.dialect.placeholder(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var (
			rec Record
			ts  time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.Identifier, &rec.Session, &ts); err != nil {
			return nil, err
		}
		rec.Timestamp = ts.UTC()
		res = append(res, rec)
	}
	return res, rows.Err()
}
