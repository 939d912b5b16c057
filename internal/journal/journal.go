// Package journal persists every change the service broadcast, with the way
// each attached document handled it.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/livereload/internal/dbopen"
	"github.com/hazyhaar/livereload/internal/idgen"
	"github.com/hazyhaar/livereload/reloader"
)

// Schema is the DDL for the journal table.
const Schema = `
CREATE TABLE IF NOT EXISTS reload_journal (
    entry_id   TEXT PRIMARY KEY,
    path       TEXT NOT NULL,
    options    TEXT NOT NULL DEFAULT '{}',
    outcome    TEXT NOT NULL DEFAULT '',
    recipients INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_created ON reload_journal(created_at DESC);
`

// Entry is one journalled change.
type Entry struct {
	ID         string           `json:"entry_id"`
	Path       string           `json:"path"`
	Options    reloader.Options `json:"options"`
	Outcomes   []string         `json:"outcomes,omitempty"`
	Recipients int              `json:"recipients"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Journal is the journal database handle.
type Journal struct {
	DB  *sql.DB
	now func() time.Time
	id  idgen.Generator
}

// Open opens (or creates) the journal database at path.
func Open(path string, opts ...dbopen.Option) (*Journal, error) {
	db, err := dbopen.Open(path, append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)...)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wraps an already opened database whose schema has been applied.
func New(db *sql.DB) *Journal {
	return &Journal{DB: db, now: time.Now, id: idgen.Default}
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.DB.Close()
}

// Record stores a change and the outcomes it produced.
func (j *Journal) Record(ctx context.Context, change reloader.Change, outcomes []reloader.Outcome, recipients int) (*Entry, error) {
	e := &Entry{
		ID:         j.id(),
		Path:       change.Path,
		Options:    change.Options,
		Recipients: recipients,
		CreatedAt:  j.now().UTC().Truncate(time.Millisecond),
	}
	for _, o := range outcomes {
		e.Outcomes = append(e.Outcomes, o.String())
	}
	opts, err := json.Marshal(change.Options)
	if err != nil {
		return nil, fmt.Errorf("journal: marshal options: %w", err)
	}
	_, err = dbopen.Exec(ctx, j.DB,
		`INSERT INTO reload_journal (entry_id, path, options, outcome, recipients, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Path, string(opts), strings.Join(e.Outcomes, ","), e.Recipients, e.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("journal: record: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// means 50.
func (j *Journal) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.DB.QueryContext(ctx,
		`SELECT entry_id, path, options, outcome, recipients, created_at
		 FROM reload_journal ORDER BY created_at DESC, entry_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var (
			e       Entry
			opts    string
			outcome string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.Path, &opts, &outcome, &e.Recipients, &created); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(opts), &e.Options); err != nil {
			return nil, fmt.Errorf("journal: entry %s options: %w", e.ID, err)
		}
		if outcome != "" {
			e.Outcomes = strings.Split(outcome, ",")
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than the given age and returns how many were
// removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := j.now().Add(-olderThan).UnixMilli()
	res, err := dbopen.Exec(ctx, j.DB, `DELETE FROM reload_journal WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return res.RowsAffected()
}
