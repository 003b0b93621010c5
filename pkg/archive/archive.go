// Package archive keeps a diagnostic copy of board histories in sqlite. The server only ever writes to
// it; boards always start empty.
package archive

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/automerge/automerge-go"
	_ "github.com/mattn/go-sqlite3"

	"github.com/astromechza/sketchsync/pkg/history"
)

var ErrNotFound = errors.New("board not archived")

// Record is one archived board as read back from the database.
type Record struct {
	Board      string
	Version    uint64
	ArchivedAt time.Time
	Strokes    []history.Stroke
	Doc        *automerge.Doc
}

// Archive writes board snapshots into sqlite. Each board keeps one automerge document for the lifetime
// of the process, and every saved snapshot is a commit on it, so the change log of a stored document
// is the timeline of that board.
type Archive struct {
	database *sql.DB
	logger   *slog.Logger

	mu    sync.Mutex
	docs  map[string]*automerge.Doc
	saved map[string]uint64
}

func Open(path string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	a := &Archive{
		database: db,
		logger:   logger.With("component", "archive"),
		docs:     make(map[string]*automerge.Doc),
		saved:    make(map[string]uint64),
	}
	if err := a.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) init() error {
	if _, err := a.database.Exec(
		`CREATE TABLE IF NOT EXISTS boards (
		id text not null primary key,
		version integer not null,
		archived_at text not null,
		content text not null
		)`,
	); err != nil {
		return fmt.Errorf("failed to create boards table: %w", err)
	}
	return nil
}

func (a *Archive) Close() error {
	return a.database.Close()
}

// Save archives the snapshot of a board unless this version was already written by this process. It
// reports whether a row was written.
func (a *Archive) Save(ctx context.Context, board string, version uint64, strokes []history.Stroke) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if last, ok := a.saved[board]; ok && last == version {
		return false, nil
	}
	doc, ok := a.docs[board]
	if !ok {
		doc = automerge.New()
		a.docs[board] = doc
	}
	now := time.Now().UTC()
	if err := writeSnapshot(doc, board, version, now, strokes); err != nil {
		return false, err
	}
	if _, err := doc.Commit(fmt.Sprintf("version %d", version), automerge.CommitOptions{AllowEmpty: true}); err != nil {
		return false, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	content := base64.StdEncoding.EncodeToString(doc.Save())
	if _, err := a.database.ExecContext(
		ctx,
		`INSERT INTO boards (id, version, archived_at, content) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, archived_at = excluded.archived_at, content = excluded.content`,
		board, int64(version), now.Format(time.RFC3339Nano), content,
	); err != nil {
		return false, fmt.Errorf("failed to archive board %s: %w", board, err)
	}
	a.saved[board] = version
	a.logger.Debug("archived", "board", board, "version", version, "strokes", len(strokes))
	return true, nil
}

// Load reads an archived board back.
func (a *Archive) Load(ctx context.Context, board string) (*Record, error) {
	var rawContent string
	if err := a.database.QueryRowContext(
		ctx, `SELECT content FROM boards WHERE id = ?`, board,
	).Scan(&rawContent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(rawContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	doc, err := automerge.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load doc: %w", err)
	}
	return ReadSnapshot(doc)
}

// Boards lists archived board ids.
func (a *Archive) Boards(ctx context.Context) ([]string, error) {
	rows, err := a.database.QueryContext(ctx, `SELECT id FROM boards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			a.logger.Error("failed to close rows", "err", err)
		}
	}(rows)
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
