// Package journal keeps an append-only sqlite log of dispatched actions. It is an audit
// trail only; state is never restored from it.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prdraft/internal/store"

	_ "modernc.org/sqlite"
)

type Entry struct {
	Seq     int64           `json:"seq"`
	Session string          `json:"session"`
	At      time.Time       `json:"at"`
	Type    string          `json:"type"`
	Action  json.RawMessage `json:"action"`
	Changed bool            `json:"changed"`
}

type Journal struct {
	db      *sql.DB
	session string
	queue   chan Entry
	log     *zap.Logger
}

// Open opens (creating if needed) the journal database at path.
func Open(ctx context.Context, path string, log *zap.Logger) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal: empty path")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{
		db:      db,
		session: uuid.NewString(),
		queue:   make(chan Entry, 256),
		log:     log.Named("journal"),
	}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS actions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			session TEXT NOT NULL,
			at_unixms INTEGER NOT NULL,
			type TEXT NOT NULL,
			action_json TEXT NOT NULL,
			changed INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_type ON actions(type);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// Session identifies this process's entries.
func (j *Journal) Session() string { return j.session }

func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.Session == "" {
		e.Session = j.session
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if len(e.Action) == 0 {
		e.Action = json.RawMessage(`{}`)
	}
	changed := 0
	if e.Changed {
		changed = 1
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO actions(session, at_unixms, type, action_json, changed) VALUES(?, ?, ?, ?, ?)`,
		e.Session, e.At.UnixMilli(), e.Type, string(e.Action), changed)
	return err
}

// Tail returns the last n entries, oldest first. n <= 0 returns everything.
func (j *Journal) Tail(ctx context.Context, n int) ([]Entry, error) {
	q := `SELECT seq, session, at_unixms, type, action_json, changed FROM actions ORDER BY seq DESC`
	args := []any{}
	if n > 0 {
		q += ` LIMIT ?`
		args = append(args, n)
	}
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			atMS    int64
			payload string
			changed int
		)
		if err := rows.Scan(&e.Seq, &e.Session, &atMS, &e.Type, &payload, &changed); err != nil {
			return nil, err
		}
		e.At = time.UnixMilli(atMS)
		e.Action = json.RawMessage(payload)
		e.Changed = changed != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// Observer queues every dispatch for Run to write. It never blocks the dispatching
// goroutine; entries are dropped when the queue is full.
func (j *Journal) Observer() store.ActionObserver {
	return func(a store.Action, _ *store.State, changed bool) {
		b, err := json.Marshal(a)
		if err != nil {
			j.log.Warn("encode action", zap.String("type", a.Type), zap.Error(err))
			return
		}
		e := Entry{Session: j.session, At: time.Now(), Type: a.Type, Action: b, Changed: changed}
		select {
		case j.queue <- e:
		default:
			j.log.Warn("journal queue full, entry dropped", zap.String("type", a.Type))
		}
	}
}

// Run writes queued entries until ctx ends, then flushes what is left.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case e := <-j.queue:
			j.write(context.WithoutCancel(ctx), e)
		case <-ctx.Done():
			for {
				select {
				case e := <-j.queue:
					j.write(context.WithoutCancel(ctx), e)
				default:
					return nil
				}
			}
		}
	}
}

func (j *Journal) write(ctx context.Context, e Entry) {
	if err := j.Record(ctx, e); err != nil {
		j.log.Warn("record action", zap.String("type", e.Type), zap.Error(err))
	}
}

func (j *Journal) Close() error {
	return j.db.Close()
}
