// Package sqlstore implements docstore.Store on top of a SQL database.
//
// Each document ("collection/id") is one row in the documents table holding
// its JSON value. Writes below a document are read-modify-written inside a
// transaction; reads above a document aggregate rows by path prefix.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dmitrijs2005/promptmarket/internal/dbx"
	"github.com/dmitrijs2005/promptmarket/internal/docstore"
	"github.com/dmitrijs2005/promptmarket/internal/docstore/sqlstore/migrations"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Dialect selects the driver and placeholder style.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseDialect() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite3"
}

const docDepth = 2

type Store struct {
	db      *sql.DB
	dialect Dialect
	log     logging.Logger
	hub     *docstore.Hub

	// mu orders commits with their notifications.
	mu sync.Mutex
}

var _ docstore.Store = (*Store)(nil)

// Open connects to dsn, runs migrations and returns a ready store.
func Open(ctx context.Context, dialect Dialect, dsn string, log logging.Logger) (*Store, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	s := New(db, dialect, log)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	if dialect == SQLite {
		// sqlite allows one writer; queue on the pool instead of SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	return s, nil
}

func New(db *sql.DB, dialect Dialect, log logging.Logger) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		log:     log.With("module", "sqlstore"),
		hub:     docstore.NewHub(),
	}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(s.dialect.gooseDialect()); err != nil {
		return err
	}
	return gooseUpContext(ctx, s.db, ".")
}

func (s *Store) q(query string) string {
	if s.dialect == Postgres {
		return dbx.Rebind(query)
	}
	return query
}

func (s *Store) Get(ctx context.Context, path string) (any, error) {
	segs, err := docstore.SplitPath(path)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, s.db, segs)
}

func (s *Store) get(ctx context.Context, db dbx.DBTX, segs []string) (any, error) {
	if len(segs) >= docDepth {
		doc, err := s.loadDoc(ctx, db, docstore.Join(segs[:docDepth]...))
		if err != nil {
			return nil, err
		}
		return docstore.NewTreeFrom(doc).Get(segs[docDepth:]), nil
	}

	query := `SELECT path, value FROM documents`
	var args []any
	if len(segs) == 1 {
		lo, hi := prefixRange(segs[0])
		query += ` WHERE path >= ? AND path < ?`
		args = append(args, lo, hi)
	}
	query += ` ORDER BY path`

	rows, err := db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	t := docstore.NewTree()
	for rows.Next() {
		var p, raw string
		if err := rows.Scan(&p, &raw); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("corrupt document %s: %w", p, err)
		}
		docSegs, err := docstore.SplitPath(p)
		if err != nil {
			return nil, err
		}
		if err := t.Set(docSegs, v); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t.Get(segs), nil
}

// prefixRange returns the half-open key range of documents in a collection.
func prefixRange(collection string) (string, string) {
	return collection + "/", collection + "0"
}

func (s *Store) loadDoc(ctx context.Context, db dbx.DBTX, docPath string) (any, error) {
	var raw string
	err := db.QueryRowContext(ctx, s.q(`SELECT value FROM documents WHERE path = ?`), docPath).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("corrupt document %s: %w", docPath, err)
	}
	return v, nil
}

func (s *Store) saveDoc(ctx context.Context, db dbx.DBTX, docPath string, v any) error {
	if v == nil {
		_, err := db.ExecContext(ctx, s.q(`DELETE FROM documents WHERE path = ?`), docPath)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", docPath, err)
	}
	_, err = db.ExecContext(ctx, s.q(
		`INSERT INTO documents (path, value) VALUES (?, ?)
		 ON CONFLICT (path) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`),
		docPath, string(raw))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// write applies one set inside tx.
func (s *Store) write(ctx context.Context, tx dbx.DBTX, segs []string, value any) error {
	if len(segs) >= docDepth {
		docPath := docstore.Join(segs[:docDepth]...)
		doc, err := s.loadDoc(ctx, tx, docPath)
		if err != nil {
			return err
		}
		t := docstore.NewTreeFrom(doc)
		if err := t.Set(segs[docDepth:], value); err != nil {
			return err
		}
		return s.saveDoc(ctx, tx, docPath, t.Get(nil))
	}

	// collection or root: replace every document below
	query := `DELETE FROM documents`
	var args []any
	if len(segs) == 1 {
		lo, hi := prefixRange(segs[0])
		query += ` WHERE path >= ? AND path < ?`
		args = append(args, lo, hi)
	}
	if _, err := tx.ExecContext(ctx, s.q(query), args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	children := docstore.Children(value)
	if len(segs) == 1 {
		for _, id := range slices.Sorted(maps.Keys(children)) {
			if err := s.saveDoc(ctx, tx, docstore.Join(segs[0], id), children[id]); err != nil {
				return err
			}
		}
		return nil
	}
	for _, coll := range slices.Sorted(maps.Keys(children)) {
		docs := docstore.Children(children[coll])
		for _, id := range slices.Sorted(maps.Keys(docs)) {
			if err := s.saveDoc(ctx, tx, docstore.Join(coll, id), docs[id]); err != nil {
				return err
			}
		}
	}
	return nil
}

// commit runs the sets in one transaction and notifies subscribers.
func (s *Store) commit(ctx context.Context, values map[string]any) error {
	type set struct {
		segs  []string
		value any
	}
	sets := make([]set, 0, len(values))
	for _, p := range slices.Sorted(maps.Keys(values)) {
		segs, err := docstore.SplitPath(p)
		if err != nil {
			return err
		}
		v, err := docstore.Encode(values[p])
		if err != nil {
			return err
		}
		sets = append(sets, set{segs: segs, value: v})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, st := range sets {
			if err := s.write(ctx, tx, st.segs, st.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	changed := make([][]string, 0, len(sets))
	for _, st := range sets {
		changed = append(changed, st.segs)
	}
	s.hub.Notify(changed, func(segs []string) any {
		v, err := s.get(ctx, s.db, segs)
		if err != nil {
			s.log.Warn(ctx, "subscription read failed", "path", docstore.Join(segs...), "error", err)
		}
		return v
	})
	return nil
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	return s.commit(ctx, map[string]any{path: value})
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, err := docstore.SplitPath(k); err != nil || k == "" {
			return fmt.Errorf("%w: update key %q", docstore.ErrInvalidPath, k)
		}
		values[docstore.Join(path, k)] = v
	}
	return s.commit(ctx, values)
}

func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	id := docstore.NewPushID()
	if err := s.Set(ctx, docstore.Join(path, id), value); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *Store) MultiPathUpdate(ctx context.Context, values map[string]any) error {
	return s.commit(ctx, values)
}

// Subscribe only observes writes made through this Store value.
func (s *Store) Subscribe(ctx context.Context, path string, fn func(any)) (docstore.Unsubscribe, error) {
	segs, err := docstore.SplitPath(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	initial, err := s.get(ctx, s.db, segs)
	if err != nil {
		return nil, err
	}
	return s.hub.Add(ctx, segs, initial, fn)
}

func (s *Store) Close() error {
	s.hub.Close()
	return s.db.Close()
}
