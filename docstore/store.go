// Package docstore is a schemaless document store with live queries over the
// "projects" and "blogs" collections. Documents live in a single SQL table
// and are addressed by (collection, id); every committed write pushes a fresh
// snapshot of the collection to its subscribers.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/eringen/folio/apperr"
)

// Collection names.
const (
	Projects = "projects"
	Blogs    = "blogs"
)

// Collections lists the collections the store accepts.
var Collections = []string{Projects, Blogs}

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Reserved field names. Values supplied by callers are discarded.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldSlug      = "slug"
)

// Fields is the schemaless body of a document.
type Fields map[string]any

// Record is a stored document together with its store-assigned metadata.
type Record struct {
	ID        string
	Fields    Fields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slug returns the document's slug field, or "".
func (r Record) Slug() string {
	s, _ := r.Fields[FieldSlug].(string)
	return s
}

// Store is the document store client. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time

	// writeMu serialises writes so snapshots are published in commit order.
	writeMu sync.Mutex
	last    int64

	hub *hub
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects to the database identified by driver and dsn and ensures the
// schema exists. For SQLite the dsn is a file path whose directory is created
// if needed.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("docstore: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		if _, err := db.Exec(`
			PRAGMA journal_mode=WAL;
			PRAGMA busy_timeout=5000;
			PRAGMA synchronous=NORMAL;
			PRAGMA cache_size=-8000;
		`); err != nil {
			db.Close()
			return nil, err
		}
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}
	s := &Store{db: db, driver: driver, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(updated_at), 0) FROM documents`).Scan(&s.last); err != nil {
		db.Close()
		return nil, err
	}
	s.hub = newHub()
	return s, nil
}

// Close stops live subscriptions and closes the database.
func (s *Store) Close() error {
	s.hub.close()
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    slug TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    PRIMARY KEY (collection, id)
)`,
		`CREATE INDEX IF NOT EXISTS documents_slug ON documents (collection, slug)`,
		`CREATE INDEX IF NOT EXISTS documents_created ON documents (collection, created_at DESC)`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fail(op string, err error) error {
	return fmt.Errorf("docstore: %s: %w: %w", op, apperr.ErrOperationFailed, err)
}

func checkCollection(col string) error {
	for _, c := range Collections {
		if c == col {
			return nil
		}
	}
	return fmt.Errorf("docstore: unknown collection %q: %w", col, apperr.ErrOperationFailed)
}

// nextStamp returns a strictly increasing nanosecond timestamp.
// Callers hold writeMu.
func (s *Store) nextStamp() int64 {
	t := s.now().UnixNano()
	if t <= s.last {
		t = s.last + 1
	}
	s.last = t
	return t
}

func stampTime(n int64) time.Time { return time.Unix(0, n).UTC() }

func clean(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		if k == FieldCreatedAt || k == FieldUpdatedAt {
			continue
		}
		out[k] = v
	}
	return out
}

func slugOf(f Fields) string {
	s, _ := f[FieldSlug].(string)
	return s
}

const selectCols = `SELECT id, data, created_at, updated_at FROM documents`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		id, data         string
		created, updated int64
	)
	if err := row.Scan(&id, &data, &created, &updated); err != nil {
		return Record{}, err
	}
	var f Fields
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return Record{}, err
	}
	if f == nil {
		f = Fields{}
	}
	return Record{ID: id, Fields: f, CreatedAt: stampTime(created), UpdatedAt: stampTime(updated)}, nil
}

// Get returns the document with the given id.
func (s *Store) Get(ctx context.Context, col, id string) (Record, error) {
	if err := checkCollection(col); err != nil {
		return Record{}, err
	}
	row := s.db.QueryRowContext(ctx, s.rebind(selectCols+` WHERE collection = ? AND id = ?`), col, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("docstore: %s/%s: %w", col, id, apperr.ErrNotFound)
	}
	if err != nil {
		return Record{}, fail("get", err)
	}
	return rec, nil
}

// GetBySlug returns the document whose slug equals slug.
func (s *Store) GetBySlug(ctx context.Context, col, slug string) (Record, error) {
	if err := checkCollection(col); err != nil {
		return Record{}, err
	}
	if slug == "" {
		return Record{}, fmt.Errorf("docstore: empty slug: %w", apperr.ErrNotFound)
	}
	row := s.db.QueryRowContext(ctx, s.rebind(selectCols+` WHERE collection = ? AND slug = ? ORDER BY created_at DESC LIMIT 1`), col, slug)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("docstore: %s slug %q: %w", col, slug, apperr.ErrNotFound)
	}
	if err != nil {
		return Record{}, fail("get by slug", err)
	}
	return rec, nil
}

// List returns every document of the collection, newest first.
func (s *Store) List(ctx context.Context, col string) ([]Record, error) {
	if err := checkCollection(col); err != nil {
		return nil, err
	}
	return s.list(ctx, col)
}

func (s *Store) list(ctx context.Context, col string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(selectCols+` WHERE collection = ? ORDER BY created_at DESC`), col)
	if err != nil {
		return nil, fail("list", err)
	}
	defer rows.Close()
	recs := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fail("list", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list", err)
	}
	return recs, nil
}

// slugTaken reports whether another document of col uses slug.
func (s *Store) slugTaken(ctx context.Context, col, slug, exceptID string) (bool, error) {
	if slug == "" {
		return false, nil
	}
	var id string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id FROM documents WHERE collection = ? AND slug = ? AND id <> ? LIMIT 1`), col, slug, exceptID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create inserts a new document and returns its generated id.
func (s *Store) Create(ctx context.Context, col string, fields Fields) (string, error) {
	if err := checkCollection(col); err != nil {
		return "", err
	}
	f := clean(fields)
	data, err := json.Marshal(f)
	if err != nil {
		return "", fail("create", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	slug := slugOf(f)
	taken, err := s.slugTaken(ctx, col, slug, "")
	if err != nil {
		return "", fail("create", err)
	}
	if taken {
		return "", fmt.Errorf("docstore: slug %q in %s: %w", slug, col, apperr.ErrConflict)
	}
	id := uuid.NewString()
	stamp := s.nextStamp()
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO documents (collection, id, slug, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		col, id, slug, string(data), stamp, stamp)
	if err != nil {
		return "", fail("create", err)
	}
	s.publish(col)
	return id, nil
}

// Update merges fields into the existing document's top-level fields and
// refreshes updatedAt. createdAt never changes.
func (s *Store) Update(ctx context.Context, col, id string, fields Fields) error {
	if err := checkCollection(col); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, err := s.Get(ctx, col, id)
	if err != nil {
		return err
	}
	merged := cur.Fields
	for k, v := range clean(fields) {
		merged[k] = v
	}
	slug := slugOf(merged)
	taken, err := s.slugTaken(ctx, col, slug, id)
	if err != nil {
		return fail("update", err)
	}
	if taken {
		return fmt.Errorf("docstore: slug %q in %s: %w", slug, col, apperr.ErrConflict)
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return fail("update", err)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE documents SET slug = ?, data = ?, updated_at = ? WHERE collection = ? AND id = ?`),
		slug, string(data), s.nextStamp(), col, id)
	if err != nil {
		return fail("update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("docstore: %s/%s: %w", col, id, apperr.ErrNotFound)
	}
	s.publish(col)
	return nil
}

// Delete removes the document. Referenced blobs are not touched.
func (s *Store) Delete(ctx context.Context, col, id string) error {
	if err := checkCollection(col); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`), col, id)
	if err != nil {
		return fail("delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("docstore: %s/%s: %w", col, id, apperr.ErrNotFound)
	}
	s.publish(col)
	return nil
}

// publish sends the collection's current snapshot to its subscribers.
// Callers hold writeMu. A failed snapshot read skips the notification;
// subscribers catch up on the next commit.
func (s *Store) publish(col string) {
	recs, err := s.list(context.Background(), col)
	if err != nil {
		return
	}
	s.hub.publish(col, recs)
}

// Subscribe registers onChange for live snapshots of col, ordered by
// createdAt descending. The initial snapshot is delivered promptly, then one
// snapshot per committed write, in commit order. Callbacks for one
// subscription never run concurrently.
//
// The returned function unsubscribes; cancelling ctx has the same effect.
// Snapshots are shared between subscribers and must not be modified.
func (s *Store) Subscribe(ctx context.Context, col string, onChange func([]Record)) (func(), error) {
	if err := checkCollection(col); err != nil {
		return nil, err
	}
	sub := newSubscriber(col, onChange)

	s.writeMu.Lock()
	recs, err := s.list(ctx, col)
	if err != nil {
		s.writeMu.Unlock()
		return nil, err
	}
	sub.push(recs)
	ok := s.hub.subscribe(sub)
	s.writeMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("docstore: store closed: %w", apperr.ErrOperationFailed)
	}

	go sub.run()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.hub.unsubscribe(sub)
			sub.close()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-sub.done:
		}
	}()
	return unsubscribe, nil
}
