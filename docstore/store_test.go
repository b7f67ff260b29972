package docstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/apperr"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "data", "folio.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedClock returns the same instant on every call.
func fixedClock() func() time.Time {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func collect(t *testing.T, s *Store, col string) (<-chan []Record, func()) {
	t.Helper()
	ch := make(chan []Record, 32)
	unsub, err := s.Subscribe(context.Background(), col, func(recs []Record) { ch <- recs })
	require.NoError(t, err)
	return ch, unsub
}

func next(t *testing.T, ch <-chan []Record) []Record {
	t.Helper()
	select {
	case recs := <-ch:
		return recs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func slugs(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Slug()
	}
	return out
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, Blogs, Fields{"slug": "hello-world", "title": "Hello", "tags": []any{"go"}})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := s.Get(ctx, Blogs, id)
	require.NoError(t, err)
	assert.Equal(t, "Hello", rec.Fields["title"])
	assert.Equal(t, []any{"go"}, rec.Fields["tags"])
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

	bySlug, err := s.GetBySlug(ctx, Blogs, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, id, bySlug.ID)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, Projects, "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.GetBySlug(ctx, Projects, "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.GetBySlug(ctx, Projects, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUnknownCollection(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), "users", Fields{"slug": "x"})
	assert.ErrorIs(t, err, apperr.ErrOperationFailed)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
}

func TestReservedFieldsStripped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, Projects, Fields{"slug": "p", "createdAt": "1999-01-01", "updatedAt": 5})
	require.NoError(t, err)
	rec, err := s.Get(ctx, Projects, id)
	require.NoError(t, err)
	assert.NotContains(t, rec.Fields, "createdAt")
	assert.NotContains(t, rec.Fields, "updatedAt")
	assert.Greater(t, rec.CreatedAt.Year(), 2000)
}

func TestUpdateMergesAndKeepsCreatedAt(t *testing.T) {
	s := newTestStore(t, WithClock(fixedClock()))
	ctx := context.Background()

	id, err := s.Create(ctx, Projects, Fields{"slug": "p", "title": "Old", "year": 2023})
	require.NoError(t, err)
	before, err := s.Get(ctx, Projects, id)
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, Projects, id, Fields{"title": "New", "createdAt": "2000-01-01"}))
	after, err := s.Get(ctx, Projects, id)
	require.NoError(t, err)

	assert.Equal(t, "New", after.Fields["title"])
	assert.EqualValues(t, 2023, after.Fields["year"])
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt), "updatedAt must advance")
}

func TestUpdateDeleteMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	assert.ErrorIs(t, s.Update(ctx, Blogs, "missing", Fields{"title": "x"}), apperr.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, Blogs, "missing"), apperr.ErrNotFound)
}

func TestSlugConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, Blogs, Fields{"slug": "same"})
	require.NoError(t, err)
	_, err = s.Create(ctx, Blogs, Fields{"slug": "same"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Same slug in the other collection is fine.
	_, err = s.Create(ctx, Projects, Fields{"slug": "same"})
	assert.NoError(t, err)

	b, err := s.Create(ctx, Blogs, Fields{"slug": "other"})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Update(ctx, Blogs, b, Fields{"slug": "same"}), apperr.ErrConflict)
	// Re-saving a document with its own slug is not a conflict.
	assert.NoError(t, s.Update(ctx, Blogs, a, Fields{"slug": "same", "title": "t"}))
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t, WithClock(fixedClock()))
	ctx := context.Background()

	for _, slug := range []string{"a", "b", "c"} {
		_, err := s.Create(ctx, Blogs, Fields{"slug": slug})
		require.NoError(t, err)
	}
	recs, err := s.List(ctx, Blogs)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, slugs(recs))
}

func TestSubscribeInitialSnapshot(t *testing.T) {
	s := newTestStore(t)
	ch, unsub := collect(t, s, Blogs)
	defer unsub()

	assert.Empty(t, next(t, ch))
}

func TestSubscribeSnapshotPerCommit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ch, unsub := collect(t, s, Blogs)
	defer unsub()
	require.Empty(t, next(t, ch))

	id, err := s.Create(ctx, Blogs, Fields{"slug": "hello-world", "title": "Hello"})
	require.NoError(t, err)
	snap := next(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "hello-world", snap[0].Slug())

	_, err = s.Create(ctx, Blogs, Fields{"slug": "second"})
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "hello-world"}, slugs(next(t, ch)))

	require.NoError(t, s.Update(ctx, Blogs, id, Fields{"title": "Hi"}))
	snap = next(t, ch)
	require.Len(t, snap, 2)
	assert.Equal(t, "Hi", snap[1].Fields["title"])

	require.NoError(t, s.Delete(ctx, Blogs, id))
	assert.Equal(t, []string{"second"}, slugs(next(t, ch)))

	// Writes to another collection do not notify.
	_, err = s.Create(ctx, Projects, Fields{"slug": "p"})
	require.NoError(t, err)
	select {
	case recs := <-ch:
		t.Fatalf("unexpected snapshot %v", slugs(recs))
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeOrderUnderSlowConsumer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var got [][]string
	done := make(chan struct{})
	unsub, err := s.Subscribe(ctx, Projects, func(recs []Record) {
		time.Sleep(5 * time.Millisecond)
		got = append(got, slugs(recs))
		if len(recs) == 5 {
			close(done)
		}
	})
	require.NoError(t, err)
	defer unsub()

	for _, slug := range []string{"a", "b", "c", "d", "e"} {
		_, err := s.Create(ctx, Projects, Fields{"slug": slug})
		require.NoError(t, err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	require.Len(t, got, 6)
	for i, snap := range got {
		assert.Len(t, snap, i)
	}
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ch, unsub := collect(t, s, Blogs)
	next(t, ch)

	unsub()
	unsub()
	assert.Eventually(t, func() bool { return s.Subscribers() == 0 }, time.Second, 10*time.Millisecond)

	_, err := s.Create(ctx, Blogs, Fields{"slug": "after"})
	require.NoError(t, err)
	select {
	case <-ch:
		t.Fatal("callback after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeContextCancel(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.Subscribe(ctx, Blogs, func([]Record) {})
	require.NoError(t, err)
	require.Equal(t, 1, s.Subscribers())

	cancel()
	assert.Eventually(t, func() bool { return s.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStampsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.db")
	ctx := context.Background()

	s, err := Open(DriverSQLite, path, WithClock(fixedClock()))
	require.NoError(t, err)
	_, err = s.Create(ctx, Blogs, Fields{"slug": "a"})
	require.NoError(t, err)
	_, err = s.Create(ctx, Blogs, Fields{"slug": "b"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(DriverSQLite, path, WithClock(fixedClock()))
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Create(ctx, Blogs, Fields{"slug": "c"})
	require.NoError(t, err)

	recs, err := s.List(ctx, Blogs)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, slugs(recs))
}

func TestRebind(t *testing.T) {
	s := &Store{driver: DriverPostgres}
	assert.Equal(t, "a = $1 AND b = $2", s.rebind("a = ? AND b = ?"))
	s.driver = DriverSQLite
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}
