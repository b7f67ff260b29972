// Package form implements the draft state machines behind the admin create
// and edit forms for projects and blog posts.
//
// A form holds a draft document, its mode and target id, an optional staged
// cover image, and the message of the last failed operation. Submit
// validates the draft, uploads the staged image, writes the document with
// exactly one create or update call and swaps the old cover blob for the new
// one. A failed submit leaves the draft untouched.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/eringen/folio/apperr"
	"github.com/eringen/folio/blob"
	"github.com/eringen/folio/docstore"
)

// Mode says whether Submit creates a new document or updates one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

// Writer is the store surface used by Submit.
type Writer interface {
	Create(ctx context.Context, col string, fields docstore.Fields) (string, error)
	Update(ctx context.Context, col, id string, fields docstore.Fields) error
}

// Loader is the store surface used for edit-mode loading.
type Loader interface {
	Get(ctx context.Context, col, id string) (docstore.Record, error)
	GetBySlug(ctx context.Context, col, slug string) (docstore.Record, error)
}

// Blobs is the blob store surface used by Submit.
type Blobs interface {
	Upload(ctx context.Context, f blob.File, folder string) (blob.Object, error)
	Delete(ctx context.Context, path string)
}

// Deps are the collaborators of Submit. A nil Store, or a nil Blobs while an
// image is staged, fails with apperr.ErrConfigurationMissing.
type Deps struct {
	Store Writer
	Blobs Blobs
	// Guard, when set, rejects concurrent submits for the same target
	// across form instances.
	Guard *Guard
}

// state is shared by both forms.
type state struct {
	mode     Mode
	id       string
	notFound bool
	message  string
	errors   map[string]string
	pending  *blob.File
	dropped  string
	inFlight atomic.Bool
}

// Mode returns the form's mode.
func (s *state) Mode() Mode { return s.mode }

// ID returns the id of the document being edited, or of the document
// created by the last successful submit.
func (s *state) ID() string { return s.id }

// NotFound reports whether edit-mode loading found no document. Submit is
// disabled in that state.
func (s *state) NotFound() bool { return s.notFound }

// Message returns the user-visible message of the last failure.
func (s *state) Message() string { return s.message }

// FieldErrors returns per-field validation messages from the last Validate.
func (s *state) FieldErrors() map[string]string { return s.errors }

// Submitting reports whether a submit is in flight.
func (s *state) Submitting() bool { return s.inFlight.Load() }

// AttachImage stages a cover image to upload on the next Submit.
func (s *state) AttachImage(f blob.File) { s.pending = &f }

// HasPendingImage reports whether a cover image is staged.
func (s *state) HasPendingImage() bool { return s.pending != nil }

// SetEdit switches the form to edit mode for id.
func (s *state) SetEdit(id string) {
	s.mode = ModeEdit
	s.id = id
}

func (s *state) fail(err error) error {
	s.message = apperr.Message(err)
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		s.errors = ve.Fields
	}
	return err
}

func (s *state) validated(err error) error {
	s.errors = nil
	if err != nil {
		return s.fail(err)
	}
	return nil
}

// begin marks a submit in flight. The returned release func must be called.
func (s *state) begin(g *Guard, key string) (func(), error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, apperr.ErrSubmitInFlight
	}
	releaseGuard := func() {}
	if g != nil {
		r, ok := g.Acquire(key)
		if !ok {
			s.inFlight.Store(false)
			return nil, apperr.ErrSubmitInFlight
		}
		releaseGuard = r
	}
	return func() {
		releaseGuard()
		s.inFlight.Store(false)
	}, nil
}

// submit runs the shared submit pipeline: upload, write, swap blobs.
// build receives the uploaded cover (or nil) and returns the fields to write.
func (s *state) submit(ctx context.Context, d Deps, col, folder, oldPath string, build func(*blob.Object) (docstore.Fields, error)) error {
	if d.Store == nil {
		return s.fail(fmt.Errorf("form: no store: %w", apperr.ErrConfigurationMissing))
	}

	var uploaded *blob.Object
	if s.pending != nil {
		if d.Blobs == nil {
			return s.fail(fmt.Errorf("form: no blob store: %w", apperr.ErrConfigurationMissing))
		}
		obj, err := d.Blobs.Upload(ctx, *s.pending, folder)
		if err != nil {
			return s.fail(err)
		}
		uploaded = &obj
	}

	fields, err := build(uploaded)
	if err != nil {
		if uploaded != nil {
			d.Blobs.Delete(ctx, uploaded.Path)
		}
		return s.fail(err)
	}

	if s.mode == ModeEdit {
		err = d.Store.Update(ctx, col, s.id, fields)
	} else {
		var id string
		id, err = d.Store.Create(ctx, col, fields)
		if err == nil {
			s.id = id
		}
	}
	if err != nil {
		if uploaded != nil {
			d.Blobs.Delete(ctx, uploaded.Path)
		}
		return s.fail(err)
	}

	if uploaded != nil {
		s.pending = nil
		if oldPath != "" && d.Blobs != nil {
			d.Blobs.Delete(ctx, oldPath)
		}
	}
	if s.dropped != "" && s.dropped != oldPath && d.Blobs != nil {
		d.Blobs.Delete(ctx, s.dropped)
	}
	s.dropped = ""
	s.message = ""
	s.errors = nil
	return nil
}

// addItem appends the trimmed value unless it is blank.
func addItem(list *[]string, value string) {
	v := strings.TrimSpace(value)
	if v == "" {
		return
	}
	*list = append(*list, v)
}

// removeItem removes the element at i. Out-of-range indexes are ignored.
func removeItem[T any](list *[]T, i int) {
	if i < 0 || i >= len(*list) {
		return
	}
	out := make([]T, 0, len(*list)-1)
	out = append(out, (*list)[:i]...)
	*list = append(out, (*list)[i+1:]...)
}

func unknownField(field string) error {
	return &apperr.ValidationError{Fields: map[string]string{field: "unknown field"}}
}

// Guard tracks submit targets in flight across form instances.
type Guard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewGuard returns an empty Guard.
func NewGuard() *Guard { return &Guard{active: make(map[string]struct{})} }

// Acquire claims key. It returns false when key is already claimed.
func (g *Guard) Acquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[key]; busy {
		return nil, false
	}
	g.active[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, key)
			g.mu.Unlock()
		})
	}, true
}

func guardKey(col string, s *state, slug string) string {
	if s.mode == ModeEdit {
		return col + "/id/" + s.id
	}
	return col + "/new/" + slug
}

// load fetches the record for id, falling back to a slug lookup when the id
// lookup misses.
func load(ctx context.Context, l Loader, col, id string) (docstore.Record, error) {
	rec, err := l.Get(ctx, col, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return docstore.Record{}, err
	}
	return l.GetBySlug(ctx, col, id)
}
