package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/folio/apperr"
	"github.com/eringen/folio/blob"
	"github.com/eringen/folio/content"
	"github.com/eringen/folio/docstore"
)

// ProjectForm is the draft state behind the project create/edit form.
type ProjectForm struct {
	state
	Draft content.Project
}

// NewProjectForm returns a create-mode form with the default year and
// category filled in.
func NewProjectForm() *ProjectForm {
	return &ProjectForm{
		Draft: content.Project{
			Year:     time.Now().Year(),
			Category: content.FullStack,
		},
	}
}

// LoadProject returns an edit-mode form for the project with the given id.
// When no project has that id, a project whose slug equals id is used
// instead. If neither exists the form is marked not found and the returned
// error wraps apperr.ErrNotFound.
func LoadProject(ctx context.Context, l Loader, id string) (*ProjectForm, error) {
	f := NewProjectForm()
	f.SetEdit(id)
	rec, err := load(ctx, l, docstore.Projects, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			f.notFound = true
		}
		return f, f.fail(err)
	}
	entry, err := content.DecodeProject(rec)
	if err != nil {
		return f, f.fail(fmt.Errorf("form: %w: %w", apperr.ErrOperationFailed, err))
	}
	f.id = rec.ID
	f.Draft = entry.Project
	return f, nil
}

// Set updates a scalar field. Nested link fields use dotted names.
func (f *ProjectForm) Set(field, value string) error {
	d := &f.Draft
	switch field {
	case "slug":
		d.Slug = value
	case "title":
		d.Title = value
	case "summary":
		d.Summary = value
	case "description":
		d.Description = value
	case "problem":
		d.Problem = value
	case "solution":
		d.Solution = value
	case "category":
		d.Category = content.Category(strings.TrimSpace(value))
	case "links.demo":
		d.Links.Demo = value
	case "links.code":
		d.Links.Code = value
	case "imageUrl":
		d.ImageURL = value
	case "year":
		y, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return &apperr.ValidationError{Fields: map[string]string{"year": "must be a number"}}
		}
		d.Year = y
	default:
		return unknownField(field)
	}
	return nil
}

func (f *ProjectForm) list(field string) (*[]string, bool) {
	switch field {
	case "highlights":
		return &f.Draft.Highlights, true
	case "learnings":
		return &f.Draft.Learnings, true
	case "tags":
		return &f.Draft.Tags, true
	case "stack":
		return &f.Draft.Stack, true
	}
	return nil, false
}

// AddItem appends the trimmed value to a list field. Blank values are
// ignored.
func (f *ProjectForm) AddItem(field, value string) error {
	l, ok := f.list(field)
	if !ok {
		return unknownField(field)
	}
	addItem(l, value)
	return nil
}

// RemoveItem removes the i-th entry of a list field, including "images".
func (f *ProjectForm) RemoveItem(field string, i int) error {
	if field == "images" {
		removeItem(&f.Draft.Images, i)
		return nil
	}
	l, ok := f.list(field)
	if !ok {
		return unknownField(field)
	}
	removeItem(l, i)
	return nil
}

// AddImage appends a gallery image. A blank src is ignored.
func (f *ProjectForm) AddImage(src, alt string) {
	src = strings.TrimSpace(src)
	if src == "" {
		return
	}
	f.Draft.Images = append(f.Draft.Images, content.Image{Src: src, Alt: strings.TrimSpace(alt)})
}

// ClearImage removes the cover image. Its blob is deleted after the next
// successful submit.
func (f *ProjectForm) ClearImage() {
	if f.Draft.ImagePath != "" {
		f.dropped = f.Draft.ImagePath
	}
	f.Draft.ImageURL, f.Draft.ImagePath = "", ""
	f.pending = nil
}

// Document returns the normalised document the form would submit.
func (f *ProjectForm) Document() content.Project {
	doc := f.Draft
	doc.Normalize()
	return doc
}

// Validate checks the draft and records field errors on the form.
func (f *ProjectForm) Validate() error {
	return f.validated(f.Document().Validate())
}

// Submit validates the draft and writes it with exactly one create or update
// call. An invalid draft makes no store or blob calls.
func (f *ProjectForm) Submit(ctx context.Context, d Deps) error {
	if f.notFound {
		return f.fail(fmt.Errorf("form: project %q: %w", f.id, apperr.ErrNotFound))
	}
	release, err := f.begin(d.Guard, guardKey(docstore.Projects, &f.state, f.Document().Slug))
	if err != nil {
		return err
	}
	defer release()

	if err := f.Validate(); err != nil {
		return err
	}

	oldPath := ""
	if f.pending != nil {
		oldPath = f.Draft.ImagePath
	}
	var saved content.Project
	err = f.submit(ctx, d, docstore.Projects, blob.FolderProjects, oldPath, func(obj *blob.Object) (docstore.Fields, error) {
		saved = f.Document()
		if obj != nil {
			saved.ImageURL, saved.ImagePath = obj.URL, obj.Path
		}
		return content.Encode(saved)
	})
	if err != nil {
		return err
	}
	f.Draft = saved
	f.mode = ModeEdit
	return nil
}
