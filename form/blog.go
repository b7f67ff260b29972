package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eringen/folio/apperr"
	"github.com/eringen/folio/blob"
	"github.com/eringen/folio/content"
	"github.com/eringen/folio/docstore"
)

// BlogForm is the draft state behind the blog post create/edit form.
type BlogForm struct {
	state
	Draft content.Blog
}

// NewBlogForm returns a create-mode form dated today.
func NewBlogForm() *BlogForm {
	return &BlogForm{
		Draft: content.Blog{Date: time.Now().Format("2006-01-02")},
	}
}

// LoadBlog returns an edit-mode form for the post with the given id, falling
// back to a slug lookup. See LoadProject.
func LoadBlog(ctx context.Context, l Loader, id string) (*BlogForm, error) {
	f := NewBlogForm()
	f.SetEdit(id)
	rec, err := load(ctx, l, docstore.Blogs, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			f.notFound = true
		}
		return f, f.fail(err)
	}
	entry, err := content.DecodeBlog(rec)
	if err != nil {
		return f, f.fail(fmt.Errorf("form: %w: %w", apperr.ErrOperationFailed, err))
	}
	f.id = rec.ID
	f.Draft = entry.Blog
	return f, nil
}

// Set updates a scalar field.
func (f *BlogForm) Set(field, value string) error {
	d := &f.Draft
	switch field {
	case "slug":
		d.Slug = value
	case "title":
		d.Title = value
	case "summary":
		d.Summary = value
	case "content":
		d.Content = value
	case "date":
		d.Date = value
	case "readingTime":
		d.ReadingTime = value
	case "imageUrl":
		d.ImageURL = value
	default:
		return unknownField(field)
	}
	return nil
}

// AddItem appends a trimmed tag. Blank values are ignored.
func (f *BlogForm) AddItem(field, value string) error {
	if field != "tags" {
		return unknownField(field)
	}
	addItem(&f.Draft.Tags, value)
	return nil
}

// RemoveItem removes the i-th tag or gallery image.
func (f *BlogForm) RemoveItem(field string, i int) error {
	switch field {
	case "tags":
		removeItem(&f.Draft.Tags, i)
	case "images":
		removeItem(&f.Draft.Images, i)
	default:
		return unknownField(field)
	}
	return nil
}

// AddImage appends a gallery image. A blank src is ignored.
func (f *BlogForm) AddImage(src, alt string) {
	src = strings.TrimSpace(src)
	if src == "" {
		return
	}
	f.Draft.Images = append(f.Draft.Images, content.Image{Src: src, Alt: strings.TrimSpace(alt)})
}

// ClearImage removes the cover image. Its blob is deleted after the next
// successful submit.
func (f *BlogForm) ClearImage() {
	if f.Draft.ImagePath != "" {
		f.dropped = f.Draft.ImagePath
	}
	f.Draft.ImageURL, f.Draft.ImagePath = "", ""
	f.pending = nil
}

// Document returns the normalised document the form would submit.
func (f *BlogForm) Document() content.Blog {
	doc := f.Draft
	doc.Normalize()
	return doc
}

// Validate checks the draft and records field errors on the form.
func (f *BlogForm) Validate() error {
	return f.validated(f.Document().Validate())
}

// Submit validates the draft and writes it with exactly one create or update
// call. An invalid draft makes no store or blob calls.
func (f *BlogForm) Submit(ctx context.Context, d Deps) error {
	if f.notFound {
		return f.fail(fmt.Errorf("form: blog %q: %w", f.id, apperr.ErrNotFound))
	}
	release, err := f.begin(d.Guard, guardKey(docstore.Blogs, &f.state, f.Document().Slug))
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
	var saved content.Blog
	err = f.submit(ctx, d, docstore.Blogs, blob.FolderBlogs, oldPath, func(obj *blob.Object) (docstore.Fields, error) {
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
