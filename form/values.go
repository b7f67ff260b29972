package form

import (
	"net/url"

	"github.com/eringen/folio/apperr"
)

var (
	projectScalars = []string{"slug", "title", "year", "category", "summary", "description", "problem", "solution", "links.demo", "links.code", "imageUrl"}
	projectLists   = []string{"highlights", "learnings", "tags", "stack"}
	blogScalars    = []string{"slug", "title", "summary", "content", "date", "readingTime", "imageUrl"}
)

// ProjectFromValues builds a create-mode form from a posted admin form.
func ProjectFromValues(v url.Values) (*ProjectForm, error) {
	f := NewProjectForm()
	return f, f.Apply(v)
}

// BlogFromValues builds a create-mode form from a posted admin form.
func BlogFromValues(v url.Values) (*BlogForm, error) {
	f := NewBlogForm()
	return f, f.Apply(v)
}

// Apply copies posted values onto the draft. Scalars present in v replace
// the draft's; repeated list inputs replace the whole list, blank entries
// dropped. Gallery images are posted as parallel "images.src" and
// "images.alt" inputs. The cover image path is never taken from v.
// Every value is applied even when one is invalid; the errors are combined
// and recorded on the form like a failed Validate.
func (f *ProjectForm) Apply(v url.Values) error {
	errs := map[string]string{}
	for _, k := range projectScalars {
		if _, ok := v[k]; !ok {
			continue
		}
		collect(errs, f.Set(k, v.Get(k)))
	}
	for _, k := range projectLists {
		if _, ok := v[k]; !ok {
			continue
		}
		l, _ := f.list(k)
		*l = []string{}
		for _, item := range v[k] {
			addItem(l, item)
		}
	}
	if _, ok := v["images.src"]; ok {
		f.Draft.Images = nil
		alts := v["images.alt"]
		for i, src := range v["images.src"] {
			f.AddImage(src, at(alts, i))
		}
	}
	return f.validated(combine(errs))
}

// Apply copies posted values onto the draft. See ProjectForm.Apply.
func (f *BlogForm) Apply(v url.Values) error {
	errs := map[string]string{}
	for _, k := range blogScalars {
		if _, ok := v[k]; !ok {
			continue
		}
		collect(errs, f.Set(k, v.Get(k)))
	}
	if _, ok := v["tags"]; ok {
		f.Draft.Tags = []string{}
		for _, item := range v["tags"] {
			addItem(&f.Draft.Tags, item)
		}
	}
	if _, ok := v["images.src"]; ok {
		f.Draft.Images = nil
		alts := v["images.alt"]
		for i, src := range v["images.src"] {
			f.AddImage(src, at(alts, i))
		}
	}
	return f.validated(combine(errs))
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

func collect(dst map[string]string, err error) {
	if ve, ok := err.(*apperr.ValidationError); ok {
		for k, msg := range ve.Fields {
			dst[k] = msg
		}
	}
}

func combine(errs map[string]string) error {
	if len(errs) == 0 {
		return nil
	}
	return &apperr.ValidationError{Fields: errs}
}
