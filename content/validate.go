package content

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/eringen/folio/apperr"
)

var notBlank = validation.NewStringRule(func(s string) bool {
	return strings.TrimSpace(s) != ""
}, "cannot be blank")

var urlSafe = validation.Match(slugPattern).Error("must be lowercase letters, digits and dashes")

// Validate checks a link set: a project must link its source code.
func (l Links) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Code, validation.Required, notBlank),
	)
}

// Validate checks the required fields of a project.
func (p Project) Validate() error {
	return Flatten(validation.ValidateStruct(&p,
		validation.Field(&p.Slug, validation.Required, notBlank, urlSafe),
		validation.Field(&p.Title, validation.Required, notBlank),
		validation.Field(&p.Summary, validation.Required, notBlank),
		validation.Field(&p.Year, validation.Required),
		validation.Field(&p.Category, validation.Required, validation.In(FullStack, Frontend, API)),
		validation.Field(&p.Links),
	))
}

// Validate checks the required fields of a blog post.
func (b Blog) Validate() error {
	return Flatten(validation.ValidateStruct(&b,
		validation.Field(&b.Slug, validation.Required, notBlank, urlSafe),
		validation.Field(&b.Title, validation.Required, notBlank),
		validation.Field(&b.Summary, validation.Required, notBlank),
		validation.Field(&b.Date, validation.Required, validation.Date("2006-01-02").Error("must be a date formatted YYYY-MM-DD")),
		validation.Field(&b.ReadingTime, validation.Required, notBlank),
	))
}

// Flatten converts ozzo validation errors into an *apperr.ValidationError
// keyed by dotted field paths. Other errors pass through unchanged.
func Flatten(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string)
	flattenInto(fields, "", verrs)
	if len(fields) == 0 {
		return nil
	}
	return &apperr.ValidationError{Fields: fields}
}

func flattenInto(dst map[string]string, prefix string, errs validation.Errors) {
	for k, e := range errs {
		if e == nil {
			continue
		}
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		var nested validation.Errors
		if errors.As(e, &nested) {
			flattenInto(dst, key, nested)
			continue
		}
		dst[key] = e.Error()
	}
}

// Normalize trims scalar fields and drops blank list entries.
func (p *Project) Normalize() {
	for _, s := range []*string{&p.Slug, &p.Title, &p.Summary, &p.Description, &p.Problem, &p.Solution, &p.Links.Demo, &p.Links.Code, &p.ImageURL} {
		*s = strings.TrimSpace(*s)
	}
	p.Highlights = compact(p.Highlights)
	p.Learnings = compact(p.Learnings)
	p.Tags = compact(p.Tags)
	p.Stack = compact(p.Stack)
	p.Images = compactImages(p.Images)
}

// Normalize trims scalar fields and drops blank list entries.
func (b *Blog) Normalize() {
	for _, s := range []*string{&b.Slug, &b.Title, &b.Summary, &b.Date, &b.ReadingTime, &b.ImageURL} {
		*s = strings.TrimSpace(*s)
	}
	b.Tags = compact(b.Tags)
	b.Images = compactImages(b.Images)
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func compactImages(imgs []Image) []Image {
	out := make([]Image, 0, len(imgs))
	for _, img := range imgs {
		img.Src = strings.TrimSpace(img.Src)
		img.Alt = strings.TrimSpace(img.Alt)
		if img.Src != "" {
			out = append(out, img)
		}
	}
	return out
}
