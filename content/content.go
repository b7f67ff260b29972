// Package content defines the Project and Blog documents stored in the
// document store and the conversions between them and raw store fields.
package content

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/eringen/folio/docstore"
)

// Category groups projects on the listing page.
type Category string

const (
	FullStack Category = "Full-Stack"
	Frontend  Category = "Frontend"
	API       Category = "API"
)

// Categories lists every valid category in display order.
var Categories = []Category{FullStack, Frontend, API}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Links holds the outbound links of a project.
type Links struct {
	Demo string `json:"demo"`
	Code string `json:"code"`
}

// Image is one entry of a document's image gallery.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Project is a portfolio entry in the "projects" collection.
type Project struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Year        int      `json:"year"`
	Category    Category `json:"category"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Problem     string   `json:"problem"`
	Solution    string   `json:"solution"`
	Highlights  []string `json:"highlights"`
	Learnings   []string `json:"learnings"`
	Tags        []string `json:"tags"`
	Stack       []string `json:"stack"`
	Links       Links    `json:"links"`
	Images      []Image  `json:"images"`
	ImageURL    string   `json:"imageUrl"`
	ImagePath   string   `json:"imagePath"`
}

// Blog is a post in the "blogs" collection.
type Blog struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Content     string   `json:"content"`
	Date        string   `json:"date"`
	Tags        []string `json:"tags"`
	ReadingTime string   `json:"readingTime"`
	Images      []Image  `json:"images"`
	ImageURL    string   `json:"imageUrl"`
	ImagePath   string   `json:"imagePath"`
}

// Meta is the store-owned part of an entry.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProjectEntry pairs a project with its store metadata.
type ProjectEntry struct {
	Meta
	Project
}

// BlogEntry pairs a blog post with its store metadata.
type BlogEntry struct {
	Meta
	Blog
}

// Link returns the public path of the project.
func (p Project) Link() string { return "/projects/" + p.Slug + "/" }

// Link returns the public path of the post.
func (b Blog) Link() string { return "/blog/" + b.Slug + "/" }

// Encode converts a document into store fields.
func Encode(doc any) (docstore.Fields, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var f docstore.Fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return f, nil
}

func decode(rec docstore.Record, dst any) error {
	b, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("decode %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode %s: %w", rec.ID, err)
	}
	return nil
}

func meta(rec docstore.Record) Meta {
	return Meta{ID: rec.ID, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}
}

// DecodeProject converts a store record into a ProjectEntry.
func DecodeProject(rec docstore.Record) (ProjectEntry, error) {
	var p Project
	if err := decode(rec, &p); err != nil {
		return ProjectEntry{}, err
	}
	return ProjectEntry{Meta: meta(rec), Project: p}, nil
}

// DecodeBlog converts a store record into a BlogEntry.
func DecodeBlog(rec docstore.Record) (BlogEntry, error) {
	var b Blog
	if err := decode(rec, &b); err != nil {
		return BlogEntry{}, err
	}
	return BlogEntry{Meta: meta(rec), Blog: b}, nil
}

// DecodeProjects converts a snapshot, skipping records that fail to decode.
func DecodeProjects(recs []docstore.Record) []ProjectEntry {
	out := make([]ProjectEntry, 0, len(recs))
	for _, r := range recs {
		if e, err := DecodeProject(r); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// DecodeBlogs converts a snapshot, skipping records that fail to decode.
func DecodeBlogs(recs []docstore.Record) []BlogEntry {
	out := make([]BlogEntry, 0, len(recs))
	for _, r := range recs {
		if e, err := DecodeBlog(r); err == nil {
			out = append(out, e)
		}
	}
	return out
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// EstimateReadingTime returns a "N min read" label at 200 words per minute.
func EstimateReadingTime(markdown string) string {
	words := len(strings.Fields(markdown))
	mins := (words + 199) / 200
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("%d min read", mins)
}
