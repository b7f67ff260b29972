package content

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/apperr"
	"github.com/eringen/folio/docstore"
)

func TestSlugify(t *testing.T) {
	for in, want := range map[string]string{
		"Hello World":        "hello-world",
		"  Go & SQLite!  ":   "go-sqlite",
		"already-a-slug":     "already-a-slug",
		"Ünïcode is dropped": "n-code-is-dropped",
		"!!!":                "",
	} {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestEstimateReadingTime(t *testing.T) {
	assert.Equal(t, "1 min read", EstimateReadingTime(""))
	assert.Equal(t, "1 min read", EstimateReadingTime("just a few words"))
	long := ""
	for i := 0; i < 401; i++ {
		long += "word "
	}
	assert.Equal(t, "3 min read", EstimateReadingTime(long))
}

func TestProjectValidateFieldKeys(t *testing.T) {
	err := Project{Slug: "Bad Slug", Category: "Backend"}.Validate()
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	for _, k := range []string{"slug", "title", "summary", "year", "category", "links.code"} {
		assert.Contains(t, ve.Fields, k)
	}
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestProjectValidateAcceptsAnyYear(t *testing.T) {
	p := Project{Slug: "retro", Title: "Retro", Summary: "Old work", Year: 1998, Category: Frontend, Links: Links{Code: "https://x"}}
	assert.NoError(t, p.Validate())
	p.Year = 2031
	assert.NoError(t, p.Validate())
}

func TestBlogValidate(t *testing.T) {
	b := Blog{Slug: "hello-world", Title: "Hello", Summary: "First post", Date: "2025-01-01", ReadingTime: "3 min read"}
	assert.NoError(t, b.Validate())

	b.Date = "2025-13-01"
	var ve *apperr.ValidationError
	require.True(t, errors.As(b.Validate(), &ve))
	assert.Contains(t, ve.Fields, "date")
}

func TestNormalizeDropsBlankItems(t *testing.T) {
	p := Project{Title: "  T ", Tags: []string{" go ", "", "   ", "go"}, Images: []Image{{Src: " "}, {Src: "a.jpg", Alt: " A "}}}
	p.Normalize()
	assert.Equal(t, "T", p.Title)
	assert.Equal(t, []string{"go", "go"}, p.Tags)
	assert.Equal(t, []Image{{Src: "a.jpg", Alt: "A"}}, p.Images)
}

func TestDecodeCarriesStoreMeta(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := docstore.Record{
		ID:        "p1",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
		Fields: docstore.Fields{
			"slug": "tool", "title": "Tool", "year": 2024.0, "category": "API",
			"links": map[string]any{"code": "https://x"}, "stack": []any{"Go"},
		},
	}
	e, err := DecodeProject(rec)
	require.NoError(t, err)
	assert.Equal(t, "p1", e.ID)
	assert.Equal(t, created, e.CreatedAt)
	assert.Equal(t, 2024, e.Year)
	assert.Equal(t, API, e.Category)
	assert.Equal(t, []string{"Go"}, e.Stack)
	assert.Equal(t, "/projects/tool/", e.Link())
}

func TestDecodeSnapshotSkipsBadRecords(t *testing.T) {
	recs := []docstore.Record{
		{ID: "ok", Fields: docstore.Fields{"slug": "ok", "year": 2024.0}},
		{ID: "bad", Fields: docstore.Fields{"slug": "bad", "year": "not a number"}},
	}
	out := DecodeProjects(recs)
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].ID)
	assert.NotNil(t, DecodeBlogs(nil))
}

func TestEncodeOmitsStoreMeta(t *testing.T) {
	f, err := Encode(Blog{Slug: "s", Title: "T"})
	require.NoError(t, err)
	assert.Equal(t, "s", f["slug"])
	assert.NotContains(t, f, "id")
	assert.NotContains(t, f, docstore.FieldCreatedAt)
}
