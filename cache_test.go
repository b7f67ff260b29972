package folio

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/content"
	"github.com/eringen/folio/docstore"
)

func startCache(t *testing.T) (*ContentCache, *docstore.Store) {
	t.Helper()
	store, err := docstore.Open(docstore.DriverSQLite, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c := NewContentCache(nil)
	require.NoError(t, c.Start(context.Background(), store))
	t.Cleanup(c.Stop)
	require.True(t, c.WaitReady(context.Background(), 2*time.Second))
	return c, store
}

func createDoc(t *testing.T, s *docstore.Store, col string, doc any) {
	t.Helper()
	fields, err := content.Encode(doc)
	require.NoError(t, err)
	_, err = s.Create(context.Background(), col, fields)
	require.NoError(t, err)
}

func project(slug string, year int, cat content.Category) content.Project {
	return content.Project{
		Slug: slug, Title: slug, Year: year, Category: cat, Summary: "s",
		Links: content.Links{Code: "https://example.com/" + slug},
	}
}

func post(slug, date string, tags ...string) content.Blog {
	return content.Blog{Slug: slug, Title: slug, Summary: "s", Date: date, Tags: tags, ReadingTime: "1 min read"}
}

func projectSlugs(ps []content.ProjectEntry) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Slug
	}
	return out
}

func blogSlugs(bs []content.BlogEntry) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Slug
	}
	return out
}

func TestCacheEmptyWhenReady(t *testing.T) {
	c, _ := startCache(t)
	assert.True(t, c.Ready())
	assert.NotNil(t, c.AllProjects())
	assert.Empty(t, c.Projects(""))
	assert.Equal(t, []string{AllFilter}, c.Tags())
}

func TestCacheProjectsByYearAndCategory(t *testing.T) {
	c, s := startCache(t)
	createDoc(t, s, docstore.Projects, project("old", 2019, content.API))
	createDoc(t, s, docstore.Projects, project("new", 2024, content.Frontend))
	createDoc(t, s, docstore.Projects, project("mid", 2021, content.Frontend))

	require.Eventually(t, func() bool { return len(c.AllProjects()) == 3 }, 2*time.Second, 10*time.Millisecond)

	// AllProjects keeps creation order, newest first.
	assert.Equal(t, []string{"mid", "new", "old"}, projectSlugs(c.AllProjects()))
	assert.Equal(t, []string{"new", "mid", "old"}, projectSlugs(c.Projects(AllFilter)))
	assert.Equal(t, []string{"new", "mid"}, projectSlugs(c.Projects(string(content.Frontend))))
	assert.Empty(t, c.Projects(string(content.FullStack)))

	p, ok := c.Project("old")
	require.True(t, ok)
	assert.Equal(t, 2019, p.Year)
	_, ok = c.Project("missing")
	assert.False(t, ok)
}

func TestCacheBlogsByDateAndTag(t *testing.T) {
	c, s := startCache(t)
	createDoc(t, s, docstore.Blogs, post("b", "2024-03-01", "go", "web"))
	createDoc(t, s, docstore.Blogs, post("a", "2024-05-01", "go"))
	createDoc(t, s, docstore.Blogs, post("c", "2023-12-31", "Go"))

	require.Eventually(t, func() bool { return len(c.AllBlogs()) == 3 }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"a", "b", "c"}, blogSlugs(c.Blogs("")))
	assert.Equal(t, []string{"a", "b"}, blogSlugs(c.Blogs("go")))
	assert.Equal(t, []string{"b"}, blogSlugs(c.Blogs("web")))
	assert.Equal(t, []string{AllFilter, "Go", "go", "web"}, c.Tags())
}

func TestCacheFollowsDeletes(t *testing.T) {
	c, s := startCache(t)
	fields, err := content.Encode(project("gone", 2022, content.API))
	require.NoError(t, err)
	id, err := s.Create(context.Background(), docstore.Projects, fields)
	require.NoError(t, err)
	require.Eventually(t, func() bool { _, ok := c.Project("gone"); return ok }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Delete(context.Background(), docstore.Projects, id))
	require.Eventually(t, func() bool { _, ok := c.Project("gone"); return !ok }, 2*time.Second, 10*time.Millisecond)
}

func TestCacheStopsAfterStop(t *testing.T) {
	c, s := startCache(t)
	c.Stop()
	createDoc(t, s, docstore.Projects, project("late", 2022, content.API))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, c.AllProjects())
}

func TestWaitReadyTimesOut(t *testing.T) {
	c := NewContentCache(nil)
	assert.False(t, c.WaitReady(context.Background(), 20*time.Millisecond))
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"All", "Full-Stack", "Frontend", "API"}, Categories())
}

func TestFilterRelatedPosts(t *testing.T) {
	current := content.BlogEntry{Blog: post("cur", "2024-01-01", "Go")}
	posts := []content.BlogEntry{
		current,
		{Blog: post("r1", "2024-01-02", "go ")},
		{Blog: post("x", "2024-01-03", "rust")},
		{Blog: post("r2", "2024-01-04", "web", "GO")},
		{Blog: post("r3", "2024-01-05", "go")},
	}
	assert.Equal(t, []string{"r1", "r2"}, blogSlugs(FilterRelatedPosts(current, posts, 2)))
	assert.Equal(t, []string{"r1", "r2", "r3"}, blogSlugs(FilterRelatedPosts(current, posts, 0)))
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "https://example.com/blog/hello/", BuildURL("https://example.com", "blog", "hello"))
	assert.Equal(t, "https://example.com", BuildURL("https://example.com"))
}
