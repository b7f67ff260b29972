package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	folio "github.com/eringen/folio"
	"github.com/eringen/folio/content"
	"github.com/eringen/folio/form"
	"github.com/eringen/folio/identity"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func testPage() folio.Page {
	return folio.Page{
		Site: folio.SiteConfig{Name: "Folio", URL: "https://example.com", Author: "Ada"},
		Meta: folio.PageMeta{Title: "Folio", URL: "https://example.com/", OGType: "website"},
		CSRF: "tok123",
	}
}

func sampleProject() content.ProjectEntry {
	return content.ProjectEntry{
		Meta: content.Meta{ID: "p1"},
		Project: content.Project{
			Slug:        "hello-world",
			Title:       "Hello World",
			Year:        2024,
			Category:    content.FullStack,
			Summary:     "A first project",
			Description: "Built with **Go**",
			Stack:       []string{"Go", "SQLite"},
			Links:       content.Links{Code: "https://github.com/x/y"},
		},
	}
}

func samplePost() content.BlogEntry {
	return content.BlogEntry{
		Meta: content.Meta{ID: "b1"},
		Blog: content.Blog{
			Slug:        "first-post",
			Title:       "First Post",
			Summary:     "Hello",
			Content:     "## Intro\n\n<script>alert(1)</script>",
			Date:        "2024-05-01",
			Tags:        []string{"go"},
			ReadingTime: "1 min read",
		},
	}
}

func TestAllPagesParse(t *testing.T) {
	for _, name := range pageNames {
		if pages[name] == nil {
			t.Errorf("page %q not parsed", name)
		}
	}
}

func TestHomeListsContent(t *testing.T) {
	v := Default()
	html := renderString(t, v.Home(testPage(), []content.ProjectEntry{sampleProject()}, []content.BlogEntry{samplePost()}))
	for _, want := range []string{"Hello World", `href="/projects/hello-world/"`, "First Post", "<title>Folio</title>", `data-live="projects"`} {
		if !strings.Contains(html, want) {
			t.Errorf("home missing %q", want)
		}
	}
}

func TestProjectsFilterMarksActive(t *testing.T) {
	v := Default()
	html := renderString(t, v.Projects(testPage(), nil, "Frontend", []string{"All", "Full-Stack", "Frontend", "API"}))
	if !strings.Contains(html, `href="/projects/?category=Frontend" aria-current="true"`) {
		t.Errorf("active filter not marked:\n%s", html)
	}
	if !strings.Contains(html, "No projects found.") {
		t.Error("empty state missing")
	}
}

func TestPostRendersMarkdownSafely(t *testing.T) {
	v := Default()
	html := renderString(t, v.Post(testPage(), samplePost(), nil))
	if !strings.Contains(html, `<h2 id="intro">Intro</h2>`) {
		t.Errorf("markdown heading missing:\n%s", html)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("raw script rendered")
	}
}

func TestProjectJSONLDNotEscaped(t *testing.T) {
	v := Default()
	p := testPage()
	p.Meta.JSONLD = `{"@type":"SoftwareSourceCode"}`
	html := renderString(t, v.Project(p, sampleProject()))
	if !strings.Contains(html, `{"@type":"SoftwareSourceCode"}`) {
		t.Errorf("json-ld altered:\n%s", html)
	}
}

func TestAdminLoginDisabled(t *testing.T) {
	v := Default()
	html := renderString(t, v.AdminLogin(testPage(), "Admin is not configured"))
	if strings.Contains(html, `action="/admin/login/"`) {
		t.Error("login form shown while admin disabled")
	}
	if !strings.Contains(html, "Admin is not configured") {
		t.Error("message missing")
	}
}

func TestAdminDashboardShowsSession(t *testing.T) {
	v := Default()
	p := testPage()
	p.AdminEnabled = true
	p.Session = identity.Session{Status: identity.Authenticated, Identity: identity.Identity{Email: "me@example.com"}}
	html := renderString(t, v.AdminDashboard(p, []content.ProjectEntry{sampleProject()}, nil))
	for _, want := range []string{"me@example.com", "/admin/projects/p1/edit/", `value="tok123"`, "No posts yet."} {
		if !strings.Contains(html, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestProjectFormEditor(t *testing.T) {
	f := form.NewProjectForm()
	f.Draft = sampleProject().Project
	f.Draft.Tags = []string{"web", "go"}
	f.SetEdit("p1")
	html := renderString(t, Default().AdminProjectForm(testPage(), f))
	for _, want := range []string{
		`action="/admin/projects/p1/edit/"`,
		`value="remove:tags:1"`,
		`name="new.tags"`,
		`<option value="Full-Stack" selected>`,
		`enctype="multipart/form-data"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("project form missing %q", want)
		}
	}
}

func TestBlogFormShowsFieldErrors(t *testing.T) {
	f := form.NewBlogForm()
	_ = f.Validate()
	html := renderString(t, Default().AdminBlogForm(testPage(), f))
	if !strings.Contains(html, `class="error"`) {
		t.Errorf("field errors not rendered:\n%s", html)
	}
	if !strings.Contains(html, `action="/admin/blogs/new/"`) {
		t.Error("create action missing")
	}
}
