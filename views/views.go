// Package views is the default look of a folio site. Pages are html/template
// files embedded in the binary, exposed as templ components through
// Default.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"

	folio "github.com/eringen/folio"
	"github.com/eringen/folio/content"
	"github.com/eringen/folio/form"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageNames = []string{
	"home", "about", "contact", "projects", "project", "blog", "post",
	"admin_login", "admin_dashboard", "admin_project", "admin_blog",
	"not_found", "error",
}

// pages maps a page name to the layout parsed together with that page's
// "content" block.
var pages = mustParse()

func mustParse() map[string]*template.Template {
	base := template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templatesFS, "templates/layout.html"))
	out := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t := template.Must(base.Clone())
		out[name] = template.Must(t.ParseFS(templatesFS, "templates/"+name+".html"))
	}
	return out
}

// view is the data handed to every template. Unused fields stay zero.
type view struct {
	folio.Page
	Projects []content.ProjectEntry
	Posts    []content.BlogEntry
	Project  content.ProjectEntry
	Post     content.BlogEntry
	Related  []content.BlogEntry
	Filter   string
	Filters  []string
	Error    string

	ProjectForm *form.ProjectForm
	BlogForm    *form.BlogForm
	Editing     bool
	FormID      string
	NotFound    bool
	Message     string
	Errors      map[string]string
}

func render(name string, v view) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		t, ok := pages[name]
		if !ok {
			return fmt.Errorf("views: unknown page %q", name)
		}
		return t.ExecuteTemplate(w, "layout", v)
	})
}

// Default returns the built-in view functions.
func Default() folio.ViewFuncs {
	return folio.ViewFuncs{
		Home: func(p folio.Page, projects []content.ProjectEntry, posts []content.BlogEntry) templ.Component {
			return render("home", view{Page: p, Projects: projects, Posts: posts})
		},
		About: func(p folio.Page) templ.Component {
			return render("about", view{Page: p})
		},
		Contact: func(p folio.Page) templ.Component {
			return render("contact", view{Page: p})
		},
		Projects: func(p folio.Page, projects []content.ProjectEntry, category string, categories []string) templ.Component {
			return render("projects", view{Page: p, Projects: projects, Filter: category, Filters: categories})
		},
		Project: func(p folio.Page, project content.ProjectEntry) templ.Component {
			return render("project", view{Page: p, Project: project})
		},
		Blog: func(p folio.Page, posts []content.BlogEntry, tag string, tags []string) templ.Component {
			return render("blog", view{Page: p, Posts: posts, Filter: tag, Filters: tags})
		},
		Post: func(p folio.Page, post content.BlogEntry, related []content.BlogEntry) templ.Component {
			return render("post", view{Page: p, Post: post, Related: related})
		},
		AdminLogin: func(p folio.Page, errMsg string) templ.Component {
			return render("admin_login", view{Page: p, Error: errMsg})
		},
		AdminDashboard: func(p folio.Page, projects []content.ProjectEntry, posts []content.BlogEntry) templ.Component {
			return render("admin_dashboard", view{Page: p, Projects: projects, Posts: posts})
		},
		AdminProjectForm: func(p folio.Page, f *form.ProjectForm) templ.Component {
			return render("admin_project", view{
				Page:        p,
				ProjectForm: f,
				Editing:     f.Mode() == form.ModeEdit,
				FormID:      f.ID(),
				NotFound:    f.NotFound(),
				Message:     f.Message(),
				Errors:      f.FieldErrors(),
			})
		},
		AdminBlogForm: func(p folio.Page, f *form.BlogForm) templ.Component {
			return render("admin_blog", view{
				Page:     p,
				BlogForm: f,
				Editing:  f.Mode() == form.ModeEdit,
				FormID:   f.ID(),
				NotFound: f.NotFound(),
				Message:  f.Message(),
				Errors:   f.FieldErrors(),
			})
		},
		NotFound: func(p folio.Page) templ.Component {
			return render("not_found", view{Page: p})
		},
		ServerError: func(p folio.Page) templ.Component {
			return render("error", view{Page: p})
		},
	}
}
