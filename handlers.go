package folio

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/folio/apperr"
)

const homeItems = 3

func (a *App) handleHome(c echo.Context) error {
	projects := a.Cache.Projects("")
	posts := a.Cache.Blogs("")
	if len(projects) > homeItems {
		projects = projects[:homeItems]
	}
	if len(posts) > homeItems {
		posts = posts[:homeItems]
	}
	p := a.page(c, PageMeta{JSONLD: WebsiteJsonLD(a.Config)})
	return Render(c, a.Views.Home(p, projects, posts))
}

func (a *App) handleAbout(c echo.Context) error {
	return Render(c, a.Views.About(a.page(c, PageMeta{Title: "About | " + a.Config.Name})))
}

func (a *App) handleContactPage(c echo.Context) error {
	return Render(c, a.Views.Contact(a.page(c, PageMeta{Title: "Contact | " + a.Config.Name})))
}

func (a *App) handleProjects(c echo.Context) error {
	category := c.QueryParam("category")
	if category == "" {
		category = AllFilter
	}
	p := a.page(c, PageMeta{Title: "Projects | " + a.Config.Name})
	return Render(c, a.Views.Projects(p, a.Cache.Projects(category), category, Categories()))
}

func (a *App) handleProject(c echo.Context) error {
	project, ok := a.Cache.Project(c.Param("slug"))
	if !ok {
		return echo.ErrNotFound
	}
	p := a.page(c, PageMeta{
		Title:       project.Title + " | " + a.Config.Name,
		Description: project.Summary,
		OGType:      "article",
		Image:       project.ImageURL,
		JSONLD:      ProjectJsonLD(project, a.Config),
	})
	return Render(c, a.Views.Project(p, project))
}

func (a *App) handleBlog(c echo.Context) error {
	tag := c.QueryParam("tag")
	if tag == "" {
		tag = AllFilter
	}
	p := a.page(c, PageMeta{Title: "Blog | " + a.Config.Name})
	return Render(c, a.Views.Blog(p, a.Cache.Blogs(tag), tag, a.Cache.Tags()))
}

func (a *App) handlePost(c echo.Context) error {
	post, ok := a.Cache.Blog(c.Param("slug"))
	if !ok {
		return echo.ErrNotFound
	}
	p := a.page(c, PageMeta{
		Title:       post.Title + " | " + a.Config.Name,
		Description: post.Summary,
		OGType:      "article",
		Image:       post.ImageURL,
		JSONLD:      BlogPostingJsonLD(post, a.Config),
	})
	related := FilterRelatedPosts(post, a.Cache.Blogs(""), 3)
	return Render(c, a.Views.Post(p, post, related))
}

func (a *App) handleSitemap(c echo.Context) error {
	return a.renderSitemap(c, a.Cache.Projects(""), a.Cache.Blogs(""))
}

func (a *App) handleFeed(c echo.Context) error {
	return a.renderRSS(c, a.Cache.Blogs(""))
}

func (a *App) handleCV(c echo.Context) error {
	return c.Attachment(filepath.Join(a.Config.StaticDir, "cv.pdf"), "cv.pdf")
}

func (a *App) handleRobots(c echo.Context) error {
	file := filepath.Join(a.Config.StaticDir, "robots.txt")
	if _, err := os.Stat(file); err == nil {
		return c.File(file)
	}
	body := "User-agent: *\nDisallow: /admin/\nDisallow: /api/\n\nSitemap: " + a.Config.URL + "/sitemap.xml\n"
	return c.String(http.StatusOK, body)
}

type healthResponse struct {
	Status      string `json:"status"`
	Store       bool   `json:"store"`
	Ready       bool   `json:"ready"`
	Admin       bool   `json:"admin"`
	Subscribers int    `json:"subscribers"`
	PendingBlob int    `json:"pendingBlobDeletes"`
}

func (a *App) handleHealth(c echo.Context) error {
	h := healthResponse{
		Status: "ok",
		Store:  a.Store != nil,
		Ready:  a.Cache.Ready(),
		Admin:  a.Gate != nil,
	}
	if a.Store != nil {
		h.Subscribers = a.Store.Subscribers()
	}
	if a.Blobs != nil {
		h.PendingBlob = len(a.Blobs.Pending())
	}
	return c.JSON(http.StatusOK, h)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	code := http.StatusInternalServerError
	if errors.As(err, &he) {
		code = he.Code
	} else if errors.Is(err, apperr.ErrNotFound) {
		code = http.StatusNotFound
	}
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		if code >= 500 {
			a.Log.Error("api error", zap.Error(err), zap.String("uri", c.Request().RequestURI))
		}
		_ = c.JSON(code, errorBody{Error: http.StatusText(code)})
		return
	}
	if code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.page(c, PageMeta{Title: "Not found | " + a.Config.Name})))
		return
	}
	if code >= 500 {
		a.Log.Error("server error", zap.Error(err), zap.String("uri", c.Request().RequestURI))
		_ = RenderStatus(c, code, a.Views.ServerError(a.page(c, PageMeta{Title: "Error | " + a.Config.Name})))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
