package folio

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/folio/apperr"
	"github.com/eringen/folio/blob"
	"github.com/eringen/folio/form"
)

// formDeps returns the form dependencies, leaving unconfigured backends as
// nil interfaces so the form reports ConfigurationMissing.
func (a *App) formDeps() form.Deps {
	d := form.Deps{Guard: a.guard}
	if a.Store != nil {
		d.Store = a.Store
	}
	if a.Blobs != nil {
		d.Blobs = a.Blobs
	}
	return d
}

func (a *App) adminPage(c echo.Context, title string) Page {
	return a.page(c, PageMeta{Title: title + " | " + a.Config.Name})
}

// loginRequired renders the login form (or the disabled notice) when the
// visitor is not an authenticated admin.
func (a *App) loginRequired(c echo.Context) (bool, error) {
	if IsAdmin(c) {
		return false, nil
	}
	msg := ""
	if a.Gate == nil {
		msg = apperr.Message(errAdminDisabled)
	}
	return true, Render(c, a.Views.AdminLogin(a.adminPage(c, "Admin"), msg))
}

func (a *App) handleAdmin(c echo.Context) error {
	if stop, err := a.loginRequired(c); stop {
		return err
	}
	return a.renderAdminDashboard(c, http.StatusOK)
}

func (a *App) handleAdminLogin(c echo.Context) error {
	if a.Gate == nil {
		return RenderStatus(c, http.StatusServiceUnavailable,
			a.Views.AdminLogin(a.adminPage(c, "Admin"), apperr.Message(errAdminDisabled)))
	}
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	s, err := a.Gate.Login(c.FormValue("email"), c.FormValue("password"))
	if err != nil {
		a.loginLimiter.Record(ip)
		a.Log.Warn("admin login failed", zap.String("ip", ip))
		return RenderStatus(c, http.StatusUnauthorized,
			a.Views.AdminLogin(a.adminPage(c, "Admin"), apperr.Message(err)))
	}
	if err := setAdminSession(c, s); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminLogout(c echo.Context) error {
	if a.Gate == nil {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	a.Gate.Logout(SessionFrom(c))
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) renderAdminDashboard(c echo.Context, code int) error {
	p := a.adminPage(c, "Admin")
	return RenderStatus(c, code, a.Views.AdminDashboard(p, a.Cache.AllProjects(), a.Cache.AllBlogs()))
}

func (a *App) handleAdminDelete(col string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if stop, err := a.loginRequired(c); stop {
			return err
		}
		id := c.Param("id")
		if err := a.deleteDocument(c.Request().Context(), col, id); err != nil {
			a.Log.Warn("admin delete failed", zap.String("collection", col), zap.String("id", id), zap.Error(err))
			return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape(apperr.Message(err)))
		}
		return c.Redirect(http.StatusSeeOther, "/admin/?msg=deleted")
	}
}

// deleteDocument removes a document and then its cover image.
func (a *App) deleteDocument(ctx context.Context, col, id string) error {
	var store form.Remover
	if a.Store != nil {
		store = a.Store
	}
	var blobs form.Blobs
	if a.Blobs != nil {
		blobs = a.Blobs
	}
	if err := form.Delete(ctx, store, blobs, col, id); err != nil {
		return err
	}
	a.Log.Info("document deleted", zap.String("collection", col), zap.String("id", id))
	return nil
}

// editor is the part of a form controller the admin handlers drive.
type editor interface {
	AddItem(field, value string) error
	RemoveItem(field string, i int) error
	AddImage(src, alt string)
	AttachImage(f blob.File)
	ClearImage()
	Submit(ctx context.Context, d form.Deps) error
	NotFound() bool
}

func (a *App) handleProjectForm(c echo.Context) error {
	if stop, err := a.loginRequired(c); stop {
		return err
	}
	f, code, err := a.loadProjectForm(c)
	if err != nil {
		return err
	}
	return RenderStatus(c, code, a.Views.AdminProjectForm(a.adminPage(c, "Project"), f))
}

func (a *App) loadProjectForm(c echo.Context) (*form.ProjectForm, int, error) {
	id := c.Param("id")
	if id == "" {
		return form.NewProjectForm(), http.StatusOK, nil
	}
	if a.Store == nil {
		f := form.NewProjectForm()
		f.SetEdit(id)
		return f, http.StatusServiceUnavailable, nil
	}
	f, err := form.LoadProject(c.Request().Context(), a.Store, id)
	return f, loadStatus(f.NotFound(), err), nil
}

func (a *App) handleProjectFormPost(c echo.Context) error {
	if stop, err := a.loginRequired(c); stop {
		return err
	}
	f, code, err := a.loadProjectForm(c)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return RenderStatus(c, code, a.Views.AdminProjectForm(a.adminPage(c, "Project"), f))
	}
	if err := c.Request().ParseMultipartForm(blob.MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	applyErr := f.Apply(c.Request().Form)
	done, code := a.runOp(c, f, applyErr)
	if done {
		return c.Redirect(http.StatusSeeOther, "/admin/?msg=saved")
	}
	return RenderStatus(c, code, a.Views.AdminProjectForm(a.adminPage(c, "Project"), f))
}

func (a *App) handleBlogForm(c echo.Context) error {
	if stop, err := a.loginRequired(c); stop {
		return err
	}
	f, code, err := a.loadBlogForm(c)
	if err != nil {
		return err
	}
	return RenderStatus(c, code, a.Views.AdminBlogForm(a.adminPage(c, "Post"), f))
}

func (a *App) loadBlogForm(c echo.Context) (*form.BlogForm, int, error) {
	id := c.Param("id")
	if id == "" {
		return form.NewBlogForm(), http.StatusOK, nil
	}
	if a.Store == nil {
		f := form.NewBlogForm()
		f.SetEdit(id)
		return f, http.StatusServiceUnavailable, nil
	}
	f, err := form.LoadBlog(c.Request().Context(), a.Store, id)
	return f, loadStatus(f.NotFound(), err), nil
}

func (a *App) handleBlogFormPost(c echo.Context) error {
	if stop, err := a.loginRequired(c); stop {
		return err
	}
	f, code, err := a.loadBlogForm(c)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return RenderStatus(c, code, a.Views.AdminBlogForm(a.adminPage(c, "Post"), f))
	}
	if err := c.Request().ParseMultipartForm(blob.MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	applyErr := f.Apply(c.Request().Form)
	done, code := a.runOp(c, f, applyErr)
	if done {
		return c.Redirect(http.StatusSeeOther, "/admin/?msg=saved")
	}
	return RenderStatus(c, code, a.Views.AdminBlogForm(a.adminPage(c, "Post"), f))
}

// loadStatus maps an edit-mode load result to the status the form page
// renders with. Failed loads still render the form with submit disabled or
// the message shown.
func loadStatus(notFound bool, err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case notFound:
		return http.StatusNotFound
	default:
		return apperr.Status(err)
	}
}

// runOp applies the posted op to the form: "save" (or empty) submits,
// "add:<field>" appends the matching new.<field> input, and
// "remove:<field>:<index>" drops an item. It reports whether a save
// succeeded and the status to render with otherwise.
func (a *App) runOp(c echo.Context, f editor, applyErr error) (bool, int) {
	if fh, err := c.FormFile("image"); err == nil {
		file, err := fh.Open()
		if err == nil {
			defer file.Close()
			f.AttachImage(blob.File{
				Name:        fh.Filename,
				ContentType: fh.Header.Get(echo.HeaderContentType),
				Body:        file,
			})
		}
	}
	if c.FormValue("clearImage") != "" {
		f.ClearImage()
	}

	op := c.FormValue("op")
	switch {
	case op == "" || op == "save":
		if applyErr != nil {
			return false, http.StatusUnprocessableEntity
		}
		if err := f.Submit(c.Request().Context(), a.formDeps()); err != nil {
			a.Log.Warn("admin save failed", zap.Error(err))
			return false, apperr.Status(err)
		}
		return true, http.StatusOK
	case op == "add:images":
		f.AddImage(c.FormValue("new.images.src"), c.FormValue("new.images.alt"))
	case strings.HasPrefix(op, "add:"):
		field := strings.TrimPrefix(op, "add:")
		if err := f.AddItem(field, c.FormValue("new."+field)); err != nil {
			return false, http.StatusBadRequest
		}
	case strings.HasPrefix(op, "remove:"):
		field, idx, ok := strings.Cut(strings.TrimPrefix(op, "remove:"), ":")
		i, err := strconv.Atoi(idx)
		if !ok || err != nil {
			return false, http.StatusBadRequest
		}
		if err := f.RemoveItem(field, i); err != nil {
			return false, http.StatusBadRequest
		}
	default:
		return false, http.StatusBadRequest
	}
	return false, http.StatusOK
}
