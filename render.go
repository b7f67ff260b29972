package folio

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/apperr"
)

var (
	errAdminDisabled   = fmt.Errorf("admin: %w", apperr.ErrConfigurationMissing)
	errContentDisabled = fmt.Errorf("content: %w", apperr.ErrConfigurationMissing)
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// JSONError writes err as {"error": ..., "fields": ...} with the status
// apperr assigns to it.
func JSONError(c echo.Context, err error) error {
	body := errorBody{Error: apperr.Message(err)}
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	return c.JSON(apperr.Status(err), body)
}

// page builds the per-request view context.
func (a *App) page(c echo.Context, meta PageMeta) Page {
	if meta.Title == "" {
		meta.Title = a.Config.Name
	}
	if meta.Description == "" {
		meta.Description = a.Config.Description
	}
	if meta.URL == "" {
		meta.URL = BuildURL(a.Config.URL, c.Request().URL.Path)
	}
	if meta.OGType == "" {
		meta.OGType = "website"
	}
	p := Page{
		Site:         a.Config.public(),
		Meta:         meta,
		Path:         c.Request().URL.Path,
		Session:      SessionFrom(c),
		CSRF:         CsrfToken(c),
		AdminEnabled: a.Gate != nil,
		Flash:        c.QueryParam("msg"),
	}
	if a.Store == nil {
		p.Notice = apperr.Message(errContentDisabled)
	}
	return p
}
