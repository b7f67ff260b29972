package folio

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/folio/apperr"
	"github.com/eringen/folio/blob"
	"github.com/eringen/folio/content"
	"github.com/eringen/folio/docstore"
)

const (
	ssePing        = 25 * time.Second
	fieldImagePath = "imagePath"
)

var errUnknownCollection = fmt.Errorf("unknown collection: %w", apperr.ErrNotFound)

func collection(c echo.Context) (string, error) {
	col := c.Param("collection")
	switch col {
	case docstore.Projects, docstore.Blogs:
		return col, nil
	}
	return "", errUnknownCollection
}

func (a *App) handleAPIProjects(c echo.Context) error {
	if a.Store == nil {
		return JSONError(c, errContentDisabled)
	}
	return c.JSON(http.StatusOK, a.Cache.Projects(c.QueryParam("category")))
}

func (a *App) handleAPIProject(c echo.Context) error {
	if a.Store == nil {
		return JSONError(c, errContentDisabled)
	}
	p, ok := a.Cache.Project(c.Param("slug"))
	if !ok {
		return JSONError(c, apperr.ErrNotFound)
	}
	return c.JSON(http.StatusOK, p)
}

func (a *App) handleAPIBlogs(c echo.Context) error {
	if a.Store == nil {
		return JSONError(c, errContentDisabled)
	}
	return c.JSON(http.StatusOK, a.Cache.Blogs(c.QueryParam("tag")))
}

func (a *App) handleAPIBlog(c echo.Context) error {
	if a.Store == nil {
		return JSONError(c, errContentDisabled)
	}
	b, ok := a.Cache.Blog(c.Param("slug"))
	if !ok {
		return JSONError(c, apperr.ErrNotFound)
	}
	return c.JSON(http.StatusOK, b)
}

// snapshotJSON encodes a collection snapshot as decoded content entries,
// newest created first.
func snapshotJSON(col string, recs []docstore.Record) ([]byte, error) {
	if col == docstore.Projects {
		return json.Marshal(content.DecodeProjects(recs))
	}
	return json.Marshal(content.DecodeBlogs(recs))
}

func (a *App) handleEvents(c echo.Context) error {
	col, err := collection(c)
	if err != nil {
		return JSONError(c, err)
	}
	return a.streamCollection(c, col)
}

// eventsFor serves the stream for a fixed collection. Static routes are
// needed because /api/projects/:slug would otherwise claim "events".
func (a *App) eventsFor(col string) echo.HandlerFunc {
	return func(c echo.Context) error { return a.streamCollection(c, col) }
}

// streamCollection streams col as Server-Sent Events. Every frame is a
// "snapshot" event carrying the full ordered collection.
func (a *App) streamCollection(c echo.Context, col string) error {
	if a.Store == nil {
		return JSONError(c, errContentDisabled)
	}

	ctx := c.Request().Context()
	frames := make(chan []byte)
	unsubscribe, err := a.Store.Subscribe(ctx, col, func(recs []docstore.Record) {
		data, err := snapshotJSON(col, recs)
		if err != nil {
			a.Log.Error("encode snapshot", zap.String("collection", col), zap.Error(err))
			return
		}
		select {
		case frames <- data:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return JSONError(c, err)
	}
	defer unsubscribe()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ping := time.NewTicker(ssePing)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-frames:
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
				return nil
			}
			w.Flush()
		case <-ping.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (a *App) handleAPILogin(c echo.Context) error {
	if a.Gate == nil {
		return JSONError(c, errAdminDisabled)
	}
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.JSON(http.StatusTooManyRequests, errorBody{Error: "Too many login attempts. Try again later."})
	}
	var req loginRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "Invalid payload"})
	}
	s, err := a.Gate.Login(req.Email, req.Password)
	if err != nil {
		a.loginLimiter.Record(ip)
		a.Log.Warn("api login failed", zap.String("ip", ip))
		return JSONError(c, err)
	}
	token, err := a.Gate.IssueToken(s)
	if err != nil {
		return JSONError(c, err)
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: s.ExpiresAt})
}

// checkImagePath rejects cover paths that Upload could not have produced.
// Delete cascades to this path, so it must stay inside the storage folders.
func checkImagePath(p string) error {
	if p == "" || blob.ValidPath(p) {
		return nil
	}
	return &apperr.ValidationError{Fields: map[string]string{
		"imagePath": "must be a path under projects/, blogs/ or uploads/",
	}}
}

// decodeDocument reads a JSON document for col from body on top of base
// (nil for creates), then normalises and validates it. A missing slug is
// derived from the title.
func decodeDocument(col string, body io.Reader, base *docstore.Record) (docstore.Fields, error) {
	invalid := &apperr.ValidationError{Fields: map[string]string{"body": "must be a JSON object"}}
	switch col {
	case docstore.Projects:
		var p content.Project
		if base != nil {
			e, err := content.DecodeProject(*base)
			if err != nil {
				return nil, fmt.Errorf("decode stored project: %w", apperr.ErrOperationFailed)
			}
			p = e.Project
		}
		if err := json.NewDecoder(body).Decode(&p); err != nil {
			return nil, invalid
		}
		p.Normalize()
		if p.Slug == "" {
			p.Slug = content.Slugify(p.Title)
		}
		if err := p.Validate(); err != nil {
			return nil, content.Flatten(err)
		}
		if err := checkImagePath(p.ImagePath); err != nil {
			return nil, err
		}
		return content.Encode(p)
	default:
		var b content.Blog
		if base != nil {
			e, err := content.DecodeBlog(*base)
			if err != nil {
				return nil, fmt.Errorf("decode stored blog: %w", apperr.ErrOperationFailed)
			}
			b = e.Blog
		}
		if err := json.NewDecoder(body).Decode(&b); err != nil {
			return nil, invalid
		}
		b.Normalize()
		if b.Slug == "" {
			b.Slug = content.Slugify(b.Title)
		}
		if b.ReadingTime == "" {
			b.ReadingTime = content.EstimateReadingTime(b.Content)
		}
		if err := b.Validate(); err != nil {
			return nil, content.Flatten(err)
		}
		if err := checkImagePath(b.ImagePath); err != nil {
			return nil, err
		}
		return content.Encode(b)
	}
}

func (a *App) handleAPICreate(c echo.Context) error {
	col, err := collection(c)
	if err != nil {
		return JSONError(c, err)
	}
	if a.Store == nil {
		return JSONError(c, errContentDisabled)
	}
	fields, err := decodeDocument(col, c.Request().Body, nil)
	if err != nil {
		return JSONError(c, err)
	}
	id, err := a.Store.Create(c.Request().Context(), col, fields)
	if err != nil {
		return JSONError(c, err)
	}
	a.Log.Info("document created", zap.String("collection", col), zap.String("id", id))
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

// handleAPIUpdate merges the posted fields over the stored document and
// writes the result. When the cover path changes, the old blob is deleted
// after the write. Concurrent updates are last-write-wins.
func (a *App) handleAPIUpdate(c echo.Context) error {
	col, err := collection(c)
	if err != nil {
		return JSONError(c, err)
	}
	if a.Store == nil {
		return JSONError(c, errContentDisabled)
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	rec, err := a.Store.Get(ctx, col, id)
	if err != nil {
		return JSONError(c, err)
	}
	fields, err := decodeDocument(col, c.Request().Body, &rec)
	if err != nil {
		return JSONError(c, err)
	}
	if err := a.Store.Update(ctx, col, id, fields); err != nil {
		return JSONError(c, err)
	}
	a.Log.Info("document updated", zap.String("collection", col), zap.String("id", id))
	oldPath, _ := rec.Fields[fieldImagePath].(string)
	newPath, _ := fields[fieldImagePath].(string)
	if oldPath != "" && oldPath != newPath {
		if a.Blobs != nil {
			a.Blobs.Delete(ctx, oldPath)
		} else {
			a.Log.Warn("replaced cover not deleted, blob store disabled", zap.String("path", oldPath))
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id})
}

func (a *App) handleAPIDelete(c echo.Context) error {
	col, err := collection(c)
	if err != nil {
		return JSONError(c, err)
	}
	if a.Store == nil {
		return JSONError(c, errContentDisabled)
	}
	id := c.Param("id")
	if err := a.deleteDocument(c.Request().Context(), col, id); err != nil {
		return JSONError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type uploadResponse struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// handleAPIUpload stores a multipart "file" in the blob store under the
// "folder" form value (default "uploads").
func (a *App) handleAPIUpload(c echo.Context) error {
	if a.Blobs == nil {
		return JSONError(c, fmt.Errorf("blob store: %w", apperr.ErrConfigurationMissing))
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return JSONError(c, &apperr.ValidationError{Fields: map[string]string{"file": "is required"}})
	}
	f, err := fh.Open()
	if err != nil {
		return JSONError(c, fmt.Errorf("open upload: %w", apperr.ErrUploadFailed))
	}
	defer f.Close()
	obj, err := a.Blobs.Upload(c.Request().Context(), blob.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Body:        f,
	}, c.FormValue("folder"))
	if err != nil {
		return JSONError(c, err)
	}
	return c.JSON(http.StatusCreated, uploadResponse{URL: obj.URL, Path: obj.Path})
}
