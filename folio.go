// Package folio is a personal portfolio site built with Go, Echo, and templ.
// It serves marketing pages, project and blog listings fed by live document
// store subscriptions, a JSON API with a Server-Sent Events stream, and a
// password-protected admin panel for editing content.
//
// Users provide their own templ templates via the ViewFuncs struct, and folio
// handles the handler logic, middleware, and storage.
package folio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/folio/blob"
	"github.com/eringen/folio/content"
	"github.com/eringen/folio/docstore"
	"github.com/eringen/folio/form"
	"github.com/eringen/folio/identity"
)

// ViewFuncs holds the templ components the app calls when rendering pages.
// Every field must be set.
type ViewFuncs struct {
	Home             func(p Page, projects []content.ProjectEntry, posts []content.BlogEntry) templ.Component
	About            func(p Page) templ.Component
	Contact          func(p Page) templ.Component
	Projects         func(p Page, projects []content.ProjectEntry, category string, categories []string) templ.Component
	Project          func(p Page, project content.ProjectEntry) templ.Component
	Blog             func(p Page, posts []content.BlogEntry, tag string, tags []string) templ.Component
	Post             func(p Page, post content.BlogEntry, related []content.BlogEntry) templ.Component
	AdminLogin       func(p Page, errMsg string) templ.Component
	AdminDashboard   func(p Page, projects []content.ProjectEntry, posts []content.BlogEntry) templ.Component
	AdminProjectForm func(p Page, f *form.ProjectForm) templ.Component
	AdminBlogForm    func(p Page, f *form.BlogForm) templ.Component
	NotFound         func(p Page) templ.Component
	ServerError      func(p Page) templ.Component
}

// App wires together the store, blob client, identity gate, cache,
// handlers, middleware, and user-provided templates.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Log    *zap.Logger
	Views  ViewFuncs

	// Store is nil when STORE_DSN is unset; content is then unavailable.
	Store *docstore.Store
	// Blobs is nil when the blob backend is not configured.
	Blobs *blob.Client
	// Gate is nil when admin credentials are not configured.
	Gate  *identity.Gate
	Cache *ContentCache

	loginLimiter   *RateLimiter
	contactLimiter *RateLimiter
	guard          *form.Guard
	customRoutes   []func(*App)
	ownsStore      bool
	initialized    bool
}

// New creates an App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Log:    zap.NewNop(),
		Views:  views,
		guard:  form.NewGuard(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithLogger sets the application logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *App) { a.Log = log }
}

// Init connects the configured backends, starts the content cache and
// registers middleware and routes. Missing configuration disables the
// affected features instead of failing.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	cfg := a.Config

	if missing := cfg.Missing(); len(missing) > 0 {
		a.Log.Warn("configuration incomplete, features disabled", zap.Strings("missing", missing))
	}

	if a.Store == nil && len(cfg.MissingStore()) == 0 {
		store, err := docstore.Open(cfg.StoreDriver, cfg.StoreDSN)
		if err != nil {
			return fmt.Errorf("folio: open store: %w", err)
		}
		a.Store = store
		a.ownsStore = true
	}

	if a.Blobs == nil && len(cfg.MissingBlob()) == 0 {
		var backend blob.Backend
		switch cfg.BlobBackend {
		case BlobSupabase:
			backend = blob.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
		default:
			backend = blob.NewFS(cfg.BlobDir, "/media")
		}
		a.Blobs = blob.New(backend, a.Log.Named("blob"))
	}

	if len(cfg.MissingAdmin()) == 0 {
		gate, err := newGate(cfg)
		if err != nil {
			return fmt.Errorf("folio: identity: %w", err)
		}
		a.Gate = gate
		a.Gate.OnChange(func(s identity.Session) {
			a.Log.Info("admin session changed", zap.Stringer("status", s.Status))
		})
	}

	a.Cache = NewContentCache(a.Log.Named("cache"))
	if a.Store != nil {
		if err := a.Cache.Start(ctx, a.Store); err != nil {
			return fmt.Errorf("folio: start cache: %w", err)
		}
		if !a.Cache.WaitReady(ctx, 5*time.Second) {
			a.Log.Warn("content cache not ready, pages may render empty")
		}
	}

	a.loginLimiter = NewRateLimiter(5, time.Minute)
	a.contactLimiter = NewRateLimiter(5, 10*time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

func newGate(cfg SiteConfig) (*identity.Gate, error) {
	hash := cfg.AdminPasswordHash
	if hash == "" {
		h, err := identity.HashPassword(cfg.AdminPassword)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	return identity.New(identity.Config{
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Secret:       []byte(cfg.SessionSecret),
		TTL:          cfg.SessionTTL,
	})
}

// Run initializes the app and serves HTTP until ctx is cancelled, then
// shuts down gracefully. The blob delete sweeper runs alongside the server.
func (a *App) Run(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:    a.Config.Addr,
		Handler: a.Echo,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if a.Blobs != nil {
		g.Go(func() error {
			return a.Blobs.RunSweeper(gCtx, a.Config.SweepInterval)
		})
	}

	g.Go(func() error {
		a.Log.Info("starting HTTP server", zap.String("addr", a.Config.Addr), zap.String("url", a.Config.URL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.Log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Log.Error("HTTP server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.Log.Info("server stopped")
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/site.css", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/public/site.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.Static("/public", a.Config.StaticDir)
	if a.Config.BlobBackend == BlobFS {
		e.Static("/media", a.Config.BlobDir)
	}
	e.GET("/cv.pdf", a.handleCV)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/health", a.handleHealth)

	// Public pages
	e.GET("/", a.handleHome)
	e.GET("/about/", a.handleAbout)
	e.GET("/contact/", a.handleContactPage)
	e.GET("/projects/", a.handleProjects)
	e.GET("/projects/:slug/", a.handleProject)
	e.GET("/blog/", a.handleBlog)
	e.GET("/blog/:slug/", a.handlePost)

	// JSON API
	api := e.Group("/api")
	api.POST("/contact", a.handleContact)
	api.GET("/projects", a.handleAPIProjects)
	api.GET("/projects/events", a.eventsFor(docstore.Projects))
	api.GET("/projects/:slug", a.handleAPIProject)
	api.GET("/blogs", a.handleAPIBlogs)
	api.GET("/blogs/events", a.eventsFor(docstore.Blogs))
	api.GET("/blogs/:slug", a.handleAPIBlog)
	api.GET("/:collection/events", a.handleEvents)
	api.POST("/auth/login", a.handleAPILogin)

	admin := api.Group("/admin", a.requireToken)
	admin.POST("/uploads", a.handleAPIUpload)
	admin.POST("/:collection", a.handleAPICreate)
	admin.PUT("/:collection/:id", a.handleAPIUpdate)
	admin.DELETE("/:collection/:id", a.handleAPIDelete)

	// Admin pages
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", a.handleAdminLogout)
	e.GET("/admin/projects/new/", a.handleProjectForm)
	e.POST("/admin/projects/new/", a.handleProjectFormPost)
	e.GET("/admin/projects/:id/edit/", a.handleProjectForm)
	e.POST("/admin/projects/:id/edit/", a.handleProjectFormPost)
	e.DELETE("/admin/projects/:id/", a.handleAdminDelete(docstore.Projects))
	e.POST("/admin/projects/:id/delete/", a.handleAdminDelete(docstore.Projects))
	e.GET("/admin/blogs/new/", a.handleBlogForm)
	e.POST("/admin/blogs/new/", a.handleBlogFormPost)
	e.GET("/admin/blogs/:id/edit/", a.handleBlogForm)
	e.POST("/admin/blogs/:id/edit/", a.handleBlogFormPost)
	e.DELETE("/admin/blogs/:id/", a.handleAdminDelete(docstore.Blogs))
	e.POST("/admin/blogs/:id/delete/", a.handleAdminDelete(docstore.Blogs))
}

// Close releases subscriptions and closes the store if the app opened it.
func (a *App) Close() error {
	if a.Cache != nil {
		a.Cache.Stop()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.contactLimiter != nil {
		a.contactLimiter.Stop()
	}
	if a.Store != nil && a.ownsStore {
		err := a.Store.Close()
		a.Store = nil
		return err
	}
	return nil
}
