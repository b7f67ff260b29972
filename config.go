package folio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eringen/folio/blob"
	"github.com/eringen/folio/docstore"
)

// Blob backends.
const (
	BlobFS       = "fs"
	BlobSupabase = "supabase"
)

// SiteConfig holds all configuration for a folio site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // SITE_NAME (default "Folio")
	URL         string `yaml:"url"`         // SITE_URL (default "http://localhost:3000")
	Description string `yaml:"description"` // SITE_DESCRIPTION
	Author      string `yaml:"author"`      // SITE_AUTHOR
	Email       string `yaml:"email"`       // SITE_EMAIL, shown on the contact page

	Addr      string `yaml:"addr"`       // ADDR (default ":3000")
	StaticDir string `yaml:"static_dir"` // STATIC_DIR (default "public"), holds cv.pdf

	StoreDriver string `yaml:"store_driver"` // STORE_DRIVER: "sqlite" (default) or "pgx"
	StoreDSN    string `yaml:"store_dsn"`    // STORE_DSN: file path or postgres URL

	BlobBackend        string `yaml:"blob_backend"`         // BLOB_BACKEND: "fs" (default) or "supabase"
	BlobDir            string `yaml:"blob_dir"`             // BLOB_DIR (default "data/media")
	SupabaseURL        string `yaml:"supabase_url"`         // SUPABASE_URL
	SupabaseServiceKey string `yaml:"supabase_service_key"` // SUPABASE_SERVICE_KEY
	SupabaseBucket     string `yaml:"supabase_bucket"`      // SUPABASE_BUCKET

	AdminEmail        string        `yaml:"admin_email"`         // ADMIN_EMAIL
	AdminPassword     string        `yaml:"admin_password"`      // ADMIN_PASSWORD, hashed at boot
	AdminPasswordHash string        `yaml:"admin_password_hash"` // ADMIN_PASSWORD_HASH (bcrypt)
	SessionSecret     string        `yaml:"session_secret"`      // SESSION_SECRET
	SessionTTL        time.Duration `yaml:"session_ttl"`         // SESSION_TTL (default 12h)
	CookieSecure      bool          `yaml:"cookie_secure"`       // COOKIE_SECURE

	LogMode  string `yaml:"log_mode"`  // LOG_MODE: "dev" or "prod" (default "dev")
	LogLevel string `yaml:"log_level"` // LOG_LEVEL (default "info")
	LogFile  string `yaml:"log_file"`  // LOG_FILE, rotated JSON log outside dev mode

	SweepInterval time.Duration `yaml:"sweep_interval"` // BLOB_SWEEP_INTERVAL (default 1m)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Folio"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.StoreDriver == "" {
		c.StoreDriver = docstore.DriverSQLite
	}
	if c.BlobBackend == "" {
		c.BlobBackend = BlobFS
	}
	if c.BlobDir == "" {
		c.BlobDir = "data/media"
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = 12 * time.Hour
	}
	if c.LogMode == "" {
		c.LogMode = "dev"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
}

// Validate checks values that are present. Absent store, blob or admin
// settings are not errors; see Missing.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.StoreDriver, validation.In(docstore.DriverSQLite, docstore.DriverPostgres)),
		validation.Field(&c.BlobBackend, validation.In(BlobFS, BlobSupabase)),
		validation.Field(&c.SupabaseURL, is.URL),
		validation.Field(&c.AdminEmail, is.EmailFormat),
		validation.Field(&c.SessionTTL, validation.Min(time.Minute)),
		validation.Field(&c.SweepInterval, validation.Min(time.Second)),
	)
}

// MissingStore lists unset variables that disable content.
func (c *SiteConfig) MissingStore() []string {
	if c.StoreDSN == "" {
		return []string{"STORE_DSN"}
	}
	return nil
}

// MissingBlob lists unset variables that disable image uploads.
func (c *SiteConfig) MissingBlob() []string {
	if c.BlobBackend != BlobSupabase {
		return nil
	}
	var out []string
	if c.SupabaseURL == "" {
		out = append(out, "SUPABASE_URL")
	}
	if c.SupabaseServiceKey == "" {
		out = append(out, "SUPABASE_SERVICE_KEY")
	}
	if c.SupabaseBucket == "" {
		out = append(out, "SUPABASE_BUCKET")
	}
	return out
}

// MissingAdmin lists unset variables that disable the admin surface.
func (c *SiteConfig) MissingAdmin() []string {
	var out []string
	if c.AdminEmail == "" {
		out = append(out, "ADMIN_EMAIL")
	}
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		out = append(out, "ADMIN_PASSWORD or ADMIN_PASSWORD_HASH")
	}
	if c.SessionSecret == "" {
		out = append(out, "SESSION_SECRET")
	}
	return out
}

// Missing lists every unset variable that disables part of the site.
func (c *SiteConfig) Missing() []string {
	out := c.MissingStore()
	out = append(out, c.MissingBlob()...)
	return append(out, c.MissingAdmin()...)
}

// LoadConfig reads .env (if present), then the optional YAML file at path
// with ${VAR} expansion, then environment overrides, and applies defaults.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides fields from non-empty environment variables.
func (c *SiteConfig) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SITE_NAME":            &c.Name,
		"SITE_URL":             &c.URL,
		"SITE_DESCRIPTION":     &c.Description,
		"SITE_AUTHOR":          &c.Author,
		"SITE_EMAIL":           &c.Email,
		"ADDR":                 &c.Addr,
		"STATIC_DIR":           &c.StaticDir,
		"STORE_DRIVER":         &c.StoreDriver,
		"STORE_DSN":            &c.StoreDSN,
		"BLOB_BACKEND":         &c.BlobBackend,
		"BLOB_DIR":             &c.BlobDir,
		"SUPABASE_URL":         &c.SupabaseURL,
		"SUPABASE_SERVICE_KEY": &c.SupabaseServiceKey,
		"SUPABASE_BUCKET":      &c.SupabaseBucket,
		"ADMIN_EMAIL":          &c.AdminEmail,
		"ADMIN_PASSWORD":       &c.AdminPassword,
		"ADMIN_PASSWORD_HASH":  &c.AdminPasswordHash,
		"SESSION_SECRET":       &c.SessionSecret,
		"LOG_MODE":             &c.LogMode,
		"LOG_LEVEL":            &c.LogLevel,
		"LOG_FILE":             &c.LogFile,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	durs := map[string]*time.Duration{
		"SESSION_TTL":         &c.SessionTTL,
		"BLOB_SWEEP_INTERVAL": &c.SweepInterval,
	}
	for key, dst := range durs {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	if v, ok := lookup("COOKIE_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		c.CookieSecure = b
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStore uses an already opened document store instead of opening one
// from the configuration.
func WithStore(s *docstore.Store) Option {
	return func(a *App) { a.Store = s }
}

// WithBlobs uses the given blob client instead of building one from the
// configuration.
func WithBlobs(b *blob.Client) Option {
	return func(a *App) { a.Blobs = b }
}

// public returns a copy of c with credentials cleared, safe to hand to views.
func (c SiteConfig) public() SiteConfig {
	c.SupabaseServiceKey = ""
	c.AdminPassword = ""
	c.AdminPasswordHash = ""
	c.SessionSecret = ""
	c.StoreDSN = ""
	return c
}
