package folio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := SiteConfig{Name: "From File", Addr: ":4000"}
	err := cfg.applyEnv(lookupFrom(map[string]string{
		"SITE_NAME":           "From Env",
		"ADDR":                "",
		"SESSION_TTL":         "2h",
		"BLOB_SWEEP_INTERVAL": "30s",
		"COOKIE_SECURE":       "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, "From Env", cfg.Name)
	assert.Equal(t, ":4000", cfg.Addr, "empty variables do not override")
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.True(t, cfg.CookieSecure)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	var cfg SiteConfig
	assert.ErrorContains(t, cfg.applyEnv(lookupFrom(map[string]string{"SESSION_TTL": "soon"})), "SESSION_TTL")
	assert.ErrorContains(t, cfg.applyEnv(lookupFrom(map[string]string{"COOKIE_SECURE": "maybe"})), "COOKIE_SECURE")
}

func TestMissing(t *testing.T) {
	var cfg SiteConfig
	cfg.setDefaults()
	assert.Equal(t, []string{
		"STORE_DSN",
		"ADMIN_EMAIL",
		"ADMIN_PASSWORD or ADMIN_PASSWORD_HASH",
		"SESSION_SECRET",
	}, cfg.Missing())

	cfg.BlobBackend = BlobSupabase
	cfg.SupabaseURL = "https://x.supabase.co"
	assert.Equal(t, []string{"SUPABASE_SERVICE_KEY", "SUPABASE_BUCKET"}, cfg.MissingBlob())

	cfg.StoreDSN = "folio.db"
	cfg.AdminEmail = "a@example.com"
	cfg.AdminPasswordHash = "$2a$10$hash"
	cfg.SessionSecret = "secret"
	cfg.SupabaseServiceKey = "key"
	cfg.SupabaseBucket = "media"
	assert.Empty(t, cfg.Missing())
}

func TestValidate(t *testing.T) {
	cfg := SiteConfig{StoreDriver: "mysql"}
	cfg.setDefaults()
	assert.Error(t, cfg.Validate())

	cfg.StoreDriver = "pgx"
	assert.NoError(t, cfg.Validate())

	cfg.AdminEmail = "not-an-email"
	assert.Error(t, cfg.Validate())
}

func TestPublicClearsSecrets(t *testing.T) {
	cfg := SiteConfig{
		Name:               "Folio",
		SupabaseServiceKey: "key",
		AdminPassword:      "pw",
		AdminPasswordHash:  "hash",
		SessionSecret:      "secret",
		StoreDSN:           "postgres://u:p@db/folio",
	}
	pub := cfg.public()
	assert.Equal(t, "Folio", pub.Name)
	assert.Empty(t, pub.SupabaseServiceKey)
	assert.Empty(t, pub.AdminPassword)
	assert.Empty(t, pub.AdminPasswordHash)
	assert.Empty(t, pub.SessionSecret)
	assert.Empty(t, pub.StoreDSN)
	assert.Equal(t, "secret", cfg.SessionSecret, "original untouched")
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "name: \"Ada\"\nurl: \"https://ada.dev\"\nstore_dsn: \"${FOLIO_TEST_DSN}\"\nsession_ttl: 3h\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("FOLIO_TEST_DSN", "data/test.db")
	t.Setenv("SITE_URL", "https://override.dev")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Ada", cfg.Name)
	assert.Equal(t, "https://override.dev", cfg.URL)
	assert.Equal(t, "data/test.db", cfg.StoreDSN)
	assert.Equal(t, 3*time.Hour, cfg.SessionTTL)
	assert.Equal(t, ":3000", cfg.Addr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
