package scaffold

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteRendersTemplates(t *testing.T) {
	dir := t.TempDir()
	written, err := Write(dir, Data{SiteName: "Ada's Work", SiteURL: "https://ada.dev"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("written = %v, want 3 files", written)
	}

	cfg, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(cfg), `name: "Ada's Work"`) {
		t.Errorf("config.yaml missing site name:\n%s", cfg)
	}

	env, err := os.ReadFile(filepath.Join(dir, ".env.example"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(env), "SITE_URL=https://ada.dev") {
		t.Errorf(".env.example missing url:\n%s", env)
	}

	robots, err := os.ReadFile(filepath.Join(dir, "robots.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(robots), "Sitemap: https://ada.dev/sitemap.xml") {
		t.Errorf("robots.txt missing sitemap:\n%s", robots)
	}
}

func TestWriteRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "robots.txt")
	if err := os.WriteFile(existing, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Write(dir, Data{SiteName: "x", SiteURL: "http://x"})
	if !errors.Is(err, ErrExists) {
		t.Fatalf("err = %v, want ErrExists", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); !os.IsNotExist(err) {
		t.Error("config.yaml written despite conflict")
	}
	got, _ := os.ReadFile(existing)
	if string(got) != "keep" {
		t.Errorf("robots.txt overwritten: %q", got)
	}
}

func TestWriteCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	if _, err := Write(dir, Data{SiteName: "x", SiteURL: "http://x"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml not created: %v", err)
	}
}
