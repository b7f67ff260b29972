// Package scaffold writes the starter files for a new folio site.
// Files use Go text/template syntax and have a .tmpl suffix.
package scaffold

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var Templates embed.FS

const root = "templates"

// Data is passed to every template.
type Data struct {
	SiteName string
	SiteURL  string
}

// ErrExists is returned when a target file is already present.
var ErrExists = errors.New("scaffold: file already exists")

// outName maps a template file name to the name written to disk.
func outName(name string) string {
	name = strings.TrimSuffix(name, ".tmpl")
	if name == "env.example" {
		return ".env.example"
	}
	return name
}

// Write renders every template into dir and returns the paths it created.
// Nothing is written when any target already exists.
func Write(dir string, d Data) ([]string, error) {
	entries, err := fs.ReadDir(Templates, root)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		out := filepath.Join(dir, outName(e.Name()))
		if _, err := os.Stat(out); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrExists, out)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := root + "/" + e.Name()
		content, err := Templates.ReadFile(path)
		if err != nil {
			return written, fmt.Errorf("read %s: %w", path, err)
		}
		tmpl, err := template.New(e.Name()).Parse(string(content))
		if err != nil {
			return written, fmt.Errorf("parse template %s: %w", path, err)
		}

		out := filepath.Join(dir, outName(e.Name()))
		if err := render(out, tmpl, d); err != nil {
			return written, err
		}
		written = append(written, out)
	}
	return written, nil
}

func render(out string, tmpl *template.Template, d Data) error {
	f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, d); err != nil {
		return fmt.Errorf("execute template %s: %w", tmpl.Name(), err)
	}
	return nil
}
