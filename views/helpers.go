package views

import (
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/eringen/folio/markdown"
)

var funcs = template.FuncMap{
	"markdown":   renderMarkdown,
	"jsonld":     func(s string) template.JS { return template.JS(s) },
	"join":       strings.Join,
	"pathEscape": url.PathEscape,
	"fieldError": fieldError,
	"date":       formatDate,
	"year":       func() int { return time.Now().Year() },
	"dict":       dict,
	"filterURL":  filterURL,
}

// renderMarkdown turns a markdown body into trusted HTML. Raw HTML in the
// source is dropped by the renderer.
func renderMarkdown(src string) template.HTML {
	return template.HTML(markdown.HTML(src))
}

func fieldError(errs map[string]string, key string) string {
	return errs[key]
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// dict builds a map from alternating keys and values for passing several
// values into a nested template.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			m[k] = kv[i+1]
		}
	}
	return m
}

// filterURL builds a listing URL with a filter query, dropping it for "All".
func filterURL(path, key, value string) string {
	if value == "" || value == "All" {
		return path
	}
	return path + "?" + key + "=" + url.QueryEscape(value)
}
