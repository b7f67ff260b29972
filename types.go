package folio

import "github.com/eringen/folio/identity"

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string // og:image
	JSONLD      string
}

// Page is the per-request context handed to every view.
type Page struct {
	Site    SiteConfig
	Meta    PageMeta
	Path    string
	Session identity.Session
	CSRF    string
	// Notice is a site-wide banner, set when content is unavailable.
	Notice string
	// AdminEnabled is false when admin credentials are not configured.
	AdminEnabled bool
	// Flash is a one-off message such as "saved" or "deleted".
	Flash string
}
