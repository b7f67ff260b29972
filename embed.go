package folio

import "embed"

// EmbeddedAssets contains static assets shipped with the site:
// site.css and site.js (live updates and the contact form).
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
