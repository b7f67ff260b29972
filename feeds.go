package folio

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/content"
)

const (
	sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"
	atomNS    = "http://www.w3.org/2005/Atom"
	dateOnly  = "2006-01-02"
)

// writeXML encodes v with the XML declaration and the given content type.
func writeXML(c echo.Context, contentType string, v any) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(v)
}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	XMLNS   string     `xml:"xmlns,attr"`
	URLs    []location `xml:"url"`
}

type location struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
}

// sitemapPaths are the fixed pages listed before any content.
var sitemapPaths = []string{"about", "contact", "projects", "blog"}

func (a *App) renderSitemap(c echo.Context, projects []content.ProjectEntry, posts []content.BlogEntry) error {
	base := a.Config.URL
	set := urlSet{XMLNS: sitemapNS}
	set.URLs = append(set.URLs, location{Loc: BuildURL(base), ChangeFreq: "weekly"})
	for _, p := range sitemapPaths {
		set.URLs = append(set.URLs, location{Loc: BuildURL(base, p), ChangeFreq: "weekly"})
	}
	for _, p := range projects {
		loc := location{Loc: BuildURL(base, "projects", p.Slug), ChangeFreq: "monthly"}
		if !p.UpdatedAt.IsZero() {
			loc.LastMod = p.UpdatedAt.Format(dateOnly)
		}
		set.URLs = append(set.URLs, loc)
	}
	for _, p := range posts {
		set.URLs = append(set.URLs, location{
			Loc:        BuildURL(base, "blog", p.Slug),
			LastMod:    p.Date,
			ChangeFreq: "yearly",
		})
	}
	return writeXML(c, "application/xml; charset=utf-8", set)
}

type rss struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Atom    string   `xml:"xmlns:atom,attr"`
	Channel channel  `xml:"channel"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type channel struct {
	Title         string   `xml:"title"`
	Link          string   `xml:"link"`
	Self          atomLink `xml:"atom:link"`
	Description   string   `xml:"description"`
	LastBuildDate string   `xml:"lastBuildDate,omitempty"`
	Items         []item   `xml:"item"`
}

type guid struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

type item struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        guid     `xml:"guid"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate,omitempty"`
	Categories  []string `xml:"category"`
}

// renderRSS writes posts as an RSS 2.0 feed. Posts are expected newest
// first; the first one dates the feed.
func (a *App) renderRSS(c echo.Context, posts []content.BlogEntry) error {
	base := a.Config.URL
	ch := channel{
		Title:       a.Config.Name,
		Link:        BuildURL(base),
		Self:        atomLink{Href: strings.TrimSuffix(base, "/") + "/feed.xml", Rel: "self", Type: "application/rss+xml"},
		Description: a.Config.Description,
		Items:       make([]item, 0, len(posts)),
	}
	for i, p := range posts {
		link := BuildURL(base, "blog", p.Slug)
		it := item{
			Title:       p.Title,
			Link:        link,
			GUID:        guid{Value: link, IsPermaLink: true},
			Description: p.Summary,
			Categories:  p.Tags,
		}
		if t, err := time.Parse(dateOnly, p.Date); err == nil {
			it.PubDate = t.Format(time.RFC1123Z)
			if i == 0 {
				ch.LastBuildDate = it.PubDate
			}
		}
		ch.Items = append(ch.Items, it)
	}
	return writeXML(c, "application/rss+xml; charset=utf-8", rss{Version: "2.0", Atom: atomNS, Channel: ch})
}
