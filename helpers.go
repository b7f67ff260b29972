package folio

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/eringen/folio/content"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// FilterRelatedPosts finds posts that share at least one tag with current,
// keeping at most limit of them. A limit of 0 keeps all.
func FilterRelatedPosts(current content.BlogEntry, posts []content.BlogEntry, limit int) []content.BlogEntry {
	tagSet := make(map[string]struct{})
	for _, t := range current.Tags {
		tag := strings.ToLower(strings.TrimSpace(t))
		if tag != "" {
			tagSet[tag] = struct{}{}
		}
	}
	var related []content.BlogEntry
	for _, p := range posts {
		if p.Slug == current.Slug {
			continue
		}
		for _, t := range p.Tags {
			tag := strings.ToLower(strings.TrimSpace(t))
			if _, ok := tagSet[tag]; ok {
				related = append(related, p)
				break
			}
		}
		if limit > 0 && len(related) == limit {
			break
		}
	}
	return related
}

func author(cfg SiteConfig) map[string]string {
	if cfg.Author == "" {
		return nil
	}
	return map[string]string{"@type": "Person", "name": cfg.Author}
}

func marshalLD(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
	}
	if a := author(cfg); a != nil {
		data["author"] = a
	}
	return marshalLD(data)
}

// BlogPostingJsonLD returns a JSON-LD string for a BlogPosting schema.
func BlogPostingJsonLD(post content.BlogEntry, cfg SiteConfig) string {
	postURL := BuildURL(cfg.URL, "blog", post.Slug)
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   post.Summary,
		"datePublished": post.Date,
		"dateModified":  post.UpdatedAt.Format("2006-01-02"),
		"url":           postURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if a := author(cfg); a != nil {
		data["author"] = a
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	if post.ImageURL != "" {
		data["image"] = post.ImageURL
	}
	if len(post.Tags) > 0 {
		data["keywords"] = strings.Join(post.Tags, ", ")
	}
	return marshalLD(data)
}

// ProjectJsonLD returns a JSON-LD string for a SoftwareSourceCode schema.
func ProjectJsonLD(p content.ProjectEntry, cfg SiteConfig) string {
	data := map[string]any{
		"@context":       "https://schema.org",
		"@type":          "SoftwareSourceCode",
		"name":           p.Title,
		"description":    p.Summary,
		"url":            BuildURL(cfg.URL, "projects", p.Slug),
		"codeRepository": p.Links.Code,
		"dateCreated":    p.CreatedAt.Format("2006-01-02"),
	}
	if a := author(cfg); a != nil {
		data["author"] = a
	}
	if len(p.Stack) > 0 {
		data["programmingLanguage"] = p.Stack
	}
	if p.ImageURL != "" {
		data["image"] = p.ImageURL
	}
	return marshalLD(data)
}
