package folio

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/folio/content"
	"github.com/eringen/folio/docstore"
)

// AllFilter selects every item in a category or tag filter.
const AllFilter = "All"

// ContentCache holds the latest project and blog snapshots delivered by
// document store subscriptions. Pages read from it instead of the store.
type ContentCache struct {
	log *zap.Logger

	mu            sync.RWMutex
	projects      []content.ProjectEntry // createdAt desc, as delivered
	blogs         []content.BlogEntry
	projectsReady bool
	blogsReady    bool
	changed       chan struct{}

	unsubs []func()
}

// NewContentCache returns an empty cache. Start feeds it.
func NewContentCache(log *zap.Logger) *ContentCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContentCache{log: log, changed: make(chan struct{})}
}

// Start subscribes to both collections. Snapshots replace the cached lists
// as they arrive.
func (c *ContentCache) Start(ctx context.Context, s *docstore.Store) error {
	unsubProjects, err := s.Subscribe(ctx, docstore.Projects, c.setProjects)
	if err != nil {
		return err
	}
	unsubBlogs, err := s.Subscribe(ctx, docstore.Blogs, c.setBlogs)
	if err != nil {
		unsubProjects()
		return err
	}
	c.mu.Lock()
	c.unsubs = append(c.unsubs, unsubProjects, unsubBlogs)
	c.mu.Unlock()
	return nil
}

// Stop releases the subscriptions.
func (c *ContentCache) Stop() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()
	for _, fn := range unsubs {
		fn()
	}
}

func (c *ContentCache) setProjects(recs []docstore.Record) {
	entries := content.DecodeProjects(recs)
	if len(entries) != len(recs) {
		c.log.Warn("skipped undecodable projects", zap.Int("count", len(recs)-len(entries)))
	}
	c.mu.Lock()
	c.projects = entries
	c.projectsReady = true
	c.notifyLocked()
	c.mu.Unlock()
}

func (c *ContentCache) setBlogs(recs []docstore.Record) {
	entries := content.DecodeBlogs(recs)
	if len(entries) != len(recs) {
		c.log.Warn("skipped undecodable blogs", zap.Int("count", len(recs)-len(entries)))
	}
	c.mu.Lock()
	c.blogs = entries
	c.blogsReady = true
	c.notifyLocked()
	c.mu.Unlock()
}

func (c *ContentCache) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// Ready reports whether both initial snapshots have arrived.
func (c *ContentCache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.projectsReady && c.blogsReady
}

// WaitReady blocks until Ready or until ctx is done or timeout elapses.
func (c *ContentCache) WaitReady(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		c.mu.RLock()
		ready := c.projectsReady && c.blogsReady
		changed := c.changed
		c.mu.RUnlock()
		if ready {
			return true
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
}

// AllProjects returns every project, newest created first.
func (c *ContentCache) AllProjects() []content.ProjectEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(make([]content.ProjectEntry, 0, len(c.projects)), c.projects...)
}

// AllBlogs returns every blog post, newest created first.
func (c *ContentCache) AllBlogs() []content.BlogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(make([]content.BlogEntry, 0, len(c.blogs)), c.blogs...)
}

// Projects returns projects sorted by year, newest first, filtered by
// category. An empty category or AllFilter returns everything.
func (c *ContentCache) Projects(category string) []content.ProjectEntry {
	all := c.AllProjects()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Year > all[j].Year })
	if category == "" || category == AllFilter {
		return all
	}
	out := make([]content.ProjectEntry, 0, len(all))
	for _, p := range all {
		if string(p.Category) == category {
			out = append(out, p)
		}
	}
	return out
}

// Project looks a project up by slug.
func (c *ContentCache) Project(slug string) (content.ProjectEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.projects {
		if p.Slug == slug {
			return p, true
		}
	}
	return content.ProjectEntry{}, false
}

// Blogs returns posts sorted by date, newest first, filtered by tag.
func (c *ContentCache) Blogs(tag string) []content.BlogEntry {
	all := c.AllBlogs()
	// Dates are YYYY-MM-DD, so string order is chronological.
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date > all[j].Date })
	if tag == "" || tag == AllFilter {
		return all
	}
	out := make([]content.BlogEntry, 0, len(all))
	for _, b := range all {
		for _, t := range b.Tags {
			if t == tag {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// Blog looks a post up by slug.
func (c *ContentCache) Blog(slug string) (content.BlogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.blogs {
		if b.Slug == slug {
			return b, true
		}
	}
	return content.BlogEntry{}, false
}

// Tags returns AllFilter followed by the sorted set of blog tags.
func (c *ContentCache) Tags() []string {
	c.mu.RLock()
	seen := make(map[string]struct{})
	for _, b := range c.blogs {
		for _, t := range b.Tags {
			seen[t] = struct{}{}
		}
	}
	c.mu.RUnlock()
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return append([]string{AllFilter}, tags...)
}

// Categories returns the project category filters.
func Categories() []string {
	out := []string{AllFilter}
	for _, cat := range content.Categories {
		out = append(out, string(cat))
	}
	return out
}
