// Package blob uploads and deletes media files. Uploaded images are
// normalised before storage; deletes are best effort and failed deletes are
// retried by Sweep.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/eringen/folio/apperr"
)

const (
	maxImageWidth = 1600
	jpegQuality   = 85
	MaxUploadSize = 10 << 20 // 10MB
)

// Storage folders.
const (
	FolderProjects = "projects"
	FolderBlogs    = "blogs"
	FolderUploads  = "uploads"
)

// ValidPath reports whether p is a clean object path inside one of the
// storage folders, the shape Upload returns.
func ValidPath(p string) bool {
	folder, name, ok := strings.Cut(p, "/")
	if !ok || name == "" || path.Clean(p) != p {
		return false
	}
	switch folder {
	case FolderProjects, FolderBlogs, FolderUploads:
		return !strings.Contains(name, "/")
	}
	return false
}

// Backend stores raw bytes under a path.
type Backend interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	// Remove deletes the object. A missing object is not an error.
	Remove(ctx context.Context, path string) error
	// URL returns the public URL of the object at path.
	URL(path string) string
}

// File is an upload as received from a form or API request.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Object identifies a stored blob.
type Object struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// Client is the blob store client. It is safe for concurrent use.
type Client struct {
	backend Backend
	log     *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]struct{}
}

// New returns a Client over backend. A nil logger disables logging.
func New(backend Backend, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		backend: backend,
		log:     log,
		now:     time.Now,
		pending: make(map[string]struct{}),
	}
}

// Upload normalises f and stores it under folder, returning its URL and the
// path needed to delete it later. Any failure is reported as
// apperr.ErrUploadFailed.
func (c *Client) Upload(ctx context.Context, f File, folder string) (Object, error) {
	switch folder {
	case "":
		folder = FolderUploads
	case FolderProjects, FolderBlogs, FolderUploads:
	default:
		return Object{}, fmt.Errorf("blob: unknown folder %q: %w", folder, apperr.ErrUploadFailed)
	}
	if f.Body == nil {
		return Object{}, fmt.Errorf("blob: empty upload: %w", apperr.ErrUploadFailed)
	}
	raw, err := io.ReadAll(io.LimitReader(f.Body, MaxUploadSize+1))
	if err != nil {
		return Object{}, fmt.Errorf("blob: read %s: %w: %w", f.Name, apperr.ErrUploadFailed, err)
	}
	if len(raw) == 0 {
		return Object{}, fmt.Errorf("blob: empty upload: %w", apperr.ErrUploadFailed)
	}
	if len(raw) > MaxUploadSize {
		return Object{}, fmt.Errorf("blob: %s exceeds 10MB: %w", f.Name, apperr.ErrUploadFailed)
	}

	data, contentType, name := raw, f.ContentType, sanitizeName(f.Name)
	if processed, err := processImage(bytes.NewReader(raw)); err == nil {
		data, contentType = processed, "image/jpeg"
		name = strings.TrimSuffix(name, path.Ext(name)) + ".jpg"
	} else if strings.HasPrefix(f.ContentType, "image/") {
		return Object{}, fmt.Errorf("blob: invalid image %s: %w: %w", f.Name, apperr.ErrUploadFailed, err)
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	key := folder + "/" + strconv.FormatInt(c.now().UnixMilli(), 10) + "-" + name
	if err := c.backend.Put(ctx, key, data, contentType); err != nil {
		return Object{}, fmt.Errorf("blob: put %s: %w: %w", key, apperr.ErrUploadFailed, err)
	}
	c.log.Debug("blob uploaded", zap.String("path", key), zap.Int("bytes", len(data)))
	return Object{URL: c.backend.URL(key), Path: key}, nil
}

// Delete removes the blob at p. Failures are logged, not returned; the path
// is queued and retried by Sweep.
func (c *Client) Delete(ctx context.Context, p string) {
	if p == "" {
		return
	}
	if err := c.backend.Remove(ctx, p); err != nil {
		c.log.Warn("blob delete failed, queued for retry", zap.String("path", p), zap.Error(err))
		c.mu.Lock()
		c.pending[p] = struct{}{}
		c.mu.Unlock()
		return
	}
	c.log.Debug("blob deleted", zap.String("path", p))
}

// Pending returns the queued deletes, sorted.
func (c *Client) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.pending))
	for p := range c.pending {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Sweep retries queued deletes and returns how many remain queued.
func (c *Client) Sweep(ctx context.Context) int {
	for _, p := range c.Pending() {
		if ctx.Err() != nil {
			break
		}
		if err := c.backend.Remove(ctx, p); err != nil {
			c.log.Debug("blob delete retry failed", zap.String("path", p), zap.Error(err))
			continue
		}
		c.mu.Lock()
		delete(c.pending, p)
		c.mu.Unlock()
		c.log.Info("blob delete retried", zap.String("path", p))
	}
	return len(c.Pending())
}

// RunSweeper calls Sweep every interval until ctx is done.
func (c *Client) RunSweeper(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			c.Sweep(ctx)
		}
	}
}

// processImage decodes an image, downscales it to maxImageWidth if wider and
// re-encodes it as JPEG.
func processImage(src io.Reader) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// sanitizeName reduces a client file name to lowercase [a-z0-9-] plus its
// extension.
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(path.Ext(name))
	base := strings.ToLower(strings.TrimSuffix(name, path.Ext(name)))

	var b strings.Builder
	dash := false
	for _, r := range base {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		out = "file"
	}
	for _, r := range ext[min(1, len(ext)):] {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return out
		}
	}
	return out + ext
}
