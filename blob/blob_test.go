package blob

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/apperr"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newFSClient(t *testing.T) (*Client, string) {
	t.Helper()
	dir := t.TempDir()
	c := New(NewFS(dir, "/media/"), nil)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c, dir
}

func TestUploadNormalisesImage(t *testing.T) {
	c, dir := newFSClient(t)

	obj, err := c.Upload(context.Background(), File{
		Name:        "My Cover Photo.PNG",
		ContentType: "image/png",
		Body:        bytes.NewReader(pngBytes(t, 2000, 1000)),
	}, FolderProjects)
	require.NoError(t, err)

	assert.Equal(t, "projects/1700000000000-my-cover-photo.jpg", obj.Path)
	assert.Equal(t, "/media/projects/1700000000000-my-cover-photo.jpg", obj.URL)

	f, err := os.Open(filepath.Join(dir, "projects", "1700000000000-my-cover-photo.jpg"))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 1600, cfg.Width)
	assert.Equal(t, 800, cfg.Height)
}

func TestUploadDefaultsFolder(t *testing.T) {
	c, _ := newFSClient(t)
	obj, err := c.Upload(context.Background(), File{Name: "cv.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF-1.4")}, "")
	require.NoError(t, err)
	assert.Equal(t, "uploads/1700000000000-cv.pdf", obj.Path)
}

func TestUploadFailures(t *testing.T) {
	c, _ := newFSClient(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		file   File
		folder string
	}{
		{"unknown folder", File{Name: "a.png", Body: bytes.NewReader(pngBytes(t, 2, 2))}, "secrets"},
		{"nil body", File{Name: "a.png"}, FolderBlogs},
		{"empty body", File{Name: "a.png", Body: strings.NewReader("")}, FolderBlogs},
		{"corrupt image", File{Name: "a.png", ContentType: "image/png", Body: strings.NewReader("not a png")}, FolderBlogs},
		{"too large", File{Name: "a.bin", Body: bytes.NewReader(make([]byte, MaxUploadSize+1))}, FolderBlogs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Upload(ctx, tt.file, tt.folder)
			assert.ErrorIs(t, err, apperr.ErrUploadFailed)
		})
	}
}

func TestDeleteMissingIsNoError(t *testing.T) {
	c, _ := newFSClient(t)
	c.Delete(context.Background(), "blogs/does-not-exist.jpg")
	assert.Empty(t, c.Pending())
}

func TestDeleteRemovesFile(t *testing.T) {
	c, dir := newFSClient(t)
	ctx := context.Background()
	obj, err := c.Upload(ctx, File{Name: "x.png", Body: bytes.NewReader(pngBytes(t, 4, 4))}, FolderBlogs)
	require.NoError(t, err)

	c.Delete(ctx, obj.Path)
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(obj.Path)))
	assert.True(t, os.IsNotExist(err))
}

// flakyBackend fails Remove until healed.
type flakyBackend struct {
	mu      sync.Mutex
	healed  bool
	removed []string
}

func (b *flakyBackend) Put(context.Context, string, []byte, string) error { return nil }
func (b *flakyBackend) URL(p string) string                            { return "https://cdn.test/" + p }
func (b *flakyBackend) Remove(_ context.Context, p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.healed {
		return errors.New("bucket unavailable")
	}
	b.removed = append(b.removed, p)
	return nil
}

func TestSweepRetriesFailedDeletes(t *testing.T) {
	b := &flakyBackend{}
	c := New(b, nil)
	ctx := context.Background()

	c.Delete(ctx, "blogs/1-a.jpg")
	c.Delete(ctx, "blogs/2-b.jpg")
	c.Delete(ctx, "")
	assert.Equal(t, []string{"blogs/1-a.jpg", "blogs/2-b.jpg"}, c.Pending())

	assert.Equal(t, 2, c.Sweep(ctx))

	b.healed = true
	assert.Equal(t, 0, c.Sweep(ctx))
	assert.ElementsMatch(t, []string{"blogs/1-a.jpg", "blogs/2-b.jpg"}, b.removed)
}

func TestFSRejectsEscapingPaths(t *testing.T) {
	b := NewFS(t.TempDir(), "/media")
	assert.Error(t, b.Put(context.Background(), "../outside.txt", []byte("x"), ""))
	assert.Error(t, b.Remove(context.Background(), "/etc/passwd"))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Hello World.JPG", "hello-world.jpg"},
		{"../../etc/passwd", "passwd"},
		{`C:\photos\Résumé 2024.pdf`, "r-sum-2024.pdf"},
		{"???.png", "file.png"},
		{"archive.tar.g$", "archive-tar"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeName(tt.in), tt.in)
	}
}

func TestSupabaseURL(t *testing.T) {
	b := NewSupabase("https://abc.supabase.co/", "key", "media")
	assert.Equal(t, "https://abc.supabase.co/storage/v1/object/public/media/blogs/1-a.jpg", b.URL("blogs/1-a.jpg"))
}

func TestValidPath(t *testing.T) {
	for p, want := range map[string]bool{
		"projects/1700000000000-cover.jpg": true,
		"uploads/1-a.jpg":                  true,
		"":                                 false,
		"projects/":                        false,
		"other/1-a.jpg":                    false,
		"projects/../blogs/1-a.jpg":        false,
		"projects/sub/1-a.jpg":             false,
		"/projects/1-a.jpg":                false,
	} {
		if got := ValidPath(p); got != want {
			t.Errorf("ValidPath(%q) = %v, want %v", p, got, want)
		}
	}
}
