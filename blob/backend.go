package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

// FS stores blobs in a local directory served by the app under BaseURL.
type FS struct {
	Dir     string
	BaseURL string
}

// NewFS returns a filesystem backend rooted at dir, served under baseURL
// (for example "/media").
func NewFS(dir, baseURL string) *FS {
	return &FS{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (b *FS) resolve(p string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	return filepath.Join(b.Dir, clean), nil
}

func (b *FS) Put(_ context.Context, p string, data []byte, _ string) error {
	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}
	return os.WriteFile(full, data, 0o644)
}

func (b *FS) Remove(_ context.Context, p string) error {
	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (b *FS) URL(p string) string { return b.BaseURL + "/" + p }

// Supabase stores blobs in a public Supabase Storage bucket.
type Supabase struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewSupabase returns a backend for bucket at the project URL supabaseURL,
// authenticated with the service role key.
func NewSupabase(supabaseURL, serviceKey, bucket string) *Supabase {
	baseURL := strings.TrimRight(supabaseURL, "/")
	return &Supabase{
		client:  storage.NewClient(baseURL+"/storage/v1", serviceKey, nil),
		bucket:  bucket,
		baseURL: baseURL,
	}
}

// Put uploads data. The storage client takes no context; ctx is checked
// before the request starts.
func (b *Supabase) Put(ctx context.Context, p string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	upsert := false
	_, err := b.client.UploadFile(b.bucket, p, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("supabase upload: %w", err)
	}
	return nil
}

func (b *Supabase) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.client.RemoveFile(b.bucket, []string{p}); err != nil {
		return fmt.Errorf("supabase remove: %w", err)
	}
	return nil
}

func (b *Supabase) URL(p string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", b.baseURL, b.bucket, p)
}
