// Package objectstore persists artifacts in local filesystem buckets and
// maps them to public URLs. Objects live at <root>/<bucket>/<path>; the
// public URL is <public_base_url>/<bucket>/<path>, or a file:// URL when no
// public base is configured.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"orbix/internal/config"
	"orbix/internal/fileutil"
	"orbix/internal/services"
)

// Store is a filesystem-backed bucket store.
type Store struct {
	root    string
	baseURL string
}

// New builds a store rooted at root.
func New(root, publicBaseURL string) *Store {
	return &Store{root: filepath.Clean(root), baseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")}
}

// FromConfig builds a store from the [storage] section.
func FromConfig(cfg *config.Config) *Store {
	return New(cfg.Storage.Root, cfg.Storage.PublicBaseURL)
}

// Root returns the filesystem root.
func (s *Store) Root() string { return s.root }

// Object describes a stored artifact.
type Object struct {
	Bucket string
	Path   string
	URL    string
	Size   int64
	SHA256 string
}

// Put writes r to bucket/key atomically and returns its public URL.
func (s *Store) Put(ctx context.Context, bucket, key string, r io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	local, err := s.LocalPath(bucket, key)
	if err != nil {
		return Object{}, err
	}
	written, err := fileutil.WriteAtomic(local, r, 0o644)
	if err != nil {
		return Object{}, services.Wrap(services.ErrTransient, "storage", "put", bucket+"/"+key, err)
	}
	return s.object(bucket, key, written), nil
}

// PutFile copies the file at src to bucket/key.
func (s *Store) PutFile(ctx context.Context, bucket, key, src string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	local, err := s.LocalPath(bucket, key)
	if err != nil {
		return Object{}, err
	}
	written, err := fileutil.CopyFileVerified(src, local)
	if err != nil {
		return Object{}, services.Wrap(services.ErrTransient, "storage", "put file", bucket+"/"+key, err)
	}
	return s.object(bucket, key, written), nil
}

func (s *Store) object(bucket, key string, w fileutil.Written) Object {
	return Object{Bucket: bucket, Path: cleanKey(key), URL: s.URL(bucket, key), Size: w.Size, SHA256: w.SHA256}
}

// Open returns a reader for bucket/key.
func (s *Store) Open(bucket, key string) (*os.File, error) {
	local, err := s.LocalPath(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(local)
	if os.IsNotExist(err) {
		return nil, services.Wrap(services.ErrNotFound, "storage", "open", bucket+"/"+key, err)
	}
	return f, err
}

// URL returns the public URL for bucket/key.
func (s *Store) URL(bucket, key string) string {
	key = cleanKey(key)
	if s.baseURL == "" {
		local, _ := s.LocalPath(bucket, key)
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(local)}).String()
	}
	return s.baseURL + "/" + bucket + "/" + key
}

// OpenURL resolves a URL produced by URL back to the stored object.
func (s *Store) OpenURL(raw string) (*os.File, error) {
	bucket, key, err := s.Resolve(raw)
	if err != nil {
		return nil, err
	}
	return s.Open(bucket, key)
}

// Resolve splits a URL produced by URL into bucket and key.
func (s *Store) Resolve(raw string) (string, string, error) {
	var rel string
	switch {
	case s.baseURL != "" && strings.HasPrefix(raw, s.baseURL+"/"):
		rel = strings.TrimPrefix(raw, s.baseURL+"/")
	case strings.HasPrefix(raw, "file://"):
		u, err := url.Parse(raw)
		if err != nil {
			return "", "", services.Wrap(services.ErrValidation, "storage", "resolve", raw, err)
		}
		r, err := filepath.Rel(s.root, filepath.FromSlash(u.Path))
		if err != nil || strings.HasPrefix(r, "..") {
			return "", "", services.Wrap(services.ErrValidation, "storage", "resolve", "url outside storage root: "+raw, nil)
		}
		rel = filepath.ToSlash(r)
	default:
		return "", "", services.Wrap(services.ErrValidation, "storage", "resolve", "url not served by this store: "+raw, nil)
	}
	bucket, key, ok := strings.Cut(rel, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", services.Wrap(services.ErrValidation, "storage", "resolve", "url lacks bucket and key: "+raw, nil)
	}
	return bucket, key, nil
}

// LocalPath maps bucket/key to a filesystem path, rejecting keys that escape
// the bucket.
func (s *Store) LocalPath(bucket, key string) (string, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", services.Wrap(services.ErrValidation, "storage", "path", fmt.Sprintf("invalid bucket %q", bucket), nil)
	}
	clean := cleanKey(key)
	if clean == "" || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", services.Wrap(services.ErrValidation, "storage", "path", fmt.Sprintf("invalid key %q", key), nil)
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(clean)), nil
}

func cleanKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}
