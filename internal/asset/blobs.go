// Package asset stores template uploads and merged artifacts on disk and
// fetches remotely hosted templates with an HTTP cache.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"menucal/internal/config"
)

const (
	TemplatesDir = "templates"
	ArtifactsDir = "artifacts"
)

// ErrBadRef is returned for refs that escape the blob root.
var ErrBadRef = errors.New("asset: invalid ref")

// Blobs is a directory-backed blob store. Refs are slash-separated paths
// relative to the root, e.g. "templates/<uuid>.png".
type Blobs struct {
	root    string
	fetcher *Fetcher
}

// NewBlobs roots the store at dir. fetcher may be nil, in which case remote
// refs cannot be loaded.
func NewBlobs(dir string, fetcher *Fetcher) *Blobs {
	return &Blobs{root: dir, fetcher: fetcher}
}

// IsRemote reports whether ref is an http(s) URL rather than a local blob.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// PutTemplate stores an uploaded template under a fresh name.
func (b *Blobs) PutTemplate(data []byte, ext string) (string, error) {
	return b.put(TemplatesDir, "template_", data, ext)
}

// PutArtifact stores a merged image. Artifacts are never overwritten; each
// call gets a new name.
func (b *Blobs) PutArtifact(data []byte) (string, error) {
	return b.put(ArtifactsDir, "merged_menu_", data, ".png")
}

func (b *Blobs) put(dir, prefix string, data []byte, ext string) (string, error) {
	if ext == "" {
		ext = ".png"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ref := path.Join(dir, prefix+uuid.NewString()+strings.ToLower(ext))
	full, err := b.resolve(ref)
	if err != nil {
		return "", err
	}
	if err := config.WriteFileAtomic(full, data, 0o644); err != nil {
		return "", fmt.Errorf("asset: write %s: %w", ref, err)
	}
	return ref, nil
}

// Read returns the bytes of a local blob.
func (b *Blobs) Read(ref string) ([]byte, error) {
	full, err := b.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("asset: read %s: %w", ref, err)
	}
	return data, nil
}

// Load reads a local blob or downloads a remote ref.
func (b *Blobs) Load(ctx context.Context, ref string) ([]byte, error) {
	if !IsRemote(ref) {
		return b.Read(ref)
	}
	if b.fetcher == nil {
		return nil, fmt.Errorf("asset: no fetcher for remote ref %s", redactURL(ref))
	}
	res, err := b.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// Delete removes a local blob. Remote refs and missing files are ignored.
func (b *Blobs) Delete(ref string) error {
	if IsRemote(ref) {
		return nil
	}
	full, err := b.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("asset: delete %s: %w", ref, err)
	}
	return nil
}

// Path returns the filesystem path of a local blob, for http.ServeFile.
func (b *Blobs) Path(ref string) (string, error) {
	return b.resolve(ref)
}

func (b *Blobs) resolve(ref string) (string, error) {
	if ref == "" || strings.Contains(ref, "\\") || path.IsAbs(ref) {
		return "", ErrBadRef
	}
	clean := path.Clean(ref)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrBadRef
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}
