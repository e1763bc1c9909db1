// Package storage keeps uploaded NC files, CAD models and setup media.
// Files live in one directory (or key prefix) per category.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNotFound        = errors.New("file not found")
	ErrInvalidCategory = errors.New("invalid file category")
	ErrInvalidName     = errors.New("invalid file name")
)

// Categories known to the store.
var Categories = []string{"nc", "cad", "dxf", "media", "documents", "versions"}

// Object describes a stored file.
type Object struct {
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	ModTime     time.Time `json:"modTime"`
}

// Key is the category-relative path recorded in the database.
func (o *Object) Key() string {
	return Key(o.Category, o.Name)
}

// Store is implemented by the local disk and MinIO backends.
type Store interface {
	// Put writes r under exactly name.
	Put(ctx context.Context, category, name string, r io.Reader, size int64, contentType string) (*Object, error)
	Open(ctx context.Context, category, name string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, category, name string) error
}

// Save stores r under a timestamp-prefixed, sanitized form of originalName.
func Save(ctx context.Context, s Store, category, originalName string, r io.Reader, size int64, contentType string) (*Object, error) {
	return s.Put(ctx, category, StoredName(originalName, time.Now()), r, size, contentType)
}

// Key joins a category and file name.
func Key(category, name string) string {
	return category + "/" + name
}

// SplitKey is the inverse of Key.
func SplitKey(key string) (category, name string, err error) {
	category, name, ok := strings.Cut(key, "/")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, key)
	}
	if err := validate(category, name); err != nil {
		return "", "", err
	}
	return category, name, nil
}

// StoredName is the on-disk name for an upload: "<unix ms>-<sanitized name>".
func StoredName(originalName string, now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), SanitizeName(originalName))
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.\-]`)

// SanitizeName folds accents to ASCII and replaces anything outside
// [a-zA-Z0-9.-] with an underscore.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, name); err == nil {
		name = folded
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".nc":   "text/plain; charset=utf-8",
	".txt":  "text/plain; charset=utf-8",
	".pdf":  "application/pdf",
	".dxf":  "application/dxf",
}

// ContentTypeFor guesses a content type from the file extension.
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ValidCategory reports whether category is one of Categories.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

func validate(category, name string) error {
	if !ValidCategory(category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
