package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"bracket.nc", "bracket.nc"},
		{"my part (rev B).nc", "my_part__rev_B_.nc"},
		{"Fräsning_Överdel.png", "Frasning_Overdel.png"},
		{"../../etc/passwd", "passwd"},
		{`C:\jobs\O1001.nc`, "O1001.nc"},
		{"..", "file"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStoredName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	if got := StoredName("setup photo.jpg", now); got != "1700000000123-setup_photo.jpg" {
		t.Errorf("unexpected stored name %q", got)
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.JPG":   "image/jpeg",
		"b.jpeg":  "image/jpeg",
		"c.webp":  "image/webp",
		"d.mov":   "video/quicktime",
		"e.webm":  "video/webm",
		"f.bin":   "application/octet-stream",
		"noext":   "application/octet-stream",
		"g.nc":    "text/plain; charset=utf-8",
		"h.gif":   "image/gif",
		"i.mp4":   "video/mp4",
		"j.png":   "image/png",
		"k.jpeg2": "application/octet-stream",
	}
	for name, want := range tests {
		if got := ContentTypeFor(name); got != want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSplitKey(t *testing.T) {
	category, name, err := SplitKey("versions/v2-O1001.nc")
	if err != nil {
		t.Fatalf("SplitKey: %v", err)
	}
	if category != "versions" || name != "v2-O1001.nc" {
		t.Errorf("got %q %q", category, name)
	}

	if _, _, err := SplitKey("nokey"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
	if _, _, err := SplitKey("secrets/x"); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	obj, err := Save(ctx, store, "nc", "O1001 bracket.nc", strings.NewReader("G21\nM30\n"), -1, "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(obj.Name, "-O1001_bracket.nc") {
		t.Errorf("unexpected name %q", obj.Name)
	}
	if obj.Size != 8 {
		t.Errorf("expected size 8, got %d", obj.Size)
	}

	rc, info, err := store.Open(ctx, "nc", obj.Name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "G21\nM30\n" {
		t.Errorf("unexpected content %q", data)
	}
	if info.ContentType != "text/plain; charset=utf-8" {
		t.Errorf("unexpected content type %q", info.ContentType)
	}

	if err := store.Delete(ctx, "nc", obj.Name); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := store.Open(ctx, "nc", obj.Name); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "nc", obj.Name); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	if _, err := store.Put(ctx, "media", "../escape.png", strings.NewReader("x"), 1, ""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
	if _, _, err := store.Open(ctx, "../media", "a.png"); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
}
