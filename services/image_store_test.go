package services

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestImageStoreSaveAndDimensions(t *testing.T) {
	store := NewImageStore(t.TempDir(), 5*time.Second)

	dir, err := store.DocumentDir("doc1")
	if err != nil {
		t.Fatalf("DocumentDir failed: %v", err)
	}

	path := filepath.Join(dir, "image_0.png")
	if err := store.SaveUpload(pngBytes(t, 40, 30), path); err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}

	dims := store.Dimensions(path)
	if dims == nil {
		t.Fatal("expected dimensions for valid png")
	}
	if dims["width"] != 40 || dims["height"] != 30 {
		t.Errorf("dimensions = %v, want 40x30", dims)
	}
}

func TestImageStoreRejectsGarbage(t *testing.T) {
	store := NewImageStore(t.TempDir(), 5*time.Second)

	dir, _ := store.DocumentDir("doc1")
	path := filepath.Join(dir, "image_0.png")
	if err := store.SaveUpload([]byte("not an image"), path); err == nil {
		t.Error("expected error for non-image bytes")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("garbage file should not be written")
	}
}

func TestImageStorePathTraversalGuard(t *testing.T) {
	store := NewImageStore(t.TempDir(), 5*time.Second)

	cases := [][2]string{
		{"../etc", "passwd"},
		{"doc1", "../secret.png"},
		{"doc/1", "a.png"},
		{"doc1", `a\b.png`},
	}
	for _, c := range cases {
		if _, err := store.ImagePath(c[0], c[1]); err == nil {
			t.Errorf("ImagePath(%q, %q) should fail", c[0], c[1])
		}
	}
}

func TestImageStoreRemoveDocument(t *testing.T) {
	base := t.TempDir()
	store := NewImageStore(base, 5*time.Second)

	dir, _ := store.DocumentDir("doc1")
	path := filepath.Join(dir, "image_0.png")
	if err := store.SaveUpload(pngBytes(t, 2, 2), path); err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}

	if err := store.RemoveDocument("doc1"); err != nil {
		t.Fatalf("RemoveDocument failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("document directory should be gone")
	}

	ids, err := store.DocumentIDs()
	if err != nil {
		t.Fatalf("DocumentIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no documents, got %v", ids)
	}
}

func TestExtensionFromURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com/photo.PNG":                 ".png",
		"https://example.com/photo.jpeg?width=800":      ".jpeg",
		"https://example.com/assets/img.webp#frag":      ".webp",
		"https://example.com/download?id=42":            ".jpg",
		"https://example.com/file.pdf":                  ".jpg",
		"https://example.com/space%20name/pic.gif?x=1":  ".gif",
		"https://example.com/no-extension/":             ".jpg",
		"https://example.com/archive.svg":               ".svg",
		"https://example.com/trailing.bmp?q=a.png&b=c":  ".bmp",
		"https://example.com/double.name.with.dots.jpg": ".jpg",
	}
	for in, want := range cases {
		if got := ExtensionFromURL(in); got != want {
			t.Errorf("ExtensionFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
