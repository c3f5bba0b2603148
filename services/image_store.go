package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"knowledge-capture-platform/internal/logger"
)

var validImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".svg": true,
}

// ImageStore manages captured images on disk, one directory per
// document under the base storage directory.
type ImageStore struct {
	baseDir    string
	httpClient *http.Client
}

func NewImageStore(baseDir string, downloadTimeout time.Duration) *ImageStore {
	return &ImageStore{
		baseDir: baseDir,
		httpClient: &http.Client{
			Timeout: downloadTimeout,
		},
	}
}

// DocumentDir returns (and creates) the directory for a document's images
func (s *ImageStore) DocumentDir(documentID string) (string, error) {
	dir := filepath.Join(s.baseDir, documentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	return dir, nil
}

// SaveUpload validates the uploaded bytes decode as an image and writes
// them to disk unmodified, preserving the original encoding.
func (s *ImageStore) SaveUpload(content []byte, savePath string) error {
	if !strings.HasSuffix(strings.ToLower(savePath), ".svg") {
		if _, err := imaging.Decode(bytes.NewReader(content)); err != nil {
			return fmt.Errorf("invalid image data: %w", err)
		}
	}
	if err := os.WriteFile(savePath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

// Download fetches an image URL and stores it at savePath
func (s *ImageStore) Download(ctx context.Context, imageURL, savePath string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image download failed with status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read image body: %w", err)
	}

	return s.SaveUpload(content, savePath)
}

// Dimensions reads the pixel size of a stored image. Returns nil for
// images whose format cannot be decoded; dimensions are best-effort
// metadata.
func (s *ImageStore) Dimensions(filePath string) map[string]any {
	img, err := imaging.Open(filePath)
	if err != nil {
		logger.Debug("Could not read image dimensions", "path", filePath, "error", err)
		return nil
	}
	bounds := img.Bounds()
	return map[string]any{
		"width":  bounds.Dx(),
		"height": bounds.Dy(),
	}
}

// ImagePath resolves a stored image and guards against path traversal
func (s *ImageStore) ImagePath(documentID, filename string) (string, error) {
	if strings.Contains(documentID, "..") || strings.Contains(filename, "..") ||
		strings.ContainsAny(documentID, `/\`) || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("invalid image path components")
	}

	path := filepath.Join(s.baseDir, documentID, filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("image not found: %w", err)
	}
	return path, nil
}

// RemoveDocument deletes all stored images for one document
func (s *ImageStore) RemoveDocument(documentID string) error {
	if strings.Contains(documentID, "..") || strings.ContainsAny(documentID, `/\`) {
		return fmt.Errorf("invalid document id")
	}
	return os.RemoveAll(filepath.Join(s.baseDir, documentID))
}

// RemoveAll deletes every document image directory
func (s *ImageStore) RemoveAll() error {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read image storage: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := os.RemoveAll(filepath.Join(s.baseDir, entry.Name())); err != nil {
				return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
			}
		}
	}
	return nil
}

// DocumentIDs lists document directories currently holding images
func (s *ImageStore) DocumentIDs() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image storage: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// DocumentModTime reports when a document's image directory was last
// written.
func (s *ImageStore) DocumentModTime(documentID string) (time.Time, error) {
	info, err := os.Stat(filepath.Join(s.baseDir, documentID))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// ExtensionFromURL extracts a validated image extension from a URL
// path, ignoring query parameters. Unknown extensions default to .jpg.
func ExtensionFromURL(imageURL string) string {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return ".jpg"
	}
	path, err := url.PathUnescape(parsed.Path)
	if err != nil {
		path = parsed.Path
	}
	ext := strings.ToLower(filepath.Ext(path))
	if validImageExtensions[ext] {
		return ext
	}
	return ".jpg"
}
