package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DefaultJPEGQuality is used by Save when the caller passes quality <= 0.
const DefaultJPEGQuality = 95

// imageExts lists the raster formats the pipeline reads and writes.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// IsImageFile reports whether name has a supported raster extension.
func IsImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Load decodes an image from disk. JPEG EXIF orientation is applied so the
// returned dimensions match what a viewer shows.
//
// Supported formats are JPEG, PNG, GIF and WebP.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// Save encodes img to path, choosing the format from the extension.
// JPEG is the default; quality applies to JPEG and lossy WebP.
func Save(img image.Image, path string, quality int) error {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".webp":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create image: %w", err)
		}
		if err := webp.Encode(f, img, &webp.Options{Quality: float32(quality)}); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode webp: %w", err)
		}
		return f.Close()
	case ".png":
		if err := imaging.Save(img, path); err != nil {
			return fmt.Errorf("failed to save image: %w", err)
		}
	default:
		if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
			return fmt.Errorf("failed to save image: %w", err)
		}
	}
	return nil
}

// ImageCache provides thread-safe caching of decoded images for the tool
// server, where the same image is often inspected several times in a row.
//
// The dataset pipeline itself does not use the cache: it always decodes the
// file it is about to transform so box geometry never runs against stale
// dimensions. Callers that rewrite a cached file must Evict it.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load returns the cached image for path or decodes it from disk.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image, loading it into the
// cache if needed.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
