package imageproc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// ImageLoader interface defines methods for image loading
type ImageLoader interface {
	// CanLoad determines if this loader can handle the given file
	CanLoad(path string) bool

	// LoadImage loads an image and returns the gocv.Mat representation
	LoadImage(path string) (gocv.Mat, error)
}

// BaseImageLoader provides common functionality for all image loaders
type BaseImageLoader struct {
	// Extensions this loader can handle
	SupportedExtensions []string
}

// CanLoad checks if this loader supports the file's extension
func (l *BaseImageLoader) CanLoad(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	for _, supported := range l.SupportedExtensions {
		if ext == supported {
			return fileExists(path)
		}
	}
	return false
}

// DefaultLoadImage provides a standard grayscale loading implementation
func (l *BaseImageLoader) DefaultLoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, newImageLoadError("failed to load image", path)
	}
	return img, nil
}

// fileExists checks if a file exists and is accessible
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// newImageLoadError creates a standardized error for image loading failures
func newImageLoadError(message, path string) error {
	return fmt.Errorf("%s: %s", message, path)
}

// StandardImageLoader handles the common formats (PNG, JPEG)
type StandardImageLoader struct {
	BaseImageLoader
}

// NewStandardImageLoader creates a new loader for standard image formats
func NewStandardImageLoader() *StandardImageLoader {
	return &StandardImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedExtensions: []string{".png", ".jpg", ".jpeg"},
		},
	}
}

// LoadImage loads a standard image format
func (l *StandardImageLoader) LoadImage(path string) (gocv.Mat, error) {
	return l.DefaultLoadImage(path)
}
