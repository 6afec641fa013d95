package imageproc

import (
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// ImageLoaderRegistry maintains a registry of image loaders
type ImageLoaderRegistry struct {
	loaders       map[string]ImageLoader
	defaultLoader ImageLoader
	mutex         sync.RWMutex
}

// NewImageLoaderRegistry creates a registry covering the pipeline's codecs:
// PNG and JPEG through OpenCV, TIFF with a pure-Go fallback, and raw
// numeric grid files for intermediate artifacts.
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	registry := &ImageLoaderRegistry{
		loaders: make(map[string]ImageLoader),
	}

	standardLoader := NewStandardImageLoader()
	registry.RegisterLoader(".png", standardLoader)
	registry.RegisterLoader(".jpg", standardLoader)
	registry.RegisterLoader(".jpeg", standardLoader)
	registry.defaultLoader = standardLoader

	tiffLoader := NewTiffImageLoader()
	registry.RegisterLoader(".tif", tiffLoader)
	registry.RegisterLoader(".tiff", tiffLoader)

	registry.RegisterLoader(".grid", NewGridImageLoader())

	return registry
}

// RegisterLoader registers a new loader for a specific file extension
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.loaders[strings.ToLower(ext)] = loader
}

// GetLoader returns the appropriate loader for the given path
func (r *ImageLoaderRegistry) GetLoader(path string) ImageLoader {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ext := strings.ToLower(filepath.Ext(path))
	if loader, ok := r.loaders[ext]; ok {
		return loader
	}
	return r.defaultLoader
}

// CanLoadFile checks if any registered loader can handle the given file
func (r *ImageLoaderRegistry) CanLoadFile(path string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ext := strings.ToLower(filepath.Ext(path))
	_, ok := r.loaders[ext]
	return ok
}

// LoadImage loads an image using the appropriate registered loader
func (r *ImageLoaderRegistry) LoadImage(path string) (gocv.Mat, error) {
	loader := r.GetLoader(path)
	if loader != nil && loader.CanLoad(path) {
		return loader.LoadImage(path)
	}

	// Fallback to standard loading method
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, newImageLoadError("failed to load image", path)
	}
	return img, nil
}
