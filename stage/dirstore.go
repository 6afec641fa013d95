package stage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Numbered stage directory names under the working directory. The layout is
// a contract: another tool (or a later manual run) may point any stage at an
// earlier stage's output, so the names must not change.
const (
	AcquiredDir       = "1.Acquired_images"
	IQADir            = "2.IQA_images"
	PreprocessedDir   = "3.Preprocessed_images"
	EnrichmentDir     = "4.Enrichment_images"
	DefectDetectedDir = "5.DefectDetected_images"
)

// ImageExtensions are the file types loaded by every stage.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}

// IntermediateExtensions additionally cover raw numeric grid artifacts,
// accepted by the defect detection stage.
var IntermediateExtensions = append([]string{".grid"}, ImageExtensions...)

// DirStore resolves and maintains the numbered stage directories of one
// working directory tree. Only one pipeline run may be active against a
// working directory at a time; saves are destructive.
type DirStore struct {
	workingDir string
}

// NewDirStore creates a DirStore rooted at workingDir, creating the root if
// it does not exist yet.
func NewDirStore(workingDir string) (DirStore, error) {
	if workingDir == "" {
		return DirStore{}, fmt.Errorf("working directory path is empty")
	}
	if err := os.MkdirAll(workingDir, 0755); err != nil {
		return DirStore{}, fmt.Errorf("cannot create working directory %s: %v", workingDir, err)
	}
	return DirStore{workingDir: workingDir}, nil
}

// WorkingDir returns the root of the staged directory tree.
func (d DirStore) WorkingDir() string {
	return d.workingDir
}

// Path returns the absolute path of a numbered stage directory.
func (d DirStore) Path(stageDir string) string {
	return filepath.Join(d.workingDir, stageDir)
}

// Replace prepares a stage directory for saving: if it exists its entire
// contents are removed, otherwise it is created. Each save therefore
// reflects exactly the current run's outputs, at the cost of destroying
// prior run artifacts.
func (d DirStore) Replace(stageDir string) (string, error) {
	dir := d.Path(stageDir)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			return "", fmt.Errorf("cannot create stage directory %s: %v", dir, mkErr)
		}
		return dir, nil
	}
	if err != nil {
		return "", fmt.Errorf("cannot read stage directory %s: %v", dir, err)
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return "", fmt.Errorf("cannot clear stage directory %s: %v", dir, err)
		}
	}
	return dir, nil
}

// ListImages returns the sorted image paths inside a stage directory,
// filtered to the given extensions. A missing directory is a
// MissingDirError, never an empty result.
func (d DirStore) ListImages(stageName, stageDir string, extensions []string) ([]string, error) {
	dir := d.Path(stageDir)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, &MissingDirError{Stage: stageName, Dir: dir}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: cannot read %s: %v", stageName, dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range extensions {
			if ext == want {
				paths = append(paths, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ListDir lists image paths in an arbitrary directory (the acquisition
// source folder) with the same filtering and MissingDirError semantics.
func ListDir(stageName, dir string, extensions []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, &MissingDirError{Stage: stageName, Dir: dir}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: cannot read %s: %v", stageName, dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range extensions {
			if ext == want {
				paths = append(paths, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// CopyFile copies one file preserving its basename into destDir and returns
// the new path. Files with the same name are overwritten.
func CopyFile(srcPath, destDir string) (string, error) {
	destPath := filepath.Join(destDir, filepath.Base(srcPath))

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %v", srcPath, err)
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("cannot create %s: %v", destPath, err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return "", fmt.Errorf("cannot copy %s to %s: %v", srcPath, destPath, err)
	}
	return destPath, nil
}
