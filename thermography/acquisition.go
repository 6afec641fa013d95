// Package thermography implements the concrete pipeline stages of the
// thermography inspection family. Each stage follows the load/process/save
// contract from the stage package and hands its output to the next stage
// through the numbered working directory tree.
package thermography

import (
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/sirupsen/logrus"

	"thermopipe/stage"
	"thermopipe/store"
	"thermopipe/types"
)

// Acquisition copies the source measurement images into the working
// directory. It is a pass-through stage: the real acquisition happens on
// the thermography rig, this stage just stages its output and captures
// camera metadata while the files are at hand.
type Acquisition struct {
	log       *logrus.Entry
	dirs      stage.DirStore
	sourceDir string

	runStore *store.Store
	runID    int64

	paths []string
	meta  []types.ImageMeta
}

// NewAcquisition creates the acquisition stage. runStore may be nil when no
// run database is in use.
func NewAcquisition(log *logrus.Entry, dirs stage.DirStore, sourceDir string, runStore *store.Store, runID int64) *Acquisition {
	return &Acquisition{
		log:       log,
		dirs:      dirs,
		sourceDir: sourceDir,
		runStore:  runStore,
		runID:     runID,
	}
}

func (a *Acquisition) Name() string { return "acquisition" }

// Load lists the source directory. Acquisition is the first stage, so an
// upstream handoff is never expected; a missing source directory is fatal.
func (a *Acquisition) Load(upstream *stage.Handoff) error {
	if upstream != nil {
		a.paths = upstream.Paths
		a.sourceDir = upstream.Dir
		a.log.WithField("count", len(a.paths)).Info("images loaded via upstream handoff")
		return nil
	}

	paths, err := stage.ListDir(a.Name(), a.sourceDir, stage.ImageExtensions)
	if err != nil {
		return err
	}
	a.paths = paths
	a.log.WithFields(logrus.Fields{"count": len(paths), "dir": a.sourceDir}).Info("images loaded")
	return nil
}

// Process extracts camera metadata from the source images. Metadata is a
// best-effort sidecar: a missing exiftool installation degrades to a
// warning, it never fails the run.
func (a *Acquisition) Process() error {
	et, err := exiftool.NewExiftool()
	if err != nil {
		a.log.WithError(err).Warn("exiftool unavailable, skipping metadata extraction")
		return nil
	}
	defer et.Close()

	a.meta = a.meta[:0]
	for _, fm := range et.ExtractMetadata(a.paths...) {
		if fm.Err != nil {
			a.log.WithError(fm.Err).WithField("path", fm.File).Debug("no metadata extracted")
			continue
		}

		meta := types.ImageMeta{Path: fm.File}
		if model, err := fm.GetString("Model"); err == nil {
			meta.CameraModel = model
		}
		if created, err := fm.GetString("CreateDate"); err == nil {
			meta.CaptureTime = created
		}
		if w, err := fm.GetInt("ImageWidth"); err == nil {
			meta.Width = int(w)
		}
		if h, err := fm.GetInt("ImageHeight"); err == nil {
			meta.Height = int(h)
		}
		a.meta = append(a.meta, meta)
	}

	a.log.WithField("count", len(a.meta)).Info("capture metadata extracted")
	return nil
}

// Save copies the source images into 1.Acquired_images, replacing any
// previous contents, and persists the captured metadata.
func (a *Acquisition) Save() (*stage.Handoff, error) {
	start := time.Now()

	dir, err := a.dirs.Replace(stage.AcquiredDir)
	if err != nil {
		return nil, err
	}

	saved := make([]string, 0, len(a.paths))
	for _, path := range a.paths {
		destPath, err := stage.CopyFile(path, dir)
		if err != nil {
			return nil, err
		}
		saved = append(saved, destPath)
	}

	if a.runStore != nil {
		for _, meta := range a.meta {
			if err := a.runStore.RecordImageMeta(a.runID, meta); err != nil {
				return nil, err
			}
		}
		report := types.StageReport{
			Stage:      a.Name(),
			ImagesIn:   len(a.paths),
			ImagesOut:  len(saved),
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err := a.runStore.RecordStage(a.runID, report); err != nil {
			return nil, err
		}
	}

	a.log.WithFields(logrus.Fields{"count": len(saved), "dir": dir}).Info("images saved")
	return &stage.Handoff{Dir: dir, Paths: saved}, nil
}
