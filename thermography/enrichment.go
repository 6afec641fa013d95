package thermography

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"thermopipe/grouping"
	"thermopipe/imageproc"
	"thermopipe/stage"
	"thermopipe/store"
	"thermopipe/types"
)

// ShapeMismatchError reports a composite group whose members do not share
// one pixel geometry and therefore cannot be merged.
type ShapeMismatchError struct {
	Key   string
	Paths []string
	Dims  []string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("composite group %q members have mismatched dimensions %v: %s",
		e.Key, e.Dims, strings.Join(e.Paths, ", "))
}

// Enrichment fuses each composite group's three grayscale frequency
// measurements into one RGB image. Channel assignment is deterministic:
// the lowest frequency becomes red, the middle green, the highest blue.
type Enrichment struct {
	log      *logrus.Entry
	dirs     stage.DirStore
	registry *imageproc.ImageLoaderRegistry

	runStore *store.Store
	runID    int64

	paths      []string
	groups     []types.CompositeGroup
	composites map[string]gocv.Mat
	order      []string
}

// NewEnrichment creates the enrichment stage.
func NewEnrichment(log *logrus.Entry, dirs stage.DirStore, registry *imageproc.ImageLoaderRegistry, runStore *store.Store, runID int64) *Enrichment {
	return &Enrichment{
		log:      log,
		dirs:     dirs,
		registry: registry,
		runStore: runStore,
		runID:    runID,
	}
}

func (e *Enrichment) Name() string { return "enrichment" }

// Load resolves the preprocessed image set and partitions it into groups.
func (e *Enrichment) Load(upstream *stage.Handoff) error {
	if upstream != nil {
		e.paths = upstream.Paths
	} else {
		paths, err := e.dirs.ListImages(e.Name(), stage.PreprocessedDir, stage.ImageExtensions)
		if err != nil {
			return err
		}
		e.paths = paths
	}

	groups, err := grouping.Partition(e.paths)
	if err != nil {
		return err
	}
	e.groups = groups

	e.log.WithFields(logrus.Fields{"images": len(e.paths), "groups": len(groups)}).Info("images loaded")
	return nil
}

// Process merges every group into its composite image.
func (e *Enrichment) Process() error {
	e.composites = make(map[string]gocv.Mat, len(e.groups))
	e.order = e.order[:0]

	for _, group := range e.groups {
		composite, err := e.merge(group)
		if err != nil {
			e.closeComposites()
			return err
		}
		name := grouping.CompositeName(group.Key)
		e.composites[name] = composite
		e.order = append(e.order, name)
	}

	e.log.WithField("count", len(e.order)).Info("composite images built")
	return nil
}

// merge builds one composite. Members arrive ordered by frequency value
// ascending; OpenCV stores channels as BGR, so the merge order is reversed
// to put the lowest frequency in the red channel of the written file.
func (e *Enrichment) merge(group types.CompositeGroup) (gocv.Mat, error) {
	channels := make([]gocv.Mat, 0, grouping.GroupSize)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()

	dims := make([]string, 0, grouping.GroupSize)
	for _, member := range group.Members {
		mat, err := e.registry.LoadImage(member.Path)
		if err != nil {
			return gocv.Mat{}, err
		}
		channels = append(channels, mat)
		dims = append(dims, fmt.Sprintf("%dx%d", mat.Cols(), mat.Rows()))
	}

	for _, ch := range channels[1:] {
		if ch.Cols() != channels[0].Cols() || ch.Rows() != channels[0].Rows() {
			return gocv.Mat{}, &ShapeMismatchError{Key: group.Key, Paths: group.Paths(), Dims: dims}
		}
	}

	composite := gocv.NewMat()
	gocv.Merge([]gocv.Mat{channels[2], channels[1], channels[0]}, &composite)
	return composite, nil
}

func (e *Enrichment) closeComposites() {
	for _, mat := range e.composites {
		mat.Close()
	}
	e.composites = nil
	e.order = nil
}

// Save writes the composites into 4.Enrichment_images. The composite name
// is the group key with its double-space separator collapsed, keeping the
// member extension.
func (e *Enrichment) Save() (*stage.Handoff, error) {
	start := time.Now()
	defer e.closeComposites()

	dir, err := e.dirs.Replace(stage.EnrichmentDir)
	if err != nil {
		return nil, err
	}

	saved := make([]string, 0, len(e.order))
	for _, name := range e.order {
		destPath := filepath.Join(dir, name)
		if err := imageproc.WriteImage(destPath, e.composites[name]); err != nil {
			return nil, err
		}
		saved = append(saved, destPath)
	}

	if e.runStore != nil {
		report := types.StageReport{
			Stage:      e.Name(),
			ImagesIn:   len(e.paths),
			ImagesOut:  len(saved),
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err := e.runStore.RecordStage(e.runID, report); err != nil {
			return nil, err
		}
	}

	e.log.WithFields(logrus.Fields{"count": len(saved), "dir": dir}).Info("images saved")
	return &stage.Handoff{Dir: dir, Paths: saved}, nil
}
