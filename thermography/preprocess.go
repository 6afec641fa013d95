package thermography

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"thermopipe/grouping"
	"thermopipe/imageproc"
	"thermopipe/stage"
	"thermopipe/store"
	"thermopipe/types"
)

// Step is one preprocessing operation. Steps are composable: a run may
// apply any subset, in any order, to every image independently.
type Step string

// The available preprocessing steps, in their default order.
const (
	StepDenoise Step = "denoise"
	StepClipIQR Step = "clip_iqr"
	StepRescale Step = "rescale"
)

// DefaultSteps is the standard chain: median denoising, outlier clipping,
// then contrast rescaling.
var DefaultSteps = []Step{StepDenoise, StepClipIQR, StepRescale}

// Preprocess normalizes the gated images for enrichment: a median filter
// removes sensor speckle, intensity outliers are clipped to the IQR fences,
// and the remaining range is stretched to mean plus/minus two standard
// deviations. All arithmetic runs on float64 grids so precision is only
// lost once, at save time.
type Preprocess struct {
	log        *logrus.Entry
	dirs       stage.DirStore
	registry   *imageproc.ImageLoaderRegistry
	filterSize int
	steps      []Step
	workers    int

	runStore *store.Store
	runID    int64

	paths []string
	grids map[string]*imageproc.Grid
}

// NewPreprocess creates the preprocessing stage with the default step chain.
func NewPreprocess(log *logrus.Entry, dirs stage.DirStore, registry *imageproc.ImageLoaderRegistry, filterSize, workers int, runStore *store.Store, runID int64) *Preprocess {
	if workers < 1 {
		workers = 1
	}
	return &Preprocess{
		log:        log,
		dirs:       dirs,
		registry:   registry,
		filterSize: filterSize,
		steps:      DefaultSteps,
		workers:    workers,
		runStore:   runStore,
		runID:      runID,
	}
}

// SetSteps overrides the step chain. An empty chain makes the stage a
// pass-through that still re-encodes every image.
func (p *Preprocess) SetSteps(steps []Step) {
	p.steps = steps
}

func (p *Preprocess) Name() string { return "preprocessing" }

// Load resolves the gated image set and decodes every image into a float
// grid. The triplet structure is re-verified here: preprocessing may be
// pointed at a directory a person has edited since the gate ran.
func (p *Preprocess) Load(upstream *stage.Handoff) error {
	if upstream != nil {
		p.paths = upstream.Paths
	} else {
		paths, err := p.dirs.ListImages(p.Name(), stage.IQADir, stage.ImageExtensions)
		if err != nil {
			return err
		}
		p.paths = paths
	}

	if _, err := grouping.Partition(p.paths); err != nil {
		return err
	}

	p.grids = make(map[string]*imageproc.Grid, len(p.paths))
	for _, path := range p.paths {
		grid, err := p.loadGrid(path)
		if err != nil {
			return err
		}
		p.grids[path] = grid
	}

	p.log.WithField("count", len(p.paths)).Info("images loaded")
	return nil
}

func (p *Preprocess) loadGrid(path string) (*imageproc.Grid, error) {
	mat, err := p.registry.LoadImage(path)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	grid := imageproc.NewGrid(mat.Cols(), mat.Rows())
	grid.Pix = imageproc.MatToFloats(mat)
	return grid, nil
}

// Process applies the step chain to every image, images in parallel.
func (p *Preprocess) Process() error {
	semaphore := make(chan struct{}, p.workers)
	errs := make(chan error, len(p.paths))
	var wg sync.WaitGroup

	for _, path := range p.paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := p.processOne(path); err != nil {
				errs <- err
			}
		}(path)
	}

	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return err
	}

	p.log.WithFields(logrus.Fields{"count": len(p.paths), "steps": p.steps}).Info("images processed")
	return nil
}

func (p *Preprocess) processOne(path string) error {
	grid := p.grids[path]
	for _, step := range p.steps {
		switch step {
		case StepDenoise:
			if err := p.denoise(grid); err != nil {
				return fmt.Errorf("denoising %s: %w", path, err)
			}
		case StepClipIQR:
			imageproc.ClipIQR(grid.Pix)
		case StepRescale:
			imageproc.RescaleMeanStd(grid.Pix)
		default:
			return fmt.Errorf("unknown preprocessing step %q", step)
		}
	}
	return nil
}

// denoise applies the median filter in place. The filter runs on an 8-bit
// Mat because OpenCV's median only supports large kernels on 8-bit input;
// denoising therefore belongs before the float-domain steps.
func (p *Preprocess) denoise(grid *imageproc.Grid) error {
	mat := imageproc.GrayMatFromFloats(grid.Pix, grid.Width, grid.Height)
	defer mat.Close()

	filtered := gocv.NewMat()
	defer filtered.Close()
	gocv.MedianBlur(mat, &filtered, p.filterSize)

	grid.Pix = imageproc.MatToFloats(filtered)
	return nil
}

// Save writes the processed images into 3.Preprocessed_images under their
// original basenames.
func (p *Preprocess) Save() (*stage.Handoff, error) {
	start := time.Now()

	dir, err := p.dirs.Replace(stage.PreprocessedDir)
	if err != nil {
		return nil, err
	}

	saved := make([]string, 0, len(p.paths))
	for _, path := range p.paths {
		grid := p.grids[path]
		destPath := filepath.Join(dir, filepath.Base(path))

		mat := imageproc.GrayMatFromFloats(grid.Pix, grid.Width, grid.Height)
		err := imageproc.WriteImage(destPath, mat)
		mat.Close()
		if err != nil {
			return nil, err
		}
		saved = append(saved, destPath)
	}

	if p.runStore != nil {
		report := types.StageReport{
			Stage:      p.Name(),
			ImagesIn:   len(p.paths),
			ImagesOut:  len(saved),
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err := p.runStore.RecordStage(p.runID, report); err != nil {
			return nil, err
		}
	}

	p.log.WithFields(logrus.Fields{"count": len(saved), "dir": dir}).Info("images saved")
	return &stage.Handoff{Dir: dir, Paths: saved}, nil
}
