package thermography

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"thermopipe/imageproc"
	"thermopipe/stage"
	"thermopipe/store"
	"thermopipe/types"
)

// Per-class annotation colors, cycled for models with more classes.
var classColors = []color.RGBA{
	{R: 220, G: 20, B: 60, A: 255},
	{R: 30, G: 144, B: 255, A: 255},
	{R: 50, G: 205, B: 50, A: 255},
	{R: 255, G: 165, B: 0, A: 255},
	{R: 186, G: 85, B: 211, A: 255},
}

// DefectDetection runs the detection model over the composite images and
// writes annotated copies. Every composite is written out whether or not
// it carries detections; an unannotated image is the record that it was
// inspected and found clean.
type DefectDetection struct {
	log       *logrus.Entry
	dirs      stage.DirStore
	registry  *imageproc.ImageLoaderRegistry
	modelPath string
	threshold float64

	// detector may be injected before Process for tests; otherwise
	// LoadModel builds an ONNXDetector from modelPath.
	detector Detector

	runStore *store.Store
	runID    int64

	paths      []string
	annotated  map[string]gocv.Mat
	order      []string
	detections map[string][]types.Detection
}

// NewDefectDetection creates the defect detection stage.
func NewDefectDetection(log *logrus.Entry, dirs stage.DirStore, registry *imageproc.ImageLoaderRegistry, modelPath string, threshold float64, runStore *store.Store, runID int64) *DefectDetection {
	return &DefectDetection{
		log:       log,
		dirs:      dirs,
		registry:  registry,
		modelPath: modelPath,
		threshold: threshold,
		runStore:  runStore,
		runID:     runID,
	}
}

// SetDetector replaces the model loaded from disk. Used by tests and by
// callers embedding a non-ONNX model.
func (d *DefectDetection) SetDetector(det Detector) {
	d.detector = det
}

func (d *DefectDetection) Name() string { return "defect_detection" }

// Load resolves the composite image set.
func (d *DefectDetection) Load(upstream *stage.Handoff) error {
	if upstream != nil {
		d.paths = upstream.Paths
	} else {
		paths, err := d.dirs.ListImages(d.Name(), stage.EnrichmentDir, stage.IntermediateExtensions)
		if err != nil {
			return err
		}
		d.paths = paths
	}

	d.log.WithField("count", len(d.paths)).Info("images loaded")
	return nil
}

// LoadModel initializes the detector unless one was injected.
func (d *DefectDetection) LoadModel() error {
	if d.detector != nil {
		return nil
	}
	det, err := NewONNXDetector(d.modelPath)
	if err != nil {
		return err
	}
	d.detector = det
	d.log.WithField("model", d.modelPath).Info("detection model loaded")
	return nil
}

// Process loads the model and runs it over every composite, annotating
// detections that clear the confidence threshold.
func (d *DefectDetection) Process() error {
	if err := d.LoadModel(); err != nil {
		return err
	}
	defer d.detector.Close()

	d.annotated = make(map[string]gocv.Mat, len(d.paths))
	d.order = d.order[:0]
	d.detections = make(map[string][]types.Detection, len(d.paths))

	total := 0
	for _, path := range d.paths {
		img, err := d.loadComposite(path)
		if err != nil {
			d.closeAnnotated()
			return err
		}

		detections, err := d.detector.Detect(img)
		if err != nil {
			img.Close()
			d.closeAnnotated()
			return fmt.Errorf("detecting on %s: %w", path, err)
		}

		passing := FilterDetections(detections, d.threshold)
		for _, det := range passing {
			annotate(&img, det)
		}
		total += len(passing)

		name := filepath.Base(path)
		d.annotated[name] = img
		d.order = append(d.order, name)
		d.detections[name] = passing

		d.log.WithFields(logrus.Fields{
			"image":      name,
			"detections": len(passing),
			"raw":        len(detections),
		}).Debug("image inspected")
	}

	d.log.WithFields(logrus.Fields{
		"images":     len(d.order),
		"detections": total,
		"threshold":  d.threshold,
	}).Info("defect detection finished")
	return nil
}

// loadComposite reads one composite as a 3-channel image. Grid artifacts
// are grayscale by construction and get replicated across channels.
func (d *DefectDetection) loadComposite(path string) (gocv.Mat, error) {
	if strings.EqualFold(filepath.Ext(path), ".grid") {
		gray, err := d.registry.LoadImage(path)
		if err != nil {
			return gocv.Mat{}, err
		}
		defer gray.Close()

		img := gocv.NewMat()
		gocv.CvtColor(gray, &img, gocv.ColorGrayToBGR)
		return img, nil
	}

	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("failed to load image: %s", path)
	}
	return img, nil
}

// annotate draws one detection box and its confidence onto the image.
func annotate(img *gocv.Mat, det types.Detection) {
	c := classColors[det.ClassID%len(classColors)]
	gocv.Rectangle(img, det.Box, c, 2)

	label := fmt.Sprintf("%.2f", det.Score)
	origin := image.Pt(det.Box.Min.X, det.Box.Min.Y-4)
	if origin.Y < 10 {
		origin.Y = det.Box.Max.Y + 14
	}
	gocv.PutText(img, label, origin, gocv.FontHersheySimplex, 0.5, c, 1)
}

func (d *DefectDetection) closeAnnotated() {
	for _, mat := range d.annotated {
		mat.Close()
	}
	d.annotated = nil
	d.order = nil
}

// Save writes every inspected image into 5.DefectDetected_images and
// records the passing detections. Grid inputs are written as PNG since the
// annotated output is an ordinary viewable image.
func (d *DefectDetection) Save() (*stage.Handoff, error) {
	start := time.Now()
	defer d.closeAnnotated()

	dir, err := d.dirs.Replace(stage.DefectDetectedDir)
	if err != nil {
		return nil, err
	}

	saved := make([]string, 0, len(d.order))
	for _, name := range d.order {
		outName := name
		if strings.EqualFold(filepath.Ext(name), ".grid") {
			outName = strings.TrimSuffix(name, filepath.Ext(name)) + ".png"
		}
		destPath := filepath.Join(dir, outName)
		if err := imageproc.WriteImage(destPath, d.annotated[name]); err != nil {
			return nil, err
		}
		saved = append(saved, destPath)

		if d.runStore != nil && len(d.detections[name]) > 0 {
			if err := d.runStore.RecordDetections(d.runID, destPath, d.detections[name]); err != nil {
				return nil, err
			}
		}
	}

	if d.runStore != nil {
		report := types.StageReport{
			Stage:      d.Name(),
			ImagesIn:   len(d.paths),
			ImagesOut:  len(saved),
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err := d.runStore.RecordStage(d.runID, report); err != nil {
			return nil, err
		}
	}

	d.log.WithFields(logrus.Fields{"count": len(saved), "dir": dir}).Info("images saved")
	return &stage.Handoff{Dir: dir, Paths: saved}, nil
}
