package thermography

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"thermopipe/types"
)

// Detector runs a defect detection model on one composite image. The
// pipeline treats the model as opaque: it consumes an image and produces
// scored boxes, nothing else about the network leaks out.
type Detector interface {
	Detect(img gocv.Mat) ([]types.Detection, error)
	Close() error
}

// ONNXDetector runs an ONNX object detection network through the OpenCV
// DNN module. The output parser expects the common single-tensor layout
// [1, rows, 4+1+classes] with box centers relative to the network input
// size, which covers the YOLO family the inspection models are exported
// from.
type ONNXDetector struct {
	net       gocv.Net
	inputSize image.Point
	nmsThresh float32
}

// NewONNXDetector loads the network from modelPath.
func NewONNXDetector(modelPath string) (*ONNXDetector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file does not exist: %s", modelPath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load detection model: %s", modelPath)
	}

	return &ONNXDetector{
		net:       net,
		inputSize: image.Pt(640, 640),
		nmsThresh: 0.45,
	}, nil
}

// Close releases the network.
func (d *ONNXDetector) Close() error {
	return d.net.Close()
}

// Detect runs one forward pass and returns every surviving detection with
// boxes in the coordinate space of img. Confidence filtering against the
// run threshold happens in the caller; Detect only suppresses duplicates.
func (d *ONNXDetector) Detect(img gocv.Mat) ([]types.Detection, error) {
	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	detections, err := d.parseOutput(output, img.Cols(), img.Rows())
	if err != nil {
		return nil, err
	}
	return d.suppress(detections), nil
}

func (d *ONNXDetector) parseOutput(output gocv.Mat, imgW, imgH int) ([]types.Detection, error) {
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected model output shape %v", sizes)
	}
	rows, cols := sizes[1], sizes[2]
	if cols < 6 {
		return nil, fmt.Errorf("unexpected model output shape %v", sizes)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("cannot read model output: %v", err)
	}

	scaleX := float32(imgW) / float32(d.inputSize.X)
	scaleY := float32(imgH) / float32(d.inputSize.Y)

	var detections []types.Detection
	for r := 0; r < rows; r++ {
		row := data[r*cols : (r+1)*cols]

		objectness := row[4]
		classID := 0
		best := float32(0)
		for c := 5; c < cols; c++ {
			if row[c] > best {
				best = row[c]
				classID = c - 5
			}
		}
		score := objectness * best
		if score <= 0 {
			continue
		}

		cx, cy, w, h := row[0]*scaleX, row[1]*scaleY, row[2]*scaleX, row[3]*scaleY
		box := image.Rect(
			int(cx-w/2), int(cy-h/2),
			int(cx+w/2), int(cy+h/2),
		).Intersect(image.Rect(0, 0, imgW, imgH))
		if box.Empty() {
			continue
		}

		detections = append(detections, types.Detection{Box: box, Score: score, ClassID: classID})
	}
	return detections, nil
}

// suppress removes overlapping duplicates via non-maximum suppression.
func (d *ONNXDetector) suppress(detections []types.Detection) []types.Detection {
	if len(detections) == 0 {
		return nil
	}

	boxes := make([]image.Rectangle, len(detections))
	scores := make([]float32, len(detections))
	for i, det := range detections {
		boxes[i] = det.Box
		scores[i] = det.Score
	}

	kept := make([]types.Detection, 0, len(detections))
	for _, idx := range gocv.NMSBoxes(boxes, scores, 0, d.nmsThresh) {
		kept = append(kept, detections[idx])
	}
	return kept
}

// FilterDetections keeps only detections whose score strictly exceeds the
// threshold.
func FilterDetections(detections []types.Detection, threshold float64) []types.Detection {
	var kept []types.Detection
	for _, det := range detections {
		if float64(det.Score) > threshold {
			kept = append(kept, det)
		}
	}
	return kept
}
