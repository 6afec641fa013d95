package types

import "image"

// ImageRef holds a filesystem path plus the identifier fields derived from
// the thermography filename contract:
//
//	<prefix> <digits>[_digits]Hz <suffix>.<ext>
//
// GroupKey is the basename with the frequency token removed; concatenating
// Prefix, the frequency token and Suffix reconstructs the original basename.
type ImageRef struct {
	Path      string
	Prefix    string
	Suffix    string
	FreqToken string
	Frequency float64
	GroupKey  string
}

// CompositeGroup is the set of image paths sharing one group key, i.e. the
// three frequency measurements of one physical sample. Members are ordered
// by frequency value ascending.
type CompositeGroup struct {
	Key     string
	Members []ImageRef
}

// Paths returns the member paths in group order.
func (g CompositeGroup) Paths() []string {
	paths := make([]string, len(g.Members))
	for i, m := range g.Members {
		paths[i] = m.Path
	}
	return paths
}

// QualityRecord holds the quality gate outcome for one composite group.
type QualityRecord struct {
	CompositeName string
	Paths         []string
	Scores        []float64
	Passed        []bool
	CompositePass bool
}

// GateSummary aggregates quality gate results across a whole run.
type GateSummary struct {
	ImagesTotal  int
	ImagesPassed int
	GroupsTotal  int
	GroupsPassed int
}

// Detection is one model prediction on a composite image.
type Detection struct {
	Box     image.Rectangle
	Score   float32
	ClassID int
}

// ImageMeta holds capture metadata extracted during acquisition.
type ImageMeta struct {
	Path        string
	CameraModel string
	CaptureTime string
	Width       int
	Height      int
}

// StageReport summarizes one stage execution for the run store.
type StageReport struct {
	Stage      string
	ImagesIn   int
	ImagesOut  int
	DurationMS int64
}
