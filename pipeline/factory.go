// Package pipeline assembles and runs the stage sequence of one inspection
// family. The family decides which concrete stage implementations are used;
// the sequence itself is fixed: acquisition, quality gate, preprocessing,
// enrichment, defect detection.
package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"thermopipe/config"
	"thermopipe/imageproc"
	"thermopipe/logging"
	"thermopipe/stage"
	"thermopipe/store"
	"thermopipe/thermography"
)

// Family selects one inspection technique's stage implementations.
type Family string

// The known inspection families. Only thermography is implemented; the
// other techniques are planned and their stages return ErrNotImplemented.
const (
	FamilyThermography Family = "thermography"
	FamilyTwoD         Family = "2d"
	FamilyThreeD       Family = "3d"
)

// ParseFamily validates a family name from configuration or the command
// line.
func ParseFamily(name string) (Family, error) {
	switch Family(name) {
	case FamilyThermography, FamilyTwoD, FamilyThreeD:
		return Family(name), nil
	}
	return "", fmt.Errorf("unknown pipeline family %q (expected %s, %s or %s)",
		name, FamilyThermography, FamilyTwoD, FamilyThreeD)
}

// Deps carries everything a stage set needs to be built.
type Deps struct {
	Log      *logrus.Logger
	Config   *config.Config
	Dirs     stage.DirStore
	Registry *imageproc.ImageLoaderRegistry
	Store    *store.Store
	RunID    int64
	Workers  int
}

// StageSet is the ordered stage implementations of one family.
type StageSet struct {
	Acquisition     stage.Stage
	IQA             stage.Stage
	Preprocessing   stage.Stage
	Enrichment      stage.Stage
	DefectDetection stage.Stage
}

// Stages returns the set in execution order.
func (s *StageSet) Stages() []stage.Stage {
	return []stage.Stage{s.Acquisition, s.IQA, s.Preprocessing, s.Enrichment, s.DefectDetection}
}

// NewStageSet builds the stage set for a family.
func NewStageSet(family Family, deps Deps) (*StageSet, error) {
	switch family {
	case FamilyThermography:
		return newThermographySet(deps), nil
	case FamilyTwoD, FamilyThreeD:
		return newStubSet(family), nil
	}
	return nil, fmt.Errorf("unknown pipeline family %q", family)
}

func newThermographySet(deps Deps) *StageSet {
	cfg := deps.Config
	scorer := thermography.NewBrisqueScorer(deps.Registry)

	return &StageSet{
		Acquisition: thermography.NewAcquisition(
			logging.ForStage(deps.Log, "acquisition"),
			deps.Dirs, cfg.ImageDirectory, deps.Store, deps.RunID),
		IQA: thermography.NewIQA(
			logging.ForStage(deps.Log, "iqa"),
			deps.Dirs, scorer, cfg.BrisqueThreshold, deps.Workers, deps.Store, deps.RunID),
		Preprocessing: thermography.NewPreprocess(
			logging.ForStage(deps.Log, "preprocessing"),
			deps.Dirs, deps.Registry, cfg.FilterSize, deps.Workers, deps.Store, deps.RunID),
		Enrichment: thermography.NewEnrichment(
			logging.ForStage(deps.Log, "enrichment"),
			deps.Dirs, deps.Registry, deps.Store, deps.RunID),
		DefectDetection: thermography.NewDefectDetection(
			logging.ForStage(deps.Log, "defect_detection"),
			deps.Dirs, deps.Registry, cfg.ModelPath, cfg.DefectThreshold, deps.Store, deps.RunID),
	}
}

func newStubSet(family Family) *StageSet {
	return &StageSet{
		Acquisition:     &stubStage{family: family, name: "acquisition"},
		IQA:             &stubStage{family: family, name: "iqa"},
		Preprocessing:   &stubStage{family: family, name: "preprocessing"},
		Enrichment:      &stubStage{family: family, name: "enrichment"},
		DefectDetection: &stubStage{family: family, name: "defect_detection"},
	}
}
