package pipeline

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"thermopipe/stage"
)

// Runner executes a stage set in its fixed order, chaining each stage's
// saved output into the next stage's load. The first failing stage halts
// the run: later stages would only amplify bad inputs.
type Runner struct {
	log    *logrus.Logger
	stages []stage.Stage
}

// NewRunner creates a runner over the given stage set.
func NewRunner(log *logrus.Logger, set *StageSet) *Runner {
	return &Runner{log: log, stages: set.Stages()}
}

// Run executes the full pipeline. The returned handoff points at the final
// stage's output directory.
func (r *Runner) Run() (*stage.Handoff, error) {
	start := time.Now()

	var handoff *stage.Handoff
	for _, s := range r.stages {
		stageStart := time.Now()
		r.log.WithField("stage", s.Name()).Info("stage started")

		if err := s.Load(handoff); err != nil {
			return nil, fmt.Errorf("%s: load: %w", s.Name(), err)
		}
		if err := s.Process(); err != nil {
			return nil, fmt.Errorf("%s: process: %w", s.Name(), err)
		}
		next, err := s.Save()
		if err != nil {
			return nil, fmt.Errorf("%s: save: %w", s.Name(), err)
		}
		handoff = next

		r.log.WithFields(logrus.Fields{
			"stage":    s.Name(),
			"images":   len(handoff.Paths),
			"duration": time.Since(stageStart).Round(time.Millisecond).String(),
		}).Info("stage finished")
	}

	r.log.WithField("duration", time.Since(start).Round(time.Millisecond).String()).Info("pipeline finished")
	return handoff, nil
}
