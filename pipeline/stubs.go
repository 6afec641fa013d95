package pipeline

import (
	"fmt"

	"thermopipe/stage"
)

// stubStage stands in for the stages of a not-yet-implemented family. Every
// lifecycle operation fails with ErrNotImplemented, so selecting such a
// family is an immediate, explicit error rather than a silent no-op run.
type stubStage struct {
	family Family
	name   string
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Load(upstream *stage.Handoff) error {
	return s.err()
}

func (s *stubStage) Process() error {
	return s.err()
}

func (s *stubStage) Save() (*stage.Handoff, error) {
	return nil, s.err()
}

func (s *stubStage) err() error {
	return fmt.Errorf("%s family: %w", s.family, stage.ErrNotImplemented)
}
