// Package stage defines the per-stage lifecycle contract and the staged
// working-directory protocol shared by every pipeline family.
package stage

import "fmt"

// Handoff carries one stage's output to the next stage in memory: the
// resolved directory the files live in plus the file paths themselves.
// Passing a Handoff to Load skips re-listing the directory from disk;
// passing nil makes the stage read its canonical input directory, which is
// what allows any stage to be run standalone against a prior run's output.
type Handoff struct {
	Dir   string
	Paths []string
}

// Stage is one pipeline phase. Load resolves the input image set, Process
// computes the stage's outputs in memory, and Save writes them to the
// stage's numbered directory, returning the handoff for the next stage.
type Stage interface {
	Name() string
	Load(upstream *Handoff) error
	Process() error
	Save() (*Handoff, error)
}

// Run executes one stage's full lifecycle standalone.
func Run(s Stage) (*Handoff, error) {
	if err := s.Load(nil); err != nil {
		return nil, fmt.Errorf("%s: load: %w", s.Name(), err)
	}
	if err := s.Process(); err != nil {
		return nil, fmt.Errorf("%s: process: %w", s.Name(), err)
	}
	h, err := s.Save()
	if err != nil {
		return nil, fmt.Errorf("%s: save: %w", s.Name(), err)
	}
	return h, nil
}

// MissingDirError reports an expected stage input directory that does not
// exist. The core never substitutes an empty set or prompts interactively;
// the caller decides how to surface it.
type MissingDirError struct {
	Stage string
	Dir   string
}

func (e *MissingDirError) Error() string {
	return fmt.Sprintf("%s: input directory does not exist: %s", e.Stage, e.Dir)
}

// ErrNotImplemented is returned by every operation of a stub pipeline family.
var ErrNotImplemented = fmt.Errorf("not implemented")
