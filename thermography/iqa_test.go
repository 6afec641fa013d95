package thermography

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"thermopipe/stage"
)

// stubScorer returns canned scores keyed by basename.
type stubScorer struct {
	scores map[string]float64
}

func (s *stubScorer) Score(path string) (float64, error) {
	return s.scores[filepath.Base(path)], nil
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(log)
}

func writeAcquired(t *testing.T, dirs stage.DirStore, names ...string) {
	t.Helper()
	dir := dirs.Path(stage.AcquiredDir)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("img"), 0644))
	}
}

func TestIQAGateIsAtomicPerGroup(t *testing.T) {
	dirs, err := stage.NewDirStore(t.TempDir())
	require.NoError(t, err)

	writeAcquired(t, dirs,
		"SampleA 0_5Hz SampleB.png",
		"SampleA 1Hz SampleB.png",
		"SampleA 2Hz SampleB.png",
		"PlateX 0_5Hz PlateY.png",
		"PlateX 1Hz PlateY.png",
		"PlateX 2Hz PlateY.png",
	)

	// One PlateX member sits exactly at the threshold: the comparison is
	// strict, so it fails and takes the whole group with it.
	scorer := &stubScorer{scores: map[string]float64{
		"SampleA 0_5Hz SampleB.png": 10,
		"SampleA 1Hz SampleB.png":   20,
		"SampleA 2Hz SampleB.png":   69,
		"PlateX 0_5Hz PlateY.png":   5,
		"PlateX 1Hz PlateY.png":     70,
		"PlateX 2Hz PlateY.png":     5,
	}}

	iqa := NewIQA(testLogger(), dirs, scorer, 70, 2, nil, 0)
	handoff, err := stage.Run(iqa)
	require.NoError(t, err)

	require.Len(t, handoff.Paths, 3)
	for _, path := range handoff.Paths {
		require.Contains(t, filepath.Base(path), "SampleA")
	}

	summary := iqa.Summary()
	require.Equal(t, 6, summary.ImagesTotal)
	require.Equal(t, 5, summary.ImagesPassed)
	require.Equal(t, 2, summary.GroupsTotal)
	require.Equal(t, 1, summary.GroupsPassed)
}

func TestIQASaveIsDestructive(t *testing.T) {
	dirs, err := stage.NewDirStore(t.TempDir())
	require.NoError(t, err)

	stale := filepath.Join(dirs.Path(stage.IQADir), "stale.png")
	require.NoError(t, os.MkdirAll(dirs.Path(stage.IQADir), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	writeAcquired(t, dirs,
		"SampleA 0_5Hz SampleB.png",
		"SampleA 1Hz SampleB.png",
		"SampleA 2Hz SampleB.png",
	)

	iqa := NewIQA(testLogger(), dirs, &stubScorer{scores: map[string]float64{}}, 70, 1, nil, 0)
	_, err = stage.Run(iqa)
	require.NoError(t, err)

	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))
}

func TestIQARejectsIncompleteGroup(t *testing.T) {
	dirs, err := stage.NewDirStore(t.TempDir())
	require.NoError(t, err)

	writeAcquired(t, dirs,
		"SampleA 0_5Hz SampleB.png",
		"SampleA 1Hz SampleB.png",
	)

	iqa := NewIQA(testLogger(), dirs, &stubScorer{scores: map[string]float64{}}, 70, 1, nil, 0)
	err = iqa.Load(nil)
	require.Error(t, err)
}

func TestIQAMissingInputDir(t *testing.T) {
	dirs, err := stage.NewDirStore(t.TempDir())
	require.NoError(t, err)

	iqa := NewIQA(testLogger(), dirs, &stubScorer{scores: map[string]float64{}}, 70, 1, nil, 0)
	err = iqa.Load(nil)

	var missing *stage.MissingDirError
	require.ErrorAs(t, err, &missing)
}
