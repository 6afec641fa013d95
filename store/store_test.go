package store

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"thermopipe/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pipeline_runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.BeginRun("thermography", "/work")
	require.NoError(t, err)
	require.NotZero(t, runID)

	require.NoError(t, s.RecordStage(runID, types.StageReport{
		Stage: "iqa", ImagesIn: 6, ImagesOut: 3, DurationMS: 120,
	}))
	require.NoError(t, s.FinishRun(runID, "completed"))
}

func TestRunStatsAggregation(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.BeginRun("thermography", "/work")
	require.NoError(t, err)

	records := []types.QualityRecord{
		{
			CompositeName: "A B.png",
			Paths:         []string{"a1", "a2", "a3"},
			Scores:        []float64{10, 20, 30},
			Passed:        []bool{true, true, true},
			CompositePass: true,
		},
		{
			CompositeName: "C D.png",
			Paths:         []string{"c1", "c2", "c3"},
			Scores:        []float64{10, 90, 30},
			Passed:        []bool{true, false, true},
			CompositePass: false,
		},
	}
	require.NoError(t, s.RecordQuality(runID, records))

	require.NoError(t, s.RecordDetections(runID, "A B.png", []types.Detection{
		{Box: image.Rect(1, 2, 30, 40), Score: 0.92, ClassID: 0},
		{Box: image.Rect(5, 6, 70, 80), Score: 0.85, ClassID: 1},
	}))

	stats, err := s.GetRunStats(runID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.GroupsPassed)
	require.Equal(t, 2, stats.GroupsTotal)
	require.Equal(t, 2, stats.Detections)
}

func TestRecordImageMeta(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.BeginRun("thermography", "/work")
	require.NoError(t, err)

	require.NoError(t, s.RecordImageMeta(runID, types.ImageMeta{
		Path:        "/work/1.Acquired_images/A 1Hz B.png",
		CameraModel: "FLIR X6900sc",
		CaptureTime: "2024-11-02 10:15:00",
		Width:       640,
		Height:      512,
	}))
}
