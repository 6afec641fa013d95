package thermography

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"thermopipe/types"
)

func TestFilterDetectionsStrictThreshold(t *testing.T) {
	detections := []types.Detection{
		{Box: image.Rect(0, 0, 10, 10), Score: 0.875, ClassID: 0},
		{Box: image.Rect(5, 5, 20, 20), Score: 0.75, ClassID: 1},
		{Box: image.Rect(1, 1, 4, 4), Score: 0.5, ClassID: 0},
	}

	kept := FilterDetections(detections, 0.8)
	require.Len(t, kept, 1)
	require.Equal(t, float32(0.875), kept[0].Score)

	// Equal to threshold is filtered out.
	kept = FilterDetections(detections, 0.75)
	require.Len(t, kept, 1)

	kept = FilterDetections(detections, 0.5)
	require.Len(t, kept, 2)
}

func TestFilterDetectionsEmpty(t *testing.T) {
	require.Empty(t, FilterDetections(nil, 0.5))
	require.Empty(t, FilterDetections([]types.Detection{
		{Box: image.Rect(0, 0, 1, 1), Score: 0.1},
	}, 0.5))
}
