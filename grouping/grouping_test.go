package grouping

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	ref, err := ParseRef("/data/SampleA 0_5Hz SampleB.png")
	require.NoError(t, err)
	require.Equal(t, "SampleA", ref.Prefix)
	require.Equal(t, "SampleB.png", ref.Suffix)
	require.Equal(t, "0_5Hz", ref.FreqToken)
	require.Equal(t, 0.5, ref.Frequency)
	require.Equal(t, "SampleA  SampleB.png", ref.GroupKey)
}

func TestParseRefNoFrequencyToken(t *testing.T) {
	_, err := ParseRef("/data/just_a_name.png")

	var cerr *ContractError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "/data/just_a_name.png", cerr.Path)
}

func TestFrequencyValue(t *testing.T) {
	require.Equal(t, 1.0, FrequencyValue("1Hz"))
	require.Equal(t, 0.5, FrequencyValue("0_5Hz"))
	require.Equal(t, 0.01, FrequencyValue("0_01Hz"))
	require.Equal(t, 10.0, FrequencyValue("10Hz"))
}

func TestCompositeName(t *testing.T) {
	require.Equal(t, "SampleA SampleB.png", CompositeName("SampleA  SampleB.png"))
	require.Equal(t, "Plate1 left.png", CompositeName("Plate1  left.png"))
}

func TestPartitionWellFormed(t *testing.T) {
	paths := []string{
		"/w/1.Acquired_images/SampleA 1Hz SampleB.png",
		"/w/1.Acquired_images/SampleA 0_5Hz SampleB.png",
		"/w/1.Acquired_images/SampleA 2Hz SampleB.png",
		"/w/1.Acquired_images/PlateX 1Hz PlateY.png",
		"/w/1.Acquired_images/PlateX 0_5Hz PlateY.png",
		"/w/1.Acquired_images/PlateX 2Hz PlateY.png",
	}

	groups, err := Partition(paths)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	// Groups sorted by key, members sorted by frequency ascending.
	require.Equal(t, "PlateX  PlateY.png", groups[0].Key)
	require.Equal(t, "SampleA  SampleB.png", groups[1].Key)

	freqs := []float64{0.5, 1, 2}
	for _, g := range groups {
		require.Len(t, g.Members, GroupSize)
		for i, m := range g.Members {
			require.Equal(t, freqs[i], m.Frequency)
		}
	}

	// No member is shared between two different groups.
	seen := make(map[string]string)
	for _, g := range groups {
		for _, p := range g.Paths() {
			owner, dup := seen[p]
			require.False(t, dup, "path %s in both %s and %s", p, owner, g.Key)
			seen[p] = g.Key
		}
	}
}

func TestPartitionGroupOfTwoFails(t *testing.T) {
	paths := []string{
		"/w/SampleA 1Hz SampleB.png",
		"/w/SampleA 0_5Hz SampleB.png",
		"/w/PlateX 1Hz PlateY.png",
		"/w/PlateX 0_5Hz PlateY.png",
		"/w/PlateX 2Hz PlateY.png",
	}

	_, err := Partition(paths)

	var gerr *GroupSizeError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, "SampleA  SampleB.png", gerr.Key)
	require.Len(t, gerr.Paths, 2)
}

func TestPartitionGroupOfFourFails(t *testing.T) {
	paths := []string{
		"/w/SampleA 1Hz SampleB.png",
		"/w/SampleA 0_5Hz SampleB.png",
		"/w/SampleA 2Hz SampleB.png",
		"/w/SampleA 4Hz SampleB.png",
	}

	_, err := Partition(paths)

	var gerr *GroupSizeError
	require.ErrorAs(t, err, &gerr)
	require.Len(t, gerr.Paths, 4)
}

func TestPartitionEmptyInput(t *testing.T) {
	groups, err := Partition(nil)
	require.NoError(t, err)
	require.Empty(t, groups)
}
