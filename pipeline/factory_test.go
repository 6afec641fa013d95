package pipeline

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"thermopipe/config"
	"thermopipe/imageproc"
	"thermopipe/stage"
)

func TestParseFamily(t *testing.T) {
	for _, name := range []string{"thermography", "2d", "3d"} {
		family, err := ParseFamily(name)
		require.NoError(t, err)
		require.Equal(t, Family(name), family)
	}

	_, err := ParseFamily("xray")
	require.Error(t, err)
}

func TestThermographySetIsComplete(t *testing.T) {
	dirs, err := stage.NewDirStore(t.TempDir())
	require.NoError(t, err)

	set, err := NewStageSet(FamilyThermography, Deps{
		Log:      logrus.New(),
		Config:   &config.Config{WorkingDir: dirs.WorkingDir()},
		Dirs:     dirs,
		Registry: imageproc.NewImageLoaderRegistry(),
		Workers:  2,
	})
	require.NoError(t, err)

	names := []string{}
	for _, s := range set.Stages() {
		require.NotNil(t, s)
		names = append(names, s.Name())
	}
	require.Equal(t, []string{"acquisition", "iqa", "preprocessing", "enrichment", "defect_detection"}, names)
}

func TestStubFamiliesFailExplicitly(t *testing.T) {
	for _, family := range []Family{FamilyTwoD, FamilyThreeD} {
		set, err := NewStageSet(family, Deps{Log: logrus.New()})
		require.NoError(t, err)

		for _, s := range set.Stages() {
			require.ErrorIs(t, s.Load(nil), stage.ErrNotImplemented)
			require.ErrorIs(t, s.Process(), stage.ErrNotImplemented)
			_, err := s.Save()
			require.ErrorIs(t, err, stage.ErrNotImplemented)
		}
	}
}

func TestUnknownFamily(t *testing.T) {
	_, err := NewStageSet(Family("sonar"), Deps{Log: logrus.New()})
	require.Error(t, err)
}
