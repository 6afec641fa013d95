package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleParams = `[
	{"Module_name": "Acquisition", "Image_directory": "%s"},
	{"Module_name": "IQA", "Brisque_threshold": 55},
	{"Module_name": "Preprocessing", "filter_size": 5},
	{"Module_name": "DefectDetection", "Modelpath": "%s", "defect_detection_thresh": 0.8}
]`

func writeParams(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadResolvesAllModules(t *testing.T) {
	imgDir := t.TempDir()
	modelPath := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(modelPath, []byte("onnx"), 0644))

	path := writeParams(t, fmt.Sprintf(sampleParams, imgDir, modelPath))
	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)

	require.Equal(t, imgDir, cfg.ImageDirectory)
	require.Equal(t, 55.0, cfg.BrisqueThreshold)
	require.Equal(t, 5, cfg.FilterSize)
	require.Equal(t, modelPath, cfg.ModelPath)
	require.Equal(t, 0.8, cfg.DefectThreshold)

	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeParams(t, `[
		{"Module_name": "Acquisition", "Image_directory": "/some/where"},
		{"Module_name": "IQA"},
		{"Module_name": "Preprocessing", "filter_size": null},
		{"Module_name": "DefectDetection", "Modelpath": "m.onnx", "defect_detection_thresh": 0.5}
	]`)

	cfg, err := Load(path, "/work")
	require.NoError(t, err)
	require.Equal(t, DefaultBrisqueThreshold, cfg.BrisqueThreshold)
	require.Equal(t, DefaultFilterSize, cfg.FilterSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), "/work")
	require.Error(t, err)
}

func TestLoadRejectsEntryWithoutModuleName(t *testing.T) {
	path := writeParams(t, `[{"Image_directory": "/x"}]`)
	_, err := Load(path, "/work")
	require.Error(t, err)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	path := writeParams(t, `[
		{"Module_name": "IQA", "Brisque_threshold": 70},
		{"Module_name": "Preprocessing", "filter_size": 4},
		{"Module_name": "DefectDetection"}
	]`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	err = cfg.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// Missing working dir, missing image dir, even filter size, missing
	// model path, missing defect threshold: all reported at once.
	require.Len(t, verr.Problems, 5)
}

