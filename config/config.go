// Package config loads and validates the pipeline parameter file. The file
// is a JSON array of module entries keyed by "Module_name", one entry per
// pipeline module that takes parameters.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults applied when the parameter file leaves an option unset.
const (
	DefaultBrisqueThreshold = 70.0
	DefaultFilterSize       = 3
)

// moduleEntry mirrors one object of the JSON parameter array.
type moduleEntry struct {
	ModuleName       string   `json:"Module_name"`
	ImageDirectory   string   `json:"Image_directory"`
	BrisqueThreshold *float64 `json:"Brisque_threshold"`
	FilterSize       *int     `json:"filter_size"`
	ModelPath        string   `json:"Modelpath"`
	DefectThreshold  *float64 `json:"defect_detection_thresh"`
}

// Config holds the resolved, immutable parameters of one pipeline run.
// Stages hold a reference to the relevant fields; nothing mutates it after
// Load returns.
type Config struct {
	WorkingDir string
	ParamsPath string

	// Acquisition
	ImageDirectory string

	// IQA
	BrisqueThreshold float64

	// Preprocessing
	FilterSize int

	// DefectDetection
	ModelPath       string
	DefectThreshold float64
	hasDefectThresh bool
}

// Env reads the defaults for paths not supplied as flags. A .env file is
// loaded if present; its absence is not an error.
func Env() (workingDir, paramsPath string) {
	_ = godotenv.Load()
	return os.Getenv("THERMOPIPE_WORKING_DIR"), os.Getenv("THERMOPIPE_PARAMS")
}

// Load reads the parameter file and resolves defaults.
func Load(paramsPath, workingDir string) (*Config, error) {
	data, err := os.ReadFile(paramsPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read parameter file %s: %v", paramsPath, err)
	}

	var entries []moduleEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("cannot parse parameter file %s: %v", paramsPath, err)
	}

	cfg := &Config{
		WorkingDir:       workingDir,
		ParamsPath:       paramsPath,
		BrisqueThreshold: DefaultBrisqueThreshold,
		FilterSize:       DefaultFilterSize,
	}

	for _, entry := range entries {
		switch entry.ModuleName {
		case "Acquisition":
			cfg.ImageDirectory = entry.ImageDirectory
		case "IQA":
			if entry.BrisqueThreshold != nil {
				cfg.BrisqueThreshold = *entry.BrisqueThreshold
			}
		case "Preprocessing":
			if entry.FilterSize != nil {
				cfg.FilterSize = *entry.FilterSize
			}
		case "DefectDetection":
			cfg.ModelPath = entry.ModelPath
			if entry.DefectThreshold != nil {
				cfg.DefectThreshold = *entry.DefectThreshold
				cfg.hasDefectThresh = true
			}
		case "":
			return nil, fmt.Errorf("parameter file %s: entry without Module_name", paramsPath)
		default:
			// Unknown modules are tolerated so one parameter file can serve
			// several pipeline families.
		}
	}

	return cfg, nil
}

// Validate checks the configuration once, up front, and returns every
// problem found. The core never prompts for missing paths at run time; all
// of them are surfaced here.
func (c *Config) Validate() error {
	var problems []string

	if c.WorkingDir == "" {
		problems = append(problems, "working directory is not set")
	}
	if c.ImageDirectory == "" {
		problems = append(problems, "Acquisition.Image_directory is not set")
	} else if _, err := os.Stat(c.ImageDirectory); err != nil {
		problems = append(problems, fmt.Sprintf("Acquisition.Image_directory does not exist: %s", c.ImageDirectory))
	}
	if c.FilterSize < 1 || c.FilterSize%2 == 0 {
		problems = append(problems, fmt.Sprintf("Preprocessing.filter_size must be a positive odd number, got %d", c.FilterSize))
	}
	if c.ModelPath == "" {
		problems = append(problems, "DefectDetection.Modelpath is not set")
	} else if _, err := os.Stat(c.ModelPath); err != nil {
		problems = append(problems, fmt.Sprintf("DefectDetection.Modelpath does not exist: %s", c.ModelPath))
	}
	if !c.hasDefectThresh {
		problems = append(problems, "DefectDetection.defect_detection_thresh is not set")
	} else if c.DefectThreshold < 0 || c.DefectThreshold > 1 {
		problems = append(problems, fmt.Sprintf("DefectDetection.defect_detection_thresh must be in [0,1], got %g", c.DefectThreshold))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidationError lists every invalid or missing input found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration:\n  - %s", strings.Join(e.Problems, "\n  - "))
}
