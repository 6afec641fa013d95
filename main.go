package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/sirupsen/logrus"

	"thermopipe/config"
	"thermopipe/imageproc"
	"thermopipe/logging"
	"thermopipe/pipeline"
	"thermopipe/signalhandler"
	"thermopipe/stage"
	"thermopipe/store"
	"thermopipe/utils"
)

func main() {
	// Set up signal handling early
	signalhandler.SetupHandler()

	args := utils.ParseArguments()

	command, ok := args["command"]
	if !ok {
		utils.PrintUsage()
		os.Exit(1)
	}

	// Environment supplies defaults; flags override.
	envWorkDir, envParams := config.Env()
	paramsPath := args["params"]
	if paramsPath == "" {
		paramsPath = envParams
	}
	workingDir := args["workdir"]
	if workingDir == "" {
		workingDir = envWorkDir
	}

	logFilePath := args["logfile"]
	if logFilePath == "" {
		logFilePath = "thermopipe.log"
	}
	debug := args["debug"] == "true"

	log, err := logging.Setup(logFilePath, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	cfg, err := config.Load(paramsPath, workingDir)
	if err != nil {
		log.Errorf("Configuration error: %v", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Errorf("Configuration error: %v", err)
		os.Exit(1)
	}

	switch command {
	case "validate":
		log.Infof("Configuration is valid: %s", paramsPath)
		return
	case "run":
		if err := runPipeline(log, cfg, args); err != nil {
			log.Errorf("Pipeline failed: %v", err)
			os.Exit(1)
		}
	default:
		utils.PrintUsage()
		os.Exit(1)
	}
}

func runPipeline(log *logrus.Logger, cfg *config.Config, args map[string]string) error {
	familyName := args["family"]
	if familyName == "" {
		familyName = string(pipeline.FamilyThermography)
	}
	family, err := pipeline.ParseFamily(familyName)
	if err != nil {
		return err
	}

	workers := signalhandler.GetOptimalProcs()
	if s := args["workers"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid --workers value %q", s)
		}
		workers = n
	}
	runtime.GOMAXPROCS(runtime.NumCPU())

	dirs, err := stage.NewDirStore(cfg.WorkingDir)
	if err != nil {
		return err
	}

	runStore, err := store.Open(filepath.Join(cfg.WorkingDir, "pipeline_runs.db"))
	if err != nil {
		return err
	}
	defer runStore.Close()

	runID, err := runStore.BeginRun(string(family), cfg.WorkingDir)
	if err != nil {
		return err
	}

	set, err := pipeline.NewStageSet(family, pipeline.Deps{
		Log:      log,
		Config:   cfg,
		Dirs:     dirs,
		Registry: imageproc.NewImageLoaderRegistry(),
		Store:    runStore,
		RunID:    runID,
		Workers:  workers,
	})
	if err != nil {
		runStore.FinishRun(runID, "failed")
		return err
	}

	log.Infof("Starting %s pipeline with %d workers in %s", family, workers, cfg.WorkingDir)

	if _, err := pipeline.NewRunner(log, set).Run(); err != nil {
		runStore.FinishRun(runID, "failed")
		return err
	}
	if err := runStore.FinishRun(runID, "completed"); err != nil {
		return err
	}

	stats, err := runStore.GetRunStats(runID)
	if err != nil {
		return err
	}
	log.Infof("Run %d finished: %d/%d groups passed the quality gate, %d defects detected",
		runID, stats.GroupsPassed, stats.GroupsTotal, stats.Detections)
	return nil
}
