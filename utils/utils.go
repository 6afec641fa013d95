package utils

import (
	"fmt"
	"os"
	"strings"
)

// ParseArguments converts command-line arguments into a map of flags and values
func ParseArguments() map[string]string {
	args := make(map[string]string)

	// First, identify the command (run/validate)
	command := ""
	commandIndex := -1
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "run" || os.Args[i] == "validate" {
			command = os.Args[i]
			commandIndex = i
			break
		}
	}

	if command != "" {
		args["command"] = command
	}

	// Process all arguments, skipping the command
	for i := 1; i < len(os.Args); i++ {
		if i == commandIndex {
			continue
		}

		arg := os.Args[i]

		// Handle flags with equals sign (--key=value)
		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			flagName := strings.TrimPrefix(parts[0], "--")
			args[flagName] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value)
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")

			// Check if this is a boolean flag (no value)
			if i+1 >= len(os.Args) || strings.HasPrefix(os.Args[i+1], "--") {
				args[flagName] = "true"
			} else {
				// The next argument is the value
				args[flagName] = os.Args[i+1]
				i++ // Skip the value in the next iteration
			}
		}
	}

	return args
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s run --params=PATH --workdir=PATH [--family=NAME] [--workers=N] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s validate --params=PATH --workdir=PATH\n", os.Args[0])
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --params      : Path to the JSON parameter file\n")
	fmt.Printf("  --workdir     : Working directory for the staged image tree\n")
	fmt.Printf("  --family      : Pipeline family (thermography, 2d, 3d; default: thermography)\n")
	fmt.Printf("  --workers     : Number of concurrent image workers (default: 3/4 of CPUs)\n")
	fmt.Printf("  --debug       : Enable debug mode (logs detailed information)\n")
	fmt.Printf("  --logfile     : Specify custom log file path (default: thermopipe.log)\n")
	fmt.Printf("\nEnvironment:\n")
	fmt.Printf("  THERMOPIPE_PARAMS and THERMOPIPE_WORKING_DIR (also read from .env)\n")
	fmt.Printf("  supply defaults for --params and --workdir\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s run --params=./params.json --workdir=./inspection --debug\n", os.Args[0])
	fmt.Printf("  %s validate --params=./params.json --workdir=./inspection\n", os.Args[0])
}
