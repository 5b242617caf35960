package main

import (
	"os"

	"netcard-affinity/cmd"
	"netcard-affinity/internal/logging"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logging.GetLogger().WithError(err).Error("Failed to execute command")
		os.Exit(cmd.ExitCode(err))
	}
}
