package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/repo2txt/internal/cli"
	"github.com/temirov/repo2txt/internal/utils"
)

// main is the entry point for the repo2txt command.
func main() {
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger()
	if loggerInitializationError != nil {
		panic(fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerInitializationError))
	}
	defer loggerInstance.Sync()
	if applicationExecutionError := cli.Execute(); applicationExecutionError != nil {
		loggerInstance.Fatal(utils.ApplicationExecutionFailedMessage, zap.Error(applicationExecutionError))
	}
}
